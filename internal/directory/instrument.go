package directory

import (
	"context"
	"time"

	"github.com/sakif/quotefault/internal/model"
)

// ObserveFunc receives the call name ("resolve" or "quotable_members"), its
// latency and its error.
type ObserveFunc func(call string, d time.Duration, err error)

type instrumented struct {
	inner   Directory
	observe ObserveFunc
}

// Instrument reports every call on inner to observe. A nil observe returns
// inner unchanged.
func Instrument(inner Directory, observe ObserveFunc) Directory {
	if observe == nil {
		return inner
	}
	return &instrumented{inner: inner, observe: observe}
}

func (i *instrumented) Resolve(ctx context.Context, uids []string) (map[string]string, error) {
	start := time.Now()
	names, err := i.inner.Resolve(ctx, uids)
	i.observe("resolve", time.Since(start), err)
	return names, err
}

func (i *instrumented) QuotableMembers(ctx context.Context) ([]model.User, error) {
	start := time.Now()
	members, err := i.inner.QuotableMembers(ctx)
	i.observe("quotable_members", time.Since(start), err)
	return members, err
}
