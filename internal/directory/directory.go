// Package directory adapts the organisational directory: who exists, what
// they are called, and who may be quoted.
//
// The directory is read-only from this service's point of view. Three
// implementations exist:
//   - Client: the HTTP directory service
//   - Static: a roster loaded from a YAML file (development, tests)
//   - Cached: a decorator that caches another Directory in Redis or in-process
package directory

import (
	"context"
	"errors"

	"github.com/sakif/quotefault/internal/model"
)

// ErrUnavailable marks a transport-level failure talking to the directory.
var ErrUnavailable = errors.New("directory unavailable")

// Directory is the contract the rest of the service relies on.
type Directory interface {
	// Resolve maps uids to display names. Unknown uids are absent from the
	// result; that is not an error.
	Resolve(ctx context.Context, uids []string) (map[string]string, error)

	// QuotableMembers returns the current snapshot of members that may be
	// named as speakers.
	QuotableMembers(ctx context.Context) ([]model.User, error)
}

// AllExist reports whether every uid resolves.
func AllExist(ctx context.Context, d Directory, uids []string) (bool, error) {
	names, err := d.Resolve(ctx, uids)
	if err != nil {
		return false, err
	}
	for _, uid := range uids {
		if _, ok := names[uid]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func dedupe(uids []string) []string {
	seen := make(map[string]struct{}, len(uids))
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		if _, ok := seen[uid]; ok || uid == "" {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}
