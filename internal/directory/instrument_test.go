package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument(t *testing.T) {
	inner := newCounting()
	var calls []string
	var errs []error
	d := Instrument(inner, func(call string, _ time.Duration, err error) {
		calls = append(calls, call)
		errs = append(errs, err)
	})

	_, err := d.Resolve(context.Background(), []string{"alice"})
	require.NoError(t, err)

	inner.err = errors.New("boom")
	_, err = d.QuotableMembers(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"resolve", "quotable_members"}, calls)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
}

func TestInstrument_NilObserver(t *testing.T) {
	inner := newCounting()
	assert.Same(t, Directory(inner), Instrument(inner, nil))
}
