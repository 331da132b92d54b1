// Package service contains the business operations of quotefault.
//
// LAYERING:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (business) → validates, enforces rules, orchestrates
//	Repository (data)  → reads/writes the store
//
// Services depend on interfaces only: the repository contracts, the
// directory, a notification dispatcher and an operation observer. Errors
// come back as *apperror.AppError for anything the caller can act on;
// everything else is an infrastructure failure.
package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/directory"
)

// Dispatcher hands a message to the notification pipeline without waiting
// for delivery. notify.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, username, message string)
}

// Observer is told the outcome of every operation. metrics.Metrics
// satisfies it.
type Observer interface {
	Operation(name string, err error)
}

// usernamePattern is the identifier format accepted for speakers and
// submitters: 1-32 chars, leading letter or digit.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,31}$`)

// ValidUsername reports whether s is a well-formed member identifier.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// directoryError turns a directory transport failure into an
// apperror.ErrUnavailable. Other errors pass through.
func directoryError(err error) error {
	if errors.Is(err, directory.ErrUnavailable) {
		return apperror.Unavailable("directory", err)
	}
	return err
}

type noopObserver struct{}

func (noopObserver) Operation(string, error) {}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string, string) {}
