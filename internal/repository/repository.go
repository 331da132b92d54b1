// Package repository declares the persistence contract of the service.
//
// The store is the sole source of truth and the sole enforcer of uniqueness:
// one hidden record per quote, one vote per (quote, voter), one favorite per
// (quote, username), one report per (quote, hashed reporter). Mutations that
// affect zero rows come back as *apperror.AppError values wrapping
// apperror.ErrConflict; every other error is an infrastructure failure.
package repository

import (
	"context"

	"github.com/sakif/quotefault/internal/model"
)

// UnlimitedLimit is the Limit sentinel meaning "no limit".
const UnlimitedLimit = -1

// DefaultLimit is applied when a listing does not specify a usable limit.
const DefaultLimit = 10

// Caller-visible rejections for mutations that affected zero rows.
const (
	MsgDeleteRejected     = "Either this is not your quote or this quote does not exist."
	MsgHideRejected       = "Either you are not quoted in this quote or this quote does not exist."
	MsgReportRejected     = "You have already reported this quote or quote does not exist"
	MsgResolveRejected    = "Report is either already resolved or doesn't exist."
	MsgVoteRejected       = "Quote does not exist"
	MsgFavoriteRejected   = "Quote is either already favorited or doesn't exist."
	MsgUnfavoriteRejected = "Quote is not favorited."
)

// QuoteFilter is the filter and pagination set of a multi-quote listing.
//
// Empty strings mean "no filter". Hidden is tri-state: nil applies the
// default visibility predicate, true keeps only hidden quotes, false keeps
// only non-hidden quotes.
type QuoteFilter struct {
	Lt        int64 // exclusive id cursor, <= 0 means unbounded
	Limit     int   // UnlimitedLimit, or > 0; anything else means DefaultLimit
	Query     string
	Speaker   string
	Submitter string
	Involved  string
	Hidden    *bool
	Favorited bool
}

// EffectiveLimit resolves Limit to the value the store applies.
// A negative result means unlimited.
func (f QuoteFilter) EffectiveLimit() int {
	switch {
	case f.Limit == UnlimitedLimit:
		return UnlimitedLimit
	case f.Limit > 0:
		return f.Limit
	default:
		return DefaultLimit
	}
}

// QuoteReader returns flattened (quote, shard) rows already restricted to
// what the viewer may see and ordered (timestamp desc, id desc, index asc).
type QuoteReader interface {
	GetQuote(ctx context.Context, id int64, viewer model.Viewer) ([]model.QuoteRow, error)
	ListQuotes(ctx context.Context, filter QuoteFilter, viewer model.Viewer) ([]model.QuoteRow, error)
}

// QuoteWriter groups the quote, vote and favorite mutations. Each call is
// one atomic unit.
type QuoteWriter interface {
	CreateQuote(ctx context.Context, submitter string, shards []model.NewShard) (int64, error)
	DeleteQuote(ctx context.Context, id int64, submitter string) error
	Vote(ctx context.Context, id int64, viewer model.Viewer, vote model.VoteValue) error
	Unvote(ctx context.Context, id int64, viewer model.Viewer) error
	Favorite(ctx context.Context, id int64, username string) error
	Unfavorite(ctx context.Context, id int64, username string) error
}

// ModerationRepository is the report → resolve → hide state machine.
type ModerationRepository interface {
	HideQuote(ctx context.Context, id int64, actor model.Viewer, reason string) error
	ReportQuote(ctx context.Context, id int64, reporterHash []byte, reason string) error
	ResolveReports(ctx context.Context, id int64, resolver model.Viewer, hide bool) error
	ListOpenReports(ctx context.Context) ([]model.ReportRow, error)
}

// QuoteRepository is everything the quote service needs from storage.
type QuoteRepository interface {
	QuoteReader
	QuoteWriter
}
