// Package handler translates HTTP requests into service calls.
//
// Handlers only parse input and shape output. Every rule about who may do
// what lives in the service layer; every status code decision lives in
// writeError.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
)

// QuoteService is what QuoteHandler needs from service.QuoteService.
type QuoteService interface {
	Get(ctx context.Context, id int64, viewer model.Viewer) (model.Quote, error)
	List(ctx context.Context, filter repository.QuoteFilter, viewer model.Viewer) ([]model.Quote, error)
	Create(ctx context.Context, submitter string, shards []model.NewShard) (int64, error)
	Delete(ctx context.Context, id int64, viewer model.Viewer) error
	Vote(ctx context.Context, id int64, viewer model.Viewer, vote model.VoteValue) error
	Unvote(ctx context.Context, id int64, viewer model.Viewer) error
	Favorite(ctx context.Context, id int64, viewer model.Viewer) error
	Unfavorite(ctx context.Context, id int64, viewer model.Viewer) error
}

// ModerationService is what ModerationHandler needs from
// service.ModerationService.
type ModerationService interface {
	Hide(ctx context.Context, id int64, viewer model.Viewer, reason string) error
	Report(ctx context.Context, id int64, viewer model.Viewer, reason string) error
	Resolve(ctx context.Context, id int64, viewer model.Viewer, hide bool) error
	ListReports(ctx context.Context, viewer model.Viewer) ([]model.ReportedQuote, error)
}

// MemberService lists quotable members.
type MemberService interface {
	ListQuotable(ctx context.Context) ([]model.User, error)
}

// Viewers resolves the caller of a request. auth.Authenticator satisfies it.
type Viewers interface {
	Viewer(ctx context.Context) (model.Viewer, bool)
}

// viewer returns the caller, writing 401 when the request carries none.
func viewer(w http.ResponseWriter, r *http.Request, viewers Viewers) (model.Viewer, bool) {
	v, ok := viewers.Viewer(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
	}
	return v, ok
}

// quoteID parses the {id} route parameter.
func quoteID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "Invalid quote id")
	}
	return id, nil
}
