package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
)

// QuoteHandler serves quote reads, creation, deletion, votes and favorites.
type QuoteHandler struct {
	quotes  QuoteService
	viewers Viewers
	logger  *slog.Logger
}

func NewQuoteHandler(quotes QuoteService, viewers Viewers, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, viewers: viewers, logger: logger}
}

// HandleGet returns one quote.
//
// HTTP: GET /api/quote/{id}
func (h *QuoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r, h.viewers)
	if !ok {
		return
	}
	id, err := quoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	quote, err := h.quotes.Get(r.Context(), id, v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// HandleList returns a page of quotes, newest first.
//
// HTTP: GET /api/quotes?lt=&limit=&q=&speaker=&submitter=&involved=&hidden=&favorited=
//
// PAGINATION:
// lt is an exclusive id cursor: pass the smallest id of the previous page to
// get the next one. limit defaults to 10; -1 returns everything.
func (h *QuoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r, h.viewers)
	if !ok {
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	quotes, err := h.quotes.List(r.Context(), filter, v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func parseFilter(q url.Values) (repository.QuoteFilter, error) {
	f := repository.QuoteFilter{
		Query:     q.Get("q"),
		Speaker:   q.Get("speaker"),
		Submitter: q.Get("submitter"),
		Involved:  q.Get("involved"),
	}

	if s := q.Get("lt"); s != "" {
		lt, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, apperror.ValidationFailed("lt", "lt must be an integer")
		}
		f.Lt = lt
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return f, apperror.ValidationFailed("limit", "limit must be an integer")
		}
		f.Limit = limit
	}
	if s := q.Get("hidden"); s != "" {
		hidden, err := strconv.ParseBool(s)
		if err != nil {
			return f, apperror.ValidationFailed("hidden", "hidden must be true or false")
		}
		f.Hidden = &hidden
	}
	if s := q.Get("favorited"); s != "" {
		fav, err := strconv.ParseBool(s)
		if err != nil {
			return f, apperror.ValidationFailed("favorited", "favorited must be true or false")
		}
		f.Favorited = fav
	}
	return f, nil
}

type createQuoteRequest struct {
	Shards []model.NewShard `json:"shards"`
}

type createQuoteResponse struct {
	ID int64 `json:"id"`
}

// HandleCreate submits a quote on behalf of the caller.
//
// HTTP: POST /api/quote
// REQUEST BODY: {"shards": [{"speaker": "bob", "body": "hi"}]}
func (h *QuoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r, h.viewers)
	if !ok {
		return
	}
	var req createQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.quotes.Create(r.Context(), v.Username, req.Shards)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createQuoteResponse{ID: id})
}

// HandleDelete removes the caller's own quote.
//
// HTTP: DELETE /api/quote/{id}
func (h *QuoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.quotes.Delete)
}

// HandleVote records the caller's vote.
//
// HTTP: POST /api/quote/{id}/vote?vote=upvote|downvote
func (h *QuoteHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	vote := model.VoteValue(r.URL.Query().Get("vote"))
	h.mutate(w, r, func(ctx context.Context, id int64, v model.Viewer) error {
		return h.quotes.Vote(ctx, id, v, vote)
	})
}

// HandleUnvote removes the caller's vote.
//
// HTTP: DELETE /api/quote/{id}/vote
func (h *QuoteHandler) HandleUnvote(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.quotes.Unvote)
}

// HTTP: POST /api/quote/{id}/favorite
func (h *QuoteHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.quotes.Favorite)
}

// HTTP: DELETE /api/quote/{id}/favorite
func (h *QuoteHandler) HandleUnfavorite(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.quotes.Unfavorite)
}

// mutate runs a body-less mutation on the {id} quote and answers 204.
func (h *QuoteHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, v model.Viewer) error) {
	v, ok := viewer(w, r, h.viewers)
	if !ok {
		return
	}
	id, err := quoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := op(r.Context(), id, v); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
