package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/quotefault/internal/auth"
	"github.com/sakif/quotefault/internal/config"
	"github.com/sakif/quotefault/internal/directory"
	"github.com/sakif/quotefault/internal/handler"
	"github.com/sakif/quotefault/internal/metrics"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository/sqlstore"
	"github.com/sakif/quotefault/internal/server"
	"github.com/sakif/quotefault/internal/service"
)

type sentPing struct{ username, message string }

type syncDispatcher struct {
	mu   sync.Mutex
	sent []sentPing
}

func (d *syncDispatcher) Dispatch(_ context.Context, username, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentPing{username, message})
}

type testEnv struct {
	handler  http.Handler
	tokens   *auth.TokenService
	notified *syncDispatcher
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T, securityEnabled bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlstore.New(context.Background(), "sqlite", ":memory:", sqlstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := directory.NewStatic([]directory.Member{
		{UID: "alice", CN: "Alice"},
		{UID: "bob", CN: "Bob"},
		{UID: "carol", CN: "Carol"},
		{UID: "dave", CN: "Dave"},
		{UID: "root", CN: "Root"},
	})

	tokens, err := auth.NewTokenService("server-test-secret-0123456789", "quotefault", "eboard")
	require.NoError(t, err)

	m := metrics.New()
	notified := &syncDispatcher{}

	srv := server.New(config.ServerConfig{MaxRequestSize: 1 << 16}, server.Dependencies{
		Quotes:     service.NewQuoteService(store, dir, notified, m, logger),
		Moderation: service.NewModerationService(store, "test-salt-value", m, logger),
		Members:    service.NewMemberService(dir),
		Store:      store,
		Auth:       auth.NewAuthenticator(tokens, securityEnabled),
		Metrics:    m,
		Build:      handler.NewBuildInfo("test", "deadbeef", "now"),
	}, logger)

	return &testEnv{handler: srv.Handler(), tokens: tokens, notified: notified, metrics: m}
}

func (e *testEnv) do(t *testing.T, user, method, target, body string, groups ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if user != "" {
		tok, err := e.tokens.Generate(user, groups, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createQuote(t *testing.T, submitter, body string) int64 {
	t.Helper()
	rec := e.do(t, submitter, http.MethodPost, "/api/quote", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		ID int64 `json:"id"`
	}](t, rec).ID
}

func TestPublicEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "", http.MethodGet, "/api/quotes", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "", http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndFetch(t *testing.T) {
	env := newTestEnv(t, true)

	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"},{"speaker":"carol","body":"bye"}]}`)

	rec := env.do(t, "dave", http.MethodGet, "/api/quote/"+itoa(id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[model.Quote](t, rec)
	assert.Equal(t, id, q.ID)
	assert.Equal(t, model.User{UID: "alice", CN: "Alice"}, q.Submitter)
	require.Len(t, q.Shards, 2)
	assert.Equal(t, "hi", q.Shards[0].Body)
	assert.Equal(t, "Carol", q.Shards[1].Speaker.CN)
	assert.Zero(t, q.Score)
	assert.Nil(t, q.Vote)
	assert.Nil(t, q.Hidden)
	assert.False(t, q.Favorited)

	assert.ElementsMatch(t, []sentPing{
		{"bob", "You were quoted by alice. Check it out at Quotefault!"},
		{"carol", "You were quoted by alice. Check it out at Quotefault!"},
	}, env.notified.sent)

	rec = env.do(t, "alice", http.MethodPost, "/api/quote", `{"shards":[{"speaker":"alice","body":"me"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"validation_error","message":"Erm... maybe don't quote yourself?"}`, rec.Body.String())

	rec = env.do(t, "dave", http.MethodGet, "/api/quote/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVoting(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)
	path := "/api/quote/" + itoa(id)

	require.Equal(t, http.StatusNoContent, env.do(t, "dave", http.MethodPost, path+"/vote?vote=upvote", "").Code)
	require.Equal(t, http.StatusNoContent, env.do(t, "dave", http.MethodPost, path+"/vote?vote=downvote", "").Code)

	q := decode[model.Quote](t, env.do(t, "dave", http.MethodGet, path, ""))
	assert.Equal(t, int64(-1), q.Score)
	require.NotNil(t, q.Vote)
	assert.Equal(t, model.Downvote, *q.Vote)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "dave", http.MethodPost, path+"/vote?vote=meh", "").Code)
	assert.Equal(t, http.StatusConflict, env.do(t, "dave", http.MethodPost, "/api/quote/9999/vote?vote=upvote", "").Code)

	require.Equal(t, http.StatusNoContent, env.do(t, "dave", http.MethodDelete, path+"/vote", "").Code)
	q = decode[model.Quote](t, env.do(t, "dave", http.MethodGet, path, ""))
	assert.Zero(t, q.Score)
	assert.Equal(t, http.StatusConflict, env.do(t, "dave", http.MethodDelete, path+"/vote", "").Code)
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)
	env.createQuote(t, "alice", `{"shards":[{"speaker":"carol","body":"other"}]}`)
	path := "/api/quote/" + itoa(id)

	require.Equal(t, http.StatusNoContent, env.do(t, "dave", http.MethodPost, path+"/favorite", "").Code)
	rec := env.do(t, "dave", http.MethodPost, path+"/favorite", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"Quote is either already favorited or doesn't exist."}`, rec.Body.String())

	favs := decode[[]model.Quote](t, env.do(t, "dave", http.MethodGet, "/api/quotes?favorited=true", ""))
	require.Len(t, favs, 1)
	assert.Equal(t, id, favs[0].ID)
	assert.True(t, favs[0].Favorited)

	require.Equal(t, http.StatusNoContent, env.do(t, "dave", http.MethodDelete, path+"/favorite", "").Code)
	assert.Equal(t, http.StatusConflict, env.do(t, "dave", http.MethodDelete, path+"/favorite", "").Code)
}

func TestHiddenQuoteVisibility(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)
	path := "/api/quote/" + itoa(id)

	rec := env.do(t, "root", http.MethodPut, path+"/hide", `{"reason":"Inappropriate content"}`, "eboard")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	assert.Len(t, decode[[]model.Quote](t, env.do(t, "alice", http.MethodGet, "/api/quotes", "")), 1)
	assert.Empty(t, decode[[]model.Quote](t, env.do(t, "dave", http.MethodGet, "/api/quotes", "")))
	assert.Equal(t, http.StatusNotFound, env.do(t, "dave", http.MethodGet, path, "").Code)

	q := decode[model.Quote](t, env.do(t, "root", http.MethodGet, path, "", "eboard"))
	require.NotNil(t, q.Hidden)
	assert.Equal(t, "Inappropriate content", q.Hidden.Reason)
	assert.Equal(t, model.User{UID: "root", CN: "Root"}, q.Hidden.Actor)

	rec = env.do(t, "root", http.MethodPut, path+"/hide", `{"reason":"Inappropriate content"}`, "eboard")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHide_Rules(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)
	path := "/api/quote/" + itoa(id)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "bob", http.MethodPut, path+"/hide", `{"reason":"short"}`).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, "dave", http.MethodPut, path+"/hide", `{"reason":"I do not like it"}`).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, "bob", http.MethodPut, path+"/hide", `{"reason":"I never said that"}`).Code)
}

func TestReportAndResolve(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)
	path := "/api/quote/" + itoa(id)

	require.Equal(t, http.StatusNoContent, env.do(t, "dave", http.MethodPost, path+"/report", `{"reason":"spam"}`).Code)
	rec := env.do(t, "dave", http.MethodPost, path+"/report", `{"reason":"spam again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"You have already reported this quote or quote does not exist"}`, rec.Body.String())
	require.Equal(t, http.StatusNoContent, env.do(t, "carol", http.MethodPost, path+"/report", `{"reason":"rude"}`).Code)

	assert.Equal(t, http.StatusForbidden, env.do(t, "dave", http.MethodGet, "/api/reports", "").Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, "dave", http.MethodPut, path+"/resolve?hide=true", "").Code)

	reports := decode[[]model.ReportedQuote](t, env.do(t, "root", http.MethodGet, "/api/reports", "", "eboard"))
	require.Len(t, reports, 1)
	assert.Equal(t, id, reports[0].QuoteID)
	require.Len(t, reports[0].Reports, 2)
	assert.Equal(t, "spam", reports[0].Reports[0].Reason)

	require.Equal(t, http.StatusNoContent, env.do(t, "root", http.MethodPut, path+"/resolve?hide=true", "", "eboard").Code)

	q := decode[model.Quote](t, env.do(t, "root", http.MethodGet, path, "", "eboard"))
	require.NotNil(t, q.Hidden)
	assert.Equal(t, "spam", q.Hidden.Reason)
	assert.Empty(t, decode[[]model.ReportedQuote](t, env.do(t, "root", http.MethodGet, "/api/reports", "", "eboard")))

	rec = env.do(t, "root", http.MethodPut, path+"/resolve", "", "eboard")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"Report is either already resolved or doesn't exist."}`, rec.Body.String())
}

func TestSecurityDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)

	require.Equal(t, http.StatusNoContent, env.do(t, "carol", http.MethodPut, "/api/quote/"+itoa(id)+"/hide", `{"reason":"hidden by anyone"}`).Code)
	assert.Len(t, decode[[]model.Quote](t, env.do(t, "dave", http.MethodGet, "/api/quotes", "")), 1)
	assert.Equal(t, http.StatusOK, env.do(t, "dave", http.MethodGet, "/api/reports", "").Code)
}

func TestDeleteQuote(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)
	path := "/api/quote/" + itoa(id)

	rec := env.do(t, "bob", http.MethodDelete, path, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"Either this is not your quote or this quote does not exist."}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, env.do(t, "alice", http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "alice", http.MethodGet, path, "").Code)
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t, true)
	var ids []int64
	for i := 0; i < 12; i++ {
		ids = append(ids, env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"line"}]}`))
	}

	page := decode[[]model.Quote](t, env.do(t, "dave", http.MethodGet, "/api/quotes", ""))
	require.Len(t, page, 10)
	assert.Equal(t, ids[11], page[0].ID)

	next := decode[[]model.Quote](t, env.do(t, "dave", http.MethodGet, "/api/quotes?lt="+itoa(page[9].ID), ""))
	require.Len(t, next, 2)
	assert.Equal(t, ids[1], next[0].ID)

	all := decode[[]model.Quote](t, env.do(t, "dave", http.MethodGet, "/api/quotes?limit=-1", ""))
	assert.Len(t, all, 12)
}

func TestUsersAndVersion(t *testing.T) {
	env := newTestEnv(t, true)

	users := decode[[]model.User](t, env.do(t, "dave", http.MethodGet, "/api/users", ""))
	require.Len(t, users, 5)
	assert.Equal(t, "alice", users[0].UID)

	build := decode[handler.BuildInfo](t, env.do(t, "dave", http.MethodGet, "/api/version", ""))
	assert.Equal(t, "deadbeef", build.Commit)
}

func TestMetricsRecordRoutes(t *testing.T) {
	env := newTestEnv(t, true)
	env.createQuote(t, "alice", `{"shards":[{"speaker":"bob","body":"hi"}]}`)

	body := env.do(t, "", http.MethodGet, "/metrics", "").Body.String()

	assert.Contains(t, body, `quotefault_operations_total{operation="create_quote",outcome="ok"} 1`)
	assert.Contains(t, body, `route="/api/quote"`)
}

func TestRun_ShutdownHooks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls []string
	srv := server.New(config.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, server.Dependencies{
		Store: nil,
		Auth:  auth.NewAuthenticator(nil, true),
		OnShutdown: []func(context.Context) error{
			func(context.Context) error { calls = append(calls, "notify"); return nil },
			func(context.Context) error { calls = append(calls, "store"); return nil },
		},
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, srv.Run(ctx))
	assert.Equal(t, []string{"notify", "store"}, calls)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
