package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/directory"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// The mocks record what the service asked for and return canned rows or
// errors. Store semantics (visibility SQL, uniqueness) are covered by the
// sqlstore tests; here we only check the service's own rules.

type createCall struct {
	submitter string
	shards    []model.NewShard
}

type mockQuoteRepo struct {
	rows    []model.QuoteRow
	readErr error

	nextID  int64
	created []createCall

	// writeErr is returned by every mutation when set.
	writeErr error
	calls    []string
}

var _ repository.QuoteRepository = (*mockQuoteRepo)(nil)

func (m *mockQuoteRepo) GetQuote(_ context.Context, id int64, _ model.Viewer) ([]model.QuoteRow, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []model.QuoteRow
	for _, r := range m.rows {
		if r.ID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockQuoteRepo) ListQuotes(_ context.Context, _ repository.QuoteFilter, _ model.Viewer) ([]model.QuoteRow, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.rows, nil
}

func (m *mockQuoteRepo) CreateQuote(_ context.Context, submitter string, shards []model.NewShard) (int64, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.nextID++
	m.created = append(m.created, createCall{submitter: submitter, shards: shards})
	return m.nextID, nil
}

func (m *mockQuoteRepo) record(call string) error {
	m.calls = append(m.calls, call)
	return m.writeErr
}

func (m *mockQuoteRepo) DeleteQuote(_ context.Context, id int64, submitter string) error {
	return m.record(fmt.Sprintf("delete %d %s", id, submitter))
}

func (m *mockQuoteRepo) Vote(_ context.Context, id int64, viewer model.Viewer, vote model.VoteValue) error {
	return m.record(fmt.Sprintf("vote %d %s %s", id, viewer.Username, vote))
}

func (m *mockQuoteRepo) Unvote(_ context.Context, id int64, viewer model.Viewer) error {
	return m.record(fmt.Sprintf("unvote %d %s", id, viewer.Username))
}

func (m *mockQuoteRepo) Favorite(_ context.Context, id int64, username string) error {
	return m.record(fmt.Sprintf("favorite %d %s", id, username))
}

func (m *mockQuoteRepo) Unfavorite(_ context.Context, id int64, username string) error {
	return m.record(fmt.Sprintf("unfavorite %d %s", id, username))
}

type mockModerationRepo struct {
	reportRows []model.ReportRow
	err        error
	calls      []string
	hashes     [][]byte
}

var _ repository.ModerationRepository = (*mockModerationRepo)(nil)

func (m *mockModerationRepo) HideQuote(_ context.Context, id int64, actor model.Viewer, reason string) error {
	m.calls = append(m.calls, fmt.Sprintf("hide %d %s %s", id, actor.Username, reason))
	return m.err
}

func (m *mockModerationRepo) ReportQuote(_ context.Context, id int64, hash []byte, reason string) error {
	m.calls = append(m.calls, fmt.Sprintf("report %d %s", id, reason))
	m.hashes = append(m.hashes, hash)
	return m.err
}

func (m *mockModerationRepo) ResolveReports(_ context.Context, id int64, resolver model.Viewer, hide bool) error {
	m.calls = append(m.calls, fmt.Sprintf("resolve %d %s %t", id, resolver.Username, hide))
	return m.err
}

func (m *mockModerationRepo) ListOpenReports(context.Context) ([]model.ReportRow, error) {
	return m.reportRows, m.err
}

// =========================================================================
// MOCK COLLABORATORS
// =========================================================================

// brokenDirectory fails every call the way the HTTP client does when the
// directory cannot be reached.
type brokenDirectory struct{}

func (brokenDirectory) Resolve(context.Context, []string) (map[string]string, error) {
	return nil, fmt.Errorf("GET /users: %w", directory.ErrUnavailable)
}

func (brokenDirectory) QuotableMembers(context.Context) ([]model.User, error) {
	return nil, fmt.Errorf("GET /members/quotable: %w", directory.ErrUnavailable)
}

type dispatched struct {
	username, message string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []dispatched
}

func (r *recordingDispatcher) Dispatch(_ context.Context, username, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, dispatched{username, message})
}

type recordingObserver struct {
	ops map[string][]error
}

func (r *recordingObserver) Operation(name string, err error) {
	if r.ops == nil {
		r.ops = make(map[string][]error)
	}
	r.ops[name] = append(r.ops[name], err)
}

func ptr[T any](v T) *T { return &v }

// testDirectory knows alice, bob, carol and dave; dave is not quotable and
// "bot" is a quotable account with a malformed uid.
func testDirectory() *directory.Static {
	return directory.NewStatic([]directory.Member{
		{UID: "alice", CN: "Alice"},
		{UID: "bob", CN: "Bob"},
		{UID: "carol", CN: "Carol"},
		{UID: "dave", CN: "Dave", Quotable: ptr(false)},
		{UID: "-bot", CN: "Bot"},
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func assertKind(t *testing.T, err, kind error, message string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want %v", err, kind)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an *AppError", err)
	}
	if message != "" && appErr.Message != message {
		t.Errorf("message = %q, want %q", appErr.Message, message)
	}
}
