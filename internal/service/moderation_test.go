package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
)

func newTestModerationService(t *testing.T) (*ModerationService, *mockModerationRepo, *recordingObserver) {
	t.Helper()
	repo := &mockModerationRepo{}
	obs := &recordingObserver{}
	return NewModerationService(repo, "pepper-salt", obs, testLogger()), repo, obs
}

var (
	member    = model.Viewer{Username: "bob"}
	moderator = model.Viewer{Username: "root", Privileged: true}
)

func TestHide(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)

	if err := svc.Hide(context.Background(), 7, member, "Inappropriate content"); err != nil {
		t.Fatalf("Hide() error = %v", err)
	}
	if len(repo.calls) != 1 || repo.calls[0] != "hide 7 bob Inappropriate content" {
		t.Errorf("calls = %v", repo.calls)
	}
}

func TestHide_ShortReason(t *testing.T) {
	svc, repo, obs := newTestModerationService(t)

	err := svc.Hide(context.Background(), 7, moderator, "too short")

	assertKind(t, err, apperror.ErrValidation, MsgShortHideReason)
	if len(repo.calls) != 0 {
		t.Error("short reason must not reach the store")
	}
	if len(obs.ops["hide_quote"]) != 1 {
		t.Errorf("observer saw %v", obs.ops)
	}
}

func TestHide_ReasonCountsCharactersNotBytes(t *testing.T) {
	svc, _, _ := newTestModerationService(t)

	// Nine runes, more than ten bytes.
	err := svc.Hide(context.Background(), 7, moderator, "ééééééééé")

	assertKind(t, err, apperror.ErrValidation, MsgShortHideReason)
}

func TestHide_Rejected(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)
	repo.err = apperror.Rejected(repository.MsgHideRejected)

	err := svc.Hide(context.Background(), 7, member, "not my words at all")

	assertKind(t, err, apperror.ErrConflict, repository.MsgHideRejected)
}

func TestReport_StoresSaltedHash(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)

	if err := svc.Report(context.Background(), 9, member, "spam"); err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	want := sha3.Sum256([]byte("bobpepper-salt"))
	if len(repo.hashes) != 1 || !bytes.Equal(repo.hashes[0], want[:]) {
		t.Errorf("hash = %x, want %x", repo.hashes, want)
	}
	if bytes.Contains(repo.hashes[0], []byte("bob")) {
		t.Error("raw username leaked into the stored hash")
	}
}

func TestReporterHash(t *testing.T) {
	svc, _, _ := newTestModerationService(t)
	other := NewModerationService(&mockModerationRepo{}, "another-salt", nil, testLogger())

	if !bytes.Equal(svc.ReporterHash("bob"), svc.ReporterHash("bob")) {
		t.Error("hash must be stable for the same reporter")
	}
	if bytes.Equal(svc.ReporterHash("bob"), svc.ReporterHash("carol")) {
		t.Error("different reporters must hash differently")
	}
	if bytes.Equal(svc.ReporterHash("bob"), other.ReporterHash("bob")) {
		t.Error("the salt must change the hash")
	}
	if len(svc.ReporterHash("bob")) != 32 {
		t.Errorf("hash length = %d, want 32", len(svc.ReporterHash("bob")))
	}
}

func TestReport_ShortReasonAllowed(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)

	if err := svc.Report(context.Background(), 9, member, "bad"); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if len(repo.calls) != 1 {
		t.Errorf("calls = %v", repo.calls)
	}
}

func TestResolve(t *testing.T) {
	svc, repo, obs := newTestModerationService(t)

	if err := svc.Resolve(context.Background(), 9, moderator, true); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(repo.calls) != 1 || repo.calls[0] != "resolve 9 root true" {
		t.Errorf("calls = %v", repo.calls)
	}
	if errs := obs.ops["resolve_reports"]; len(errs) != 1 || errs[0] != nil {
		t.Errorf("observer saw %v", errs)
	}
}

func TestResolve_RequiresPrivilege(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)

	err := svc.Resolve(context.Background(), 9, member, false)

	assertKind(t, err, apperror.ErrForbidden, "")
	if len(repo.calls) != 0 {
		t.Error("unprivileged resolve must not reach the store")
	}
}

func TestResolve_Rejected(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)
	repo.err = apperror.Rejected(repository.MsgResolveRejected)

	err := svc.Resolve(context.Background(), 9, moderator, false)

	assertKind(t, err, apperror.ErrConflict, repository.MsgResolveRejected)
}

func TestListReports(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	repo.reportRows = []model.ReportRow{
		{QuoteID: 3, ReportID: 1, ReportReason: "spam", ReportTimestamp: ts},
		{QuoteID: 3, ReportID: 4, ReportReason: "rude", ReportTimestamp: ts},
		{QuoteID: 8, ReportID: 2, ReportReason: "off topic", ReportTimestamp: ts},
	}

	got, err := svc.ListReports(context.Background(), moderator)
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(got) != 2 || got[0].QuoteID != 3 || len(got[0].Reports) != 2 || got[1].QuoteID != 8 {
		t.Fatalf("reports = %+v", got)
	}
	if got[0].Reports[1].Reason != "rude" {
		t.Errorf("reports of quote 3 out of order: %+v", got[0].Reports)
	}
}

func TestListReports_RequiresPrivilege(t *testing.T) {
	svc, _, _ := newTestModerationService(t)

	_, err := svc.ListReports(context.Background(), member)

	assertKind(t, err, apperror.ErrForbidden, "")
}

func TestListReports_StoreError(t *testing.T) {
	svc, repo, _ := newTestModerationService(t)
	repo.err = errors.New("timeout")

	if _, err := svc.ListReports(context.Background(), moderator); !errors.Is(err, repo.err) {
		t.Fatalf("error = %v, want wrapped store error", err)
	}
}
