package service

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
	"github.com/sakif/quotefault/internal/visibility"
)

// MinHideReasonLength is the shortest reason accepted when hiding a quote.
// Reports have no minimum.
const MinHideReasonLength = 10

const MsgShortHideReason = "Reason must be at least 10 characters"

// ModerationService implements hide, report and resolve.
//
// REPORTER PRIVACY:
// A reporter is stored only as SHA3-256(username || salt). The hash is
// enough to reject a second report from the same person on the same quote,
// and a leaked table cannot be joined back to usernames without the salt.
type ModerationService struct {
	repo     repository.ModerationRepository
	salt     []byte
	observer Observer
	logger   *slog.Logger
}

// NewModerationService wires a ModerationService. observer may be nil.
func NewModerationService(repo repository.ModerationRepository, salt string, observer Observer, logger *slog.Logger) *ModerationService {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ModerationService{
		repo:     repo,
		salt:     []byte(salt),
		observer: observer,
		logger:   logger,
	}
}

// Hide marks a quote hidden. Privileged viewers may hide any quote, others
// only a quote they are a speaker on.
func (s *ModerationService) Hide(ctx context.Context, id int64, viewer model.Viewer, reason string) (err error) {
	defer func() { s.observer.Operation("hide_quote", err) }()

	if utf8.RuneCountInString(reason) < MinHideReasonLength {
		return apperror.ValidationFailed("reason", MsgShortHideReason)
	}
	if err := s.repo.HideQuote(ctx, id, viewer, reason); err != nil {
		return err
	}
	s.logger.Info("quote hidden", slog.Int64("quote_id", id), slog.String("by", viewer.Username))
	return nil
}

// Report files an anonymous report against a visible quote.
func (s *ModerationService) Report(ctx context.Context, id int64, viewer model.Viewer, reason string) (err error) {
	defer func() { s.observer.Operation("report_quote", err) }()

	if err := s.repo.ReportQuote(ctx, id, s.ReporterHash(viewer.Username), reason); err != nil {
		return err
	}
	s.logger.Info("quote reported", slog.Int64("quote_id", id))
	return nil
}

// Resolve closes every open report on a quote. With hide set the quote is
// hidden in the same transaction using the oldest open report's reason.
func (s *ModerationService) Resolve(ctx context.Context, id int64, viewer model.Viewer, hide bool) (err error) {
	defer func() { s.observer.Operation("resolve_reports", err) }()

	if !viewer.Privileged {
		return apperror.Forbidden("admin privileges required")
	}
	if err := s.repo.ResolveReports(ctx, id, viewer, hide); err != nil {
		return err
	}
	s.logger.Info("reports resolved",
		slog.Int64("quote_id", id),
		slog.String("by", viewer.Username),
		slog.Bool("hidden", hide),
	)
	return nil
}

// ListReports returns every quote with open reports, grouped.
func (s *ModerationService) ListReports(ctx context.Context, viewer model.Viewer) ([]model.ReportedQuote, error) {
	if !viewer.Privileged {
		return nil, apperror.Forbidden("admin privileges required")
	}
	rows, err := s.repo.ListOpenReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return visibility.GroupReports(rows), nil
}

// ReporterHash is the stored identity of a reporter.
func (s *ModerationService) ReporterHash(username string) []byte {
	h := sha3.New256()
	h.Write([]byte(username))
	h.Write(s.salt)
	return h.Sum(nil)
}
