package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/directory"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/notify"
	"github.com/sakif/quotefault/internal/repository"
	"github.com/sakif/quotefault/internal/visibility"
)

// Validation messages. The Create ones are listed in the order the checks run.
const (
	MsgNoShards           = "No quote shards specified"
	MsgTooManyShards      = "Maximum of 6 shards exceeded."
	MsgUnquotableSpeaker  = "One or more speakers is unquotable"
	MsgBadSpeakerFormat   = "Invalid speaker username format specified."
	MsgSelfQuote          = "Erm... maybe don't quote yourself?"
	MsgBadSubmitterFormat = "Invalid submitter username specified."
	MsgUnknownUsers       = "Some users submitted do not exist."
	MsgInvalidVote        = "Invalid vote value"
)

// QuoteService implements reading, creating and voting on quotes.
type QuoteService struct {
	repo     repository.QuoteRepository
	dir      directory.Directory
	notifier Dispatcher
	observer Observer
	logger   *slog.Logger
}

// NewQuoteService wires a QuoteService. notifier and observer may be nil.
func NewQuoteService(
	repo repository.QuoteRepository,
	dir directory.Directory,
	notifier Dispatcher,
	observer Observer,
	logger *slog.Logger,
) *QuoteService {
	if notifier == nil {
		notifier = noopDispatcher{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &QuoteService{
		repo:     repo,
		dir:      dir,
		notifier: notifier,
		observer: observer,
		logger:   logger,
	}
}

// Get returns a single quote as viewer sees it. A quote that is absent, not
// visible, or whose submitter or first speaker left the directory is
// reported as not found.
func (s *QuoteService) Get(ctx context.Context, id int64, viewer model.Viewer) (model.Quote, error) {
	rows, err := s.repo.GetQuote(ctx, id, viewer)
	if err != nil {
		return model.Quote{}, fmt.Errorf("getting quote %d: %w", id, err)
	}

	quotes, err := visibility.Build(ctx, rows, viewer, s.dir)
	if err != nil {
		return model.Quote{}, directoryError(err)
	}
	if len(quotes) == 0 {
		return model.Quote{}, apperror.NotFound("quote", strconv.FormatInt(id, 10))
	}
	return quotes[0], nil
}

// List returns a page of quotes matching filter, newest first.
func (s *QuoteService) List(ctx context.Context, filter repository.QuoteFilter, viewer model.Viewer) ([]model.Quote, error) {
	rows, err := s.repo.ListQuotes(ctx, filter, viewer)
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}

	quotes, err := visibility.Build(ctx, rows, viewer, s.dir)
	if err != nil {
		return nil, directoryError(err)
	}
	return quotes, nil
}

// Create validates and stores a new quote submitted by submitter, then
// notifies every speaker. Validation runs fully before anything is written.
//
// CHECK ORDER:
//  1. shard count (1..6)
//  2. per shard: speaker quotable, speaker format, not self
//  3. submitter format
//  4. every identifier exists in the directory
//
// Notifications are dispatched only after the commit and never fail the call.
func (s *QuoteService) Create(ctx context.Context, submitter string, shards []model.NewShard) (id int64, err error) {
	defer func() { s.observer.Operation("create_quote", err) }()

	if len(shards) == 0 {
		return 0, apperror.ValidationFailed("shards", MsgNoShards)
	}
	if len(shards) > model.MaxShards {
		return 0, apperror.ValidationFailed("shards", MsgTooManyShards)
	}

	members, err := s.dir.QuotableMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching quotable members: %w", directoryError(err))
	}
	quotable := make(map[string]struct{}, len(members))
	for _, m := range members {
		quotable[m.UID] = struct{}{}
	}

	for _, shard := range shards {
		if _, ok := quotable[shard.Speaker]; !ok {
			return 0, apperror.ValidationFailed("speaker", MsgUnquotableSpeaker)
		}
		if !ValidUsername(shard.Speaker) {
			return 0, apperror.ValidationFailed("speaker", MsgBadSpeakerFormat)
		}
		if shard.Speaker == submitter {
			return 0, apperror.ValidationFailed("speaker", MsgSelfQuote)
		}
	}
	if !ValidUsername(submitter) {
		return 0, apperror.ValidationFailed("submitter", MsgBadSubmitterFormat)
	}

	uids := make([]string, 0, len(shards)+1)
	for _, shard := range shards {
		uids = append(uids, shard.Speaker)
	}
	uids = append(uids, submitter)
	exist, err := directory.AllExist(ctx, s.dir, uids)
	if err != nil {
		return 0, fmt.Errorf("checking users exist: %w", directoryError(err))
	}
	if !exist {
		return 0, apperror.ValidationFailed("speaker", MsgUnknownUsers)
	}

	id, err = s.repo.CreateQuote(ctx, submitter, shards)
	if err != nil {
		s.logger.Error("failed to create quote",
			slog.String("submitter", submitter),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("creating quote: %w", err)
	}

	s.logger.Info("quote created",
		slog.Int64("quote_id", id),
		slog.String("submitter", submitter),
		slog.Int("shards", len(shards)),
	)

	message := notify.QuotedMessage(submitter)
	for _, shard := range shards {
		s.notifier.Dispatch(ctx, shard.Speaker, message)
	}
	return id, nil
}

// Delete removes a quote and everything attached to it. Only the submitter
// may delete.
func (s *QuoteService) Delete(ctx context.Context, id int64, viewer model.Viewer) (err error) {
	defer func() { s.observer.Operation("delete_quote", err) }()

	if err := s.repo.DeleteQuote(ctx, id, viewer.Username); err != nil {
		return err
	}
	s.logger.Info("quote deleted", slog.Int64("quote_id", id), slog.String("by", viewer.Username))
	return nil
}

// Vote records viewer's vote on a quote they can see, replacing any
// previous vote.
func (s *QuoteService) Vote(ctx context.Context, id int64, viewer model.Viewer, vote model.VoteValue) (err error) {
	defer func() { s.observer.Operation("vote", err) }()

	if !vote.Valid() {
		return apperror.ValidationFailed("vote", MsgInvalidVote)
	}
	return s.repo.Vote(ctx, id, viewer, vote)
}

// Unvote removes viewer's vote.
func (s *QuoteService) Unvote(ctx context.Context, id int64, viewer model.Viewer) (err error) {
	defer func() { s.observer.Operation("unvote", err) }()
	return s.repo.Unvote(ctx, id, viewer)
}

// Favorite adds a quote to viewer's favorites. Any existing quote id may be
// favorited, visible or not.
func (s *QuoteService) Favorite(ctx context.Context, id int64, viewer model.Viewer) (err error) {
	defer func() { s.observer.Operation("favorite", err) }()
	return s.repo.Favorite(ctx, id, viewer.Username)
}

func (s *QuoteService) Unfavorite(ctx context.Context, id int64, viewer model.Viewer) (err error) {
	defer func() { s.observer.Operation("unfavorite", err) }()
	return s.repo.Unfavorite(ctx, id, viewer.Username)
}
