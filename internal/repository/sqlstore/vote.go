package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
)

// Vote records or replaces viewer's vote on a quote the viewer can see.
//
// UPSERT:
// The INSERT ... SELECT inserts nothing when the quote is absent or invisible.
// ON CONFLICT turns a second vote into an update, so "one vote per voter"
// holds under concurrent requests without application locking.
func (db *DB) Vote(ctx context.Context, id int64, viewer model.Viewer, vote model.VoteValue) error {
	query := `
		INSERT INTO votes (quote_id, submitter, vote, created_at)
		SELECT q.id, ` + db.d.param(kindText) + `, ` + db.d.param(kindText) + `, ` + db.d.param(kindTime) + `
		FROM quotes q
		WHERE q.id = ?`
	args := []any{viewer.Username, string(vote), db.timestamp(), id}
	if clause, cargs := visibilityClause(viewer); clause != "" {
		query += ` AND ` + clause
		args = append(args, cargs...)
	}
	query += `
		ON CONFLICT (quote_id, submitter)
		DO UPDATE SET vote = excluded.vote, created_at = excluded.created_at`

	n, err := db.exec(ctx, db.conn, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: voting on quote %d: %w", id, err)
	}
	if n == 0 {
		return apperror.Rejected(repository.MsgVoteRejected)
	}
	return nil
}

// Unvote removes viewer's vote from a quote the viewer can see.
func (db *DB) Unvote(ctx context.Context, id int64, viewer model.Viewer) error {
	query := `
		DELETE FROM votes
		WHERE submitter = ? AND quote_id IN (SELECT q.id FROM quotes q WHERE q.id = ?`
	args := []any{viewer.Username, id}
	if clause, cargs := visibilityClause(viewer); clause != "" {
		query += ` AND ` + clause
		args = append(args, cargs...)
	}
	query += `)`

	n, err := db.exec(ctx, db.conn, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: removing vote on quote %d: %w", id, err)
	}
	if n == 0 {
		return apperror.Rejected(repository.MsgVoteRejected)
	}
	return nil
}

// Favorite marks a quote as favorited by username. Any existing quote may be
// favorited; visibility is not checked.
func (db *DB) Favorite(ctx context.Context, id int64, username string) error {
	query := `
		INSERT INTO favorites (quote_id, username, created_at)
		SELECT q.id, ` + db.d.param(kindText) + `, ` + db.d.param(kindTime) + `
		FROM quotes q
		WHERE q.id = ?
		ON CONFLICT (quote_id, username) DO NOTHING`

	n, err := db.exec(ctx, db.conn, query, username, db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("sqlstore: favoriting quote %d: %w", id, err)
	}
	if n == 0 {
		return apperror.Rejected(repository.MsgFavoriteRejected)
	}
	return nil
}

// Unfavorite removes username's favorite on a quote.
func (db *DB) Unfavorite(ctx context.Context, id int64, username string) error {
	n, err := db.exec(ctx, db.conn,
		`DELETE FROM favorites WHERE quote_id = ? AND username = ?`, id, username)
	if err != nil {
		return fmt.Errorf("sqlstore: unfavoriting quote %d: %w", id, err)
	}
	if n == 0 {
		return apperror.Rejected(repository.MsgUnfavoriteRejected)
	}
	return nil
}
