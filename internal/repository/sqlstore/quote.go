package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
)

var (
	_ repository.QuoteRepository      = (*DB)(nil)
	_ repository.ModerationRepository = (*DB)(nil)
)

// VISIBILITY IN SQL:
// The default predicate mirrors visibility.Visible. A privileged viewer sees
// everything, so no clause is added for them. Everyone else sees a quote when
// it has no hidden record, or when they are an involved party (the submitter
// or one of the speakers).
const (
	isHidden    = `EXISTS (SELECT 1 FROM hidden hv WHERE hv.quote_id = q.id)`
	notHidden   = `NOT ` + isHidden
	isInvolved  = `(q.submitter = ? OR EXISTS (SELECT 1 FROM shards sv WHERE sv.quote_id = q.id AND sv.speaker = ?))`
	visibleToMe = `(` + notHidden + ` OR ` + isInvolved + `)`
)

// visibilityClause returns the default visibility predicate for viewer, or
// "" for a privileged viewer.
func visibilityClause(viewer model.Viewer) (string, []any) {
	if viewer.Privileged {
		return "", nil
	}
	return visibleToMe, []any{viewer.Username, viewer.Username}
}

// hiddenClause applies the tri-state hidden filter of a listing.
func hiddenClause(hidden *bool, viewer model.Viewer) (string, []any) {
	switch {
	case hidden == nil:
		return visibilityClause(viewer)
	case !*hidden:
		return notHidden, nil
	case viewer.Privileged:
		return isHidden, nil
	default:
		return isHidden + ` AND ` + isInvolved, []any{viewer.Username, viewer.Username}
	}
}

// escapeLike escapes the LIKE metacharacters so q is matched literally.
func escapeLike(q string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
}

// selectRows wraps a page subquery (returning quote ids) with the joins that
// flatten each quote into one row per shard, annotated for viewer.
//
// ROW ORDER:
// (timestamp desc, id desc, index asc). Reconstruction groups by id and does
// not depend on it, but callers receiving raw rows do.
func (db *DB) selectRows(ctx context.Context, page string, pageArgs []any, viewer model.Viewer) ([]model.QuoteRow, error) {
	query := `
		SELECT q.id, s."index", q.submitter, q.timestamp, s.body, s.speaker,
		       h.reason, h.actor, v.vote,
		       COALESCE((SELECT SUM(CASE WHEN sc.vote = 'upvote' THEN 1 ELSE -1 END)
		                 FROM votes sc WHERE sc.quote_id = q.id), 0) AS score,
		       CASE WHEN f.quote_id IS NULL THEN 0 ELSE 1 END AS favorited
		FROM (` + page + `) p
		JOIN quotes q ON q.id = p.id
		JOIN shards s ON s.quote_id = q.id
		LEFT JOIN hidden h ON h.quote_id = q.id
		LEFT JOIN votes v ON v.quote_id = q.id AND v.submitter = ?
		LEFT JOIN favorites f ON f.quote_id = q.id AND f.username = ?
		ORDER BY q.timestamp DESC, q.id DESC, s."index" ASC`

	args := append(append([]any{}, pageArgs...), viewer.Username, viewer.Username)

	rows, err := db.conn.QueryContext(ctx, db.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: querying quotes: %w", err)
	}
	defer rows.Close()

	var out []model.QuoteRow
	for rows.Next() {
		var (
			r         model.QuoteRow
			reason    sql.NullString
			actor     sql.NullString
			vote      sql.NullString
			favorited int64
		)
		if err := rows.Scan(
			&r.ID, &r.Index, &r.Submitter, scanTime{&r.Timestamp}, &r.Body, &r.Speaker,
			&reason, &actor, &vote, &r.Score, &favorited,
		); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning quote row: %w", err)
		}
		if reason.Valid {
			r.HiddenReason = &reason.String
		}
		if actor.Valid {
			r.HiddenActor = &actor.String
		}
		if vote.Valid {
			v := model.VoteValue(vote.String)
			r.Vote = &v
		}
		r.Favorited = favorited != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating quote rows: %w", err)
	}
	return out, nil
}

// GetQuote returns the rows of a single quote if viewer may see it.
// An absent or invisible quote yields no rows and no error.
func (db *DB) GetQuote(ctx context.Context, id int64, viewer model.Viewer) ([]model.QuoteRow, error) {
	page := `SELECT q.id FROM quotes q WHERE q.id = ?`
	args := []any{id}
	if clause, cargs := visibilityClause(viewer); clause != "" {
		page += ` AND ` + clause
		args = append(args, cargs...)
	}
	return db.selectRows(ctx, page, args, viewer)
}

// ListQuotes returns the rows of one page of quotes matching filter.
func (db *DB) ListQuotes(ctx context.Context, filter repository.QuoteFilter, viewer model.Viewer) ([]model.QuoteRow, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, a ...any) {
		where = append(where, clause)
		args = append(args, a...)
	}

	if filter.Lt > 0 {
		add(`q.id < ?`, filter.Lt)
	}
	if filter.Submitter != "" {
		add(`q.submitter = ?`, filter.Submitter)
	}
	if filter.Involved != "" {
		add(isInvolved, filter.Involved, filter.Involved)
	}

	// Body and speaker filters must hold on the same shard.
	if filter.Query != "" || filter.Speaker != "" {
		clause := `EXISTS (SELECT 1 FROM shards sf WHERE sf.quote_id = q.id`
		var sargs []any
		if filter.Query != "" {
			clause += ` AND ` + db.d.contains(`sf.body`)
			sargs = append(sargs, "%"+escapeLike(filter.Query)+"%")
		}
		if filter.Speaker != "" {
			clause += ` AND sf.speaker = ?`
			sargs = append(sargs, filter.Speaker)
		}
		add(clause+`)`, sargs...)
	}

	if filter.Favorited {
		add(`EXISTS (SELECT 1 FROM favorites ff WHERE ff.quote_id = q.id AND ff.username = ?)`, viewer.Username)
	}

	if clause, cargs := hiddenClause(filter.Hidden, viewer); clause != "" {
		add(clause, cargs...)
	}

	page := `SELECT q.id FROM quotes q`
	if len(where) > 0 {
		page += ` WHERE ` + strings.Join(where, ` AND `)
	}
	page += ` ORDER BY q.id DESC`
	if limit := filter.EffectiveLimit(); limit > 0 {
		page += ` LIMIT ?`
		args = append(args, limit)
	}

	return db.selectRows(ctx, page, args, viewer)
}

// CreateQuote inserts a quote and its shards, indexed 1..n in the order given,
// as one transaction. Validation is the caller's job.
func (db *DB) CreateQuote(ctx context.Context, submitter string, shards []model.NewShard) (int64, error) {
	var id int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			db.d.rebind(`INSERT INTO quotes (submitter, timestamp) VALUES (?, ?) RETURNING id`),
			submitter, db.timestamp(),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("sqlstore: inserting quote: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			db.d.rebind(`INSERT INTO shards (quote_id, "index", body, speaker) VALUES (?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("sqlstore: preparing shard insert: %w", err)
		}
		defer stmt.Close()

		for i, s := range shards {
			if _, err := stmt.ExecContext(ctx, id, i+1, s.Body, s.Speaker); err != nil {
				return fmt.Errorf("sqlstore: inserting shard %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteQuote removes a quote owned by submitter together with everything
// that references it.
func (db *DB) DeleteQuote(ctx context.Context, id int64, submitter string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"shards", "votes", "favorites", "hidden", "reports"} {
			_, err := db.exec(ctx, tx,
				`DELETE FROM `+table+` WHERE quote_id IN (SELECT id FROM quotes WHERE id = ? AND submitter = ?)`,
				id, submitter)
			if err != nil {
				return fmt.Errorf("sqlstore: deleting %s of quote %d: %w", table, id, err)
			}
		}

		n, err := db.exec(ctx, tx, `DELETE FROM quotes WHERE id = ? AND submitter = ?`, id, submitter)
		if err != nil {
			return fmt.Errorf("sqlstore: deleting quote %d: %w", id, err)
		}
		if n == 0 {
			return apperror.Rejected(repository.MsgDeleteRejected)
		}
		return nil
	})
}
