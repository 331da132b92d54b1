package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
	"github.com/sakif/quotefault/internal/repository"
)

// HideQuote inserts the hidden record of a quote. A privileged actor may hide
// any quote; anyone else only a quote they are a speaker on. A second hide
// affects zero rows and is rejected.
func (db *DB) HideQuote(ctx context.Context, id int64, actor model.Viewer, reason string) error {
	return db.hide(ctx, db.conn, id, actor, reason)
}

func (db *DB) hide(ctx context.Context, q querier, id int64, actor model.Viewer, reason string) error {
	query := `
		INSERT INTO hidden (quote_id, reason, actor, created_at)
		SELECT q.id, ` + db.d.param(kindText) + `, ` + db.d.param(kindText) + `, ` + db.d.param(kindTime) + `
		FROM quotes q
		WHERE q.id = ?`
	args := []any{reason, actor.Username, db.timestamp(), id}
	if !actor.Privileged {
		query += ` AND EXISTS (SELECT 1 FROM shards s WHERE s.quote_id = q.id AND s.speaker = ?)`
		args = append(args, actor.Username)
	}
	query += `
		ON CONFLICT (quote_id) DO NOTHING`

	n, err := db.exec(ctx, q, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: hiding quote %d: %w", id, err)
	}
	if n == 0 {
		return apperror.Rejected(repository.MsgHideRejected)
	}
	return nil
}

// ReportQuote files a report against an existing, non-hidden quote. The
// reporter is only ever stored as reporterHash; a second report with the same
// hash is rejected.
func (db *DB) ReportQuote(ctx context.Context, id int64, reporterHash []byte, reason string) error {
	query := `
		INSERT INTO reports (quote_id, reason, submitter_hash, created_at)
		SELECT q.id, ` + db.d.param(kindText) + `, ` + db.d.param(kindBytes) + `, ` + db.d.param(kindTime) + `
		FROM quotes q
		WHERE q.id = ? AND ` + notHidden + `
		ON CONFLICT (quote_id, submitter_hash) DO NOTHING`

	n, err := db.exec(ctx, db.conn, query, reason, reporterHash, db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("sqlstore: reporting quote %d: %w", id, err)
	}
	if n == 0 {
		return apperror.Rejected(repository.MsgReportRejected)
	}
	return nil
}

// ResolveReports marks every open report of a quote as resolved by resolver.
// With hide set, the quote is also hidden using the oldest open report's
// reason. Both writes share one transaction: if the hide is rejected (the
// quote is already hidden), the reports stay open.
func (db *DB) ResolveReports(ctx context.Context, id int64, resolver model.Viewer, hide bool) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var reason string
		if hide {
			err := tx.QueryRowContext(ctx, db.d.rebind(`
				SELECT reason FROM reports
				WHERE quote_id = ? AND resolver IS NULL
				ORDER BY id ASC
				LIMIT 1`), id).Scan(&reason)
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.Rejected(repository.MsgResolveRejected)
			}
			if err != nil {
				return fmt.Errorf("sqlstore: reading report reason of quote %d: %w", id, err)
			}
		}

		n, err := db.exec(ctx, tx,
			`UPDATE reports SET resolver = ? WHERE quote_id = ? AND resolver IS NULL`,
			resolver.Username, id)
		if err != nil {
			return fmt.Errorf("sqlstore: resolving reports of quote %d: %w", id, err)
		}
		if n == 0 {
			return apperror.Rejected(repository.MsgResolveRejected)
		}

		if hide {
			return db.hide(ctx, tx, id, resolver, reason)
		}
		return nil
	})
}

// ListOpenReports returns one row per open report, ordered by quote id and
// then report id.
func (db *DB) ListOpenReports(ctx context.Context) ([]model.ReportRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT q.id, q.submitter, q.timestamp,
		       CASE WHEN h.quote_id IS NULL THEN 0 ELSE 1 END,
		       r.id, r.reason, r.created_at
		FROM reports r
		JOIN quotes q ON q.id = r.quote_id
		LEFT JOIN hidden h ON h.quote_id = q.id
		WHERE r.resolver IS NULL
		ORDER BY q.id ASC, r.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: querying open reports: %w", err)
	}
	defer rows.Close()

	var out []model.ReportRow
	for rows.Next() {
		var (
			r      model.ReportRow
			hidden int64
		)
		if err := rows.Scan(
			&r.QuoteID, &r.QuoteSubmitter, scanTime{&r.QuoteTimestamp}, &hidden,
			&r.ReportID, &r.ReportReason, scanTime{&r.ReportTimestamp},
		); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning report row: %w", err)
		}
		r.QuoteHidden = hidden != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating report rows: %w", err)
	}
	return out, nil
}
