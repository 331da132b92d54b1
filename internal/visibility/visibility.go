// Package visibility turns flattened store rows into the quotes a viewer may
// see.
//
// PIPELINE:
//
//	rows ──Group──▶ quotes (uids only) ──Filter──▶ visible quotes ──Resolve──▶ named quotes
//
// Group buckets rows by quote id instead of trusting the store's row order,
// so a shard can never be attached to the wrong quote.
package visibility

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/quotefault/internal/model"
)

// Resolver maps uids to display names in one batch call. Unknown uids are
// absent from the result.
type Resolver interface {
	Resolve(ctx context.Context, uids []string) (map[string]string, error)
}

// Visible reports whether viewer may see q.
//
// A privileged viewer sees everything. A hidden quote stays visible to its
// involved parties: the submitter and every shard speaker.
func Visible(q model.Quote, viewer model.Viewer) bool {
	if viewer.Privileged || q.Hidden == nil {
		return true
	}
	return Involved(q, viewer.Username)
}

// Involved reports whether username submitted q or speaks in one of its shards.
func Involved(q model.Quote, username string) bool {
	if q.Submitter.UID == username {
		return true
	}
	for _, s := range q.Shards {
		if s.Speaker.UID == username {
			return true
		}
	}
	return false
}

// Group reconstructs quotes from flattened rows.
//
// Quotes keep the order in which their id first appears. Shards inside a
// quote are ordered by index. User fields carry uids only; names are filled
// in by Resolve.
func Group(rows []model.QuoteRow) []model.Quote {
	type bucket struct {
		first  model.QuoteRow
		shards []model.QuoteRow
	}

	var order []int64
	buckets := make(map[int64]*bucket)
	for _, r := range rows {
		b, ok := buckets[r.ID]
		if !ok {
			b = &bucket{first: r}
			buckets[r.ID] = b
			order = append(order, r.ID)
		}
		b.shards = append(b.shards, r)
	}

	quotes := make([]model.Quote, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		sort.SliceStable(b.shards, func(i, j int) bool {
			return b.shards[i].Index < b.shards[j].Index
		})

		q := model.Quote{
			ID:        b.first.ID,
			Timestamp: b.first.Timestamp,
			Score:     b.first.Score,
			Vote:      b.first.Vote,
			Submitter: model.User{UID: b.first.Submitter},
			Favorited: b.first.Favorited,
			Shards:    make([]model.Shard, 0, len(b.shards)),
		}
		if b.first.HiddenReason != nil {
			h := &model.Hidden{Reason: *b.first.HiddenReason}
			if b.first.HiddenActor != nil {
				h.Actor = model.User{UID: *b.first.HiddenActor}
			}
			q.Hidden = h
		}
		for _, s := range b.shards {
			q.Shards = append(q.Shards, model.Shard{
				Body:    s.Body,
				Speaker: model.User{UID: s.Speaker},
			})
		}
		quotes = append(quotes, q)
	}
	return quotes
}

// Filter drops the quotes viewer may not see.
func Filter(quotes []model.Quote, viewer model.Viewer) []model.Quote {
	out := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if Visible(q, viewer) {
			out = append(out, q)
		}
	}
	return out
}

// Resolve fills in display names with a single Resolver call.
//
// Members who left the directory take their content with them: a quote whose
// submitter or first speaker is unknown is skipped, and a later shard whose
// speaker is unknown is dropped. An unknown hidden actor keeps the hidden
// annotation with an empty name so moderation state is never lost.
func Resolve(ctx context.Context, quotes []model.Quote, resolver Resolver) ([]model.Quote, error) {
	if len(quotes) == 0 {
		return quotes, nil
	}

	names, err := resolver.Resolve(ctx, uids(quotes))
	if err != nil {
		return nil, fmt.Errorf("visibility: resolving names: %w", err)
	}

	out := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		cn, ok := names[q.Submitter.UID]
		if !ok || len(q.Shards) == 0 {
			continue
		}
		q.Submitter.CN = cn

		if _, ok := names[q.Shards[0].Speaker.UID]; !ok {
			continue
		}
		shards := make([]model.Shard, 0, len(q.Shards))
		for _, s := range q.Shards {
			cn, ok := names[s.Speaker.UID]
			if !ok {
				continue
			}
			s.Speaker.CN = cn
			shards = append(shards, s)
		}
		q.Shards = shards

		if q.Hidden != nil {
			h := *q.Hidden
			h.Actor.CN = names[h.Actor.UID]
			q.Hidden = &h
		}
		out = append(out, q)
	}
	return out, nil
}

// Build runs the whole pipeline: group, filter for viewer, resolve names.
func Build(ctx context.Context, rows []model.QuoteRow, viewer model.Viewer, resolver Resolver) ([]model.Quote, error) {
	return Resolve(ctx, Filter(Group(rows), viewer), resolver)
}

// uids returns every distinct identifier the quotes reference, sorted.
func uids(quotes []model.Quote) []string {
	seen := make(map[string]struct{})
	add := func(uid string) {
		if uid != "" {
			seen[uid] = struct{}{}
		}
	}
	for _, q := range quotes {
		add(q.Submitter.UID)
		for _, s := range q.Shards {
			add(s.Speaker.UID)
		}
		if q.Hidden != nil {
			add(q.Hidden.Actor.UID)
		}
	}

	out := make([]string, 0, len(seen))
	for uid := range seen {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// GroupReports folds open-report rows into one entry per quote, ordered by
// quote id, reports ordered by report id.
func GroupReports(rows []model.ReportRow) []model.ReportedQuote {
	byQuote := make(map[int64]*model.ReportedQuote)
	var ids []int64
	for _, r := range rows {
		rq, ok := byQuote[r.QuoteID]
		if !ok {
			rq = &model.ReportedQuote{QuoteID: r.QuoteID}
			byQuote[r.QuoteID] = rq
			ids = append(ids, r.QuoteID)
		}
		rq.Reports = append(rq.Reports, model.Report{
			ID:        r.ReportID,
			Reason:    r.ReportReason,
			Timestamp: r.ReportTimestamp,
		})
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.ReportedQuote, 0, len(ids))
	for _, id := range ids {
		rq := byQuote[id]
		sort.SliceStable(rq.Reports, func(i, j int) bool {
			return rq.Reports[i].ID < rq.Reports[j].ID
		})
		out = append(out, *rq)
	}
	return out
}
