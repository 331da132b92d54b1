// Package model defines the data structures used throughout the application.
//
// Two shapes exist for a quote:
//   - QuoteRow is one flattened store row: quote-level columns repeated next to
//     a single shard. The store returns these.
//   - Quote is the reconstructed, per-viewer annotated object handed to callers.
package model

import "time"

// MaxShards is the maximum number of shards a quote may carry.
const MaxShards = 6

// VoteValue is the value of a single vote.
type VoteValue string

const (
	Upvote   VoteValue = "upvote"
	Downvote VoteValue = "downvote"
)

// Valid reports whether v is one of the two enumerated vote values.
func (v VoteValue) Valid() bool {
	return v == Upvote || v == Downvote
}

// NewShard is a shard as submitted by a caller, before it has an index.
type NewShard struct {
	Body    string `json:"body"`
	Speaker string `json:"speaker"`
}

// Shard is one attributed fragment of a reconstructed quote.
type Shard struct {
	Body    string `json:"body"`
	Speaker User   `json:"speaker"`
}

// Hidden is the moderation marker of a quote.
type Hidden struct {
	Reason string `json:"reason"`
	Actor  User   `json:"actor"`
}

// Quote is a reconstructed quote as seen by one viewer.
//
// Score, Vote and Favorited are derived per request: Score across all votes,
// Vote and Favorited for the viewer only.
type Quote struct {
	ID        int64      `json:"id"`
	Shards    []Shard    `json:"shards"`
	Timestamp time.Time  `json:"timestamp"`
	Score     int64      `json:"score"`
	Vote      *VoteValue `json:"vote"`
	Submitter User       `json:"submitter"`
	Hidden    *Hidden    `json:"hidden"`
	Favorited bool       `json:"favorited"`
}

// QuoteRow is a single (quote, shard) row as produced by the store.
type QuoteRow struct {
	ID           int64
	Index        int
	Submitter    string
	Timestamp    time.Time
	Body         string
	Speaker      string
	HiddenReason *string
	HiddenActor  *string
	Vote         *VoteValue
	Score        int64
	Favorited    bool
}

// Viewer is the verified caller a query or mutation runs on behalf of.
//
// Privileged is true for admins and for every caller when the process runs
// with security enforcement disabled.
type Viewer struct {
	Username   string
	Privileged bool
}
