package model

import "time"

// Report is one open report on a quote. The reporter is never exposed.
type Report struct {
	ID        int64     `json:"id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportedQuote groups the open reports of a single quote.
type ReportedQuote struct {
	QuoteID int64    `json:"quote_id"`
	Reports []Report `json:"reports"`
}

// ReportRow is one (quote, open report) row as produced by the store.
type ReportRow struct {
	QuoteID         int64
	QuoteSubmitter  string
	QuoteTimestamp  time.Time
	QuoteHidden     bool
	ReportID        int64
	ReportReason    string
	ReportTimestamp time.Time
}
