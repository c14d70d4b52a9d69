package model

import "candledash/internal/timeframe"

// HistoryRequest asks the History Service to backfill one pair as of
// ReferenceTS (milliseconds since epoch, usually "now" at request time).
type HistoryRequest struct {
	ID          string // correlation id tying bundle logs back to the request
	Pair        Pair
	ReferenceTS int64
}

// HistoryEntry is the backfill payload for a single (kind, timeframe) within
// a HistoryBundle: a truncated 1m history shared across indicators, and,
// for kinds that need it (RSI), a same-timeframe history of prior closes.
type HistoryEntry struct {
	Kind      IndicatorKind
	TF        timeframe.Timeframe
	OneMinute []Bar
	SameTF    []Bar // only populated when the kind requires it (RSI)
}

// HistoryBundle is the backfill payload for one pair, covering every enabled
// (indicator, timeframe) combination in the config that requested it.
type HistoryBundle struct {
	RequestID   string
	Pair        Pair
	ReferenceTS int64 // carried over from the originating HistoryRequest
	Entries     []HistoryEntry
}
