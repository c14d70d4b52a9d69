package model

import "candledash/internal/timeframe"

// indicatorTF is a (kind, timeframe) pair that has a dedicated output slot.
type indicatorTF struct {
	kind IndicatorKind
	tf   timeframe.Timeframe
}

// IndexLookup is a dense mapping from (pair, indicator-kind, timeframe) to a
// slot index in a flat value array. It is rebuilt from scratch on every
// Config and is safe to share read-only across goroutines once built —
// nothing ever mutates it after NewIndexLookup returns.
type IndexLookup struct {
	pairIndex  map[Pair]int
	slotIndex  map[indicatorTF]int
	pairStride int
	pairCount  int
}

// NewIndexLookup builds the slot table for a Config. Pair IDs are contiguous
// in the order they appear in cfg.Pairs; within a pair, the stride is the
// number of active (kind, timeframe) combinations, ordered by cfg.Indicators
// then by the timeframe list for each.
func NewIndexLookup(cfg Config) *IndexLookup {
	il := &IndexLookup{
		pairIndex: make(map[Pair]int, len(cfg.Pairs)),
		slotIndex: make(map[indicatorTF]int),
	}
	for i, p := range cfg.Pairs {
		il.pairIndex[p] = i
	}
	il.pairCount = len(cfg.Pairs)

	stride := 0
	for _, setting := range cfg.Indicators {
		if !setting.Enabled {
			continue
		}
		for _, tf := range setting.Timeframes {
			key := indicatorTF{kind: setting.Kind, tf: tf}
			if _, exists := il.slotIndex[key]; exists {
				continue
			}
			il.slotIndex[key] = stride
			stride++
		}
	}
	il.pairStride = stride
	return il
}

// Index returns the slot index for (pair, kind, tf), or ok=false if the kind
// is not enabled for tf or the pair is not in the active pair list.
func (il *IndexLookup) Index(pair Pair, kind IndicatorKind, tf timeframe.Timeframe) (int, bool) {
	pairIdx, ok := il.pairIndex[pair]
	if !ok {
		return 0, false
	}
	offset, ok := il.slotIndex[indicatorTF{kind: kind, tf: tf}]
	if !ok {
		return 0, false
	}
	return pairIdx*il.pairStride + offset, true
}

// Len returns the total number of dense slots (pairCount * pairStride).
func (il *IndexLookup) Len() int {
	return il.pairCount * il.pairStride
}
