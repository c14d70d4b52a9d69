package model

import "strings"

// Pair is a trading symbol identity, e.g. "BTCUSDT". Always uppercase ASCII.
type Pair string

// NewPair normalizes a raw symbol string into a Pair.
func NewPair(raw string) Pair {
	return Pair(strings.ToUpper(strings.TrimSpace(raw)))
}

func (p Pair) String() string { return string(p) }
