package model

// Bar is one candle at some timeframe. OpenTime is milliseconds since epoch
// and is always a multiple of one minute. A Bar is immutable after emission
// by its producer (feed or REST); callers that need to amend an in-flight bar
// construct a new value with the same OpenTime.
type Bar struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	OpenTime int64
	Closed   bool
}

// SameBucket reports whether two bars share the same OpenTime.
func (b Bar) SameBucket(other Bar) bool {
	return b.OpenTime == other.OpenTime
}
