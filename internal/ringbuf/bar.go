package ringbuf

import "candledash/internal/model"

// RetainByOpenTime keeps only the bars whose OpenTime satisfies predicate.
// Used by calculators to trim a window down to the current
// higher-timeframe period on a bucket rollover.
func RetainByOpenTime(r *Ring[model.Bar], predicate func(openTime int64) bool) {
	r.Retain(func(b model.Bar) bool {
		return predicate(b.OpenTime)
	})
}
