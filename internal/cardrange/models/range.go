package models

import (
	"time"

	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// MaxRangeSize bounds a single range so availability can materialize every
// candidate number. Larger volumes would need interval arithmetic instead.
const MaxRangeSize = 1000

// Range is an administrator-declared closed interval of valid card numbers.
// No two registered ranges may overlap.
type Range struct {
	ID        id.RangeID `json:"id"`
	Start     int64      `json:"start"`
	End       int64      `json:"end"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewRange validates the interval shape before anything is read or written.
func NewRange(rangeID id.RangeID, start, end int64, createdBy string, now time.Time) (*Range, error) {
	if start > end {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"invalid range: start %d is greater than end %d", start, end)
	}
	r := &Range{ID: rangeID, Start: start, End: end, CreatedBy: createdBy, CreatedAt: now}
	if r.Size() > MaxRangeSize {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"range too large: %d numbers exceeds the maximum of %d", r.Size(), MaxRangeSize)
	}
	return r, nil
}

// Size returns the count of numbers in the closed interval.
func (r *Range) Size() int64 { return r.End - r.Start + 1 }

// Contains reports whether n falls inside the interval.
func (r *Range) Contains(n int64) bool { return n >= r.Start && n <= r.End }

// Overlaps reports whether two intervals intersect: either end of the other
// interval falls inside this one, or the other fully contains this one.
func (r *Range) Overlaps(other *Range) bool {
	return r.Contains(other.Start) || r.Contains(other.End) ||
		(other.Start < r.Start && other.End > r.End)
}

// Numbers materializes every number in the interval, ascending. Bounded by
// MaxRangeSize.
func (r *Range) Numbers() []int64 {
	out := make([]int64, 0, r.Size())
	for n := r.Start; n <= r.End; n++ {
		out = append(out, n)
	}
	return out
}

// Interval is a contiguous sub-range used for display grouping.
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Stats is the admin dashboard view of one range.
type Stats struct {
	Range     *Range     `json:"range"`
	Total     int64      `json:"total"`
	Used      int64      `json:"used"`
	Available int64      `json:"available"`
	Free      []Interval `json:"free"`
}
