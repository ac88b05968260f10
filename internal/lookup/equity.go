package lookup

import (
	"errors"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// ErrNoEquityData is returned when no equity points are available.
var ErrNoEquityData = errors.New("no equity data available")

// EquityAt returns the equity at or before the target timestamp.
// Points must be sorted by CapturedAt ascending.
// If no point exists before the target, the first available point is used
// (the immediately preceding capture relative to the series start).
// Returns ErrNoEquityData if the slice is empty.
func EquityAt(target int64, points []*domain.EquityHistoryPoint) (float64, error) {
	if len(points) == 0 {
		return 0, ErrNoEquityData
	}

	// Find closest point at or before target
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].CapturedAt <= target {
			return points[i].Equity, nil
		}
	}

	// If no point before target, use first available
	return points[0].Equity, nil
}

// EarliestEquity returns the first observed equity in the series.
// Returns ErrNoEquityData if the slice is empty.
func EarliestEquity(points []*domain.EquityHistoryPoint) (float64, error) {
	if len(points) == 0 {
		return 0, ErrNoEquityData
	}
	return points[0].Equity, nil
}
