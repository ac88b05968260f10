// Package window builds per-client time series from a snapshot sequence and
// produces window-scoped aggregates for volume, deposits and withdrawals.
package window

import (
	"errors"
	"math"
	"sort"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/lookup"
	"github.com/HansLove/rebstool-sub000/internal/normalization"
)

// ErrNilSnapshot is returned when the current snapshot is absent.
var ErrNilSnapshot = errors.New("current snapshot is nil")

const msPerDay = 24 * 60 * 60 * 1000

// Aggregator computes windowed metrics from a current snapshot plus an
// unordered historical snapshot collection.
type Aggregator struct {
	normalizer *normalization.Normalizer
}

// NewAggregator creates a window aggregator on top of a normalizer.
func NewAggregator(n *normalization.Normalizer) *Aggregator {
	return &Aggregator{normalizer: n}
}

// Aggregate returns per-client metrics for every requested window, keyed by
// client id. History may arrive in any order and may overlap the current
// snapshot; duplicate snapshot ids are folded once. Metrics are produced for
// clients present in the current snapshot. With fewer than two equity points
// the derived-withdrawal figures degrade to zero rather than erroring.
func (a *Aggregator) Aggregate(
	current *domain.Snapshot,
	history []*domain.Snapshot,
	windows []domain.Window,
) (map[int64]map[domain.Window]*domain.WindowedMetric, error) {
	if current == nil {
		return nil, ErrNilSnapshot
	}

	snapshots := orderSnapshots(current, history)
	now := current.CapturedAt

	facts := make(factSet)
	for _, s := range snapshots {
		for _, e := range a.normalizer.Normalize(s) {
			facts.observe(e, s.CapturedAt, s.SnapshotID)
		}
	}
	facts.finish()

	currentEntities := a.normalizer.Normalize(current)

	result := make(map[int64]map[domain.Window]*domain.WindowedMetric, len(currentEntities))
	for _, e := range currentEntities {
		f := facts.get(e.ClientID)
		perWindow := make(map[domain.Window]*domain.WindowedMetric, len(windows))
		for _, w := range windows {
			if !w.Valid() {
				continue
			}
			perWindow[w] = computeMetric(w, now, e.Equity, f)
		}
		result[e.ClientID] = perWindow
	}
	return result, nil
}

// orderSnapshots merges current and history into a deduplicated list sorted
// by capture time ascending.
func orderSnapshots(current *domain.Snapshot, history []*domain.Snapshot) []*domain.Snapshot {
	merged := make([]*domain.Snapshot, 0, len(history)+1)
	seen := make(map[string]struct{}, len(history)+1)

	add := func(s *domain.Snapshot) {
		if s == nil {
			return
		}
		if s.SnapshotID != "" {
			if _, dup := seen[s.SnapshotID]; dup {
				return
			}
			seen[s.SnapshotID] = struct{}{}
		}
		merged = append(merged, s)
	}

	add(current)
	for _, s := range history {
		add(s)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CapturedAt < merged[j].CapturedAt
	})
	return merged
}

// computeMetric sums facts falling in [now-W, now] for one client.
func computeMetric(w domain.Window, now int64, equityNow float64, f *entityFacts) *domain.WindowedMetric {
	m := &domain.WindowedMetric{ClientID: f.clientID, Window: w}

	start := int64(0)
	dur, bounded := w.Duration()
	if bounded {
		start = now - dur.Milliseconds()
	}

	for at, volume := range f.trades {
		if at >= start && at <= now {
			m.SumVolume += volume
		}
	}

	for _, d := range f.deposits {
		if d.at >= start && d.at <= now {
			m.SumDeposits += d.amount
			m.DepositCount++
		}
	}

	m.SumWithdrawals = derivedWithdrawal(w, start, equityNow, f.equity)
	m.NetFunding = m.SumDeposits - m.SumWithdrawals
	m.Velocity = velocity(m.DepositCount, w, now, f)
	return m
}

// derivedWithdrawal estimates money taken out over the window as the equity
// decline from the window boundary to now. Withdrawals are not directly
// observable in captures; only the equity trajectory is.
func derivedWithdrawal(w domain.Window, start int64, equityNow float64, series []*domain.EquityHistoryPoint) float64 {
	if len(series) < 2 {
		return 0 // insufficient history
	}

	var equityThen float64
	if w == domain.WindowLifetime {
		equityThen, _ = lookup.EarliestEquity(series)
	} else if series[0].CapturedAt <= start {
		equityThen, _ = lookup.EquityAt(start, series)
	} else {
		// No equity point at or before the boundary: fall back to the
		// capture immediately preceding the current one.
		equityThen = series[len(series)-2].Equity
	}

	return math.Max(0, equityThen-equityNow)
}

// velocity is deposits per day over the window span. The lifetime window
// uses the observed capture span, floored at one day.
func velocity(depositCount int, w domain.Window, now int64, f *entityFacts) float64 {
	if depositCount == 0 {
		return 0
	}

	var days float64
	if dur, bounded := w.Duration(); bounded {
		days = dur.Hours() / 24
	} else {
		spanMs := now - f.equity[0].CapturedAt
		days = float64(spanMs) / msPerDay
		if days < 1 {
			days = 1
		}
	}
	if days <= 0 {
		return 0
	}
	return float64(depositCount) / days
}
