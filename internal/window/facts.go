package window

import (
	"sort"
	"time"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// depositFact is one observed deposit. Only "last deposit" facts are visible
// per snapshot, so the fact set is a conservative reconstruction, not a full
// funding ledger.
type depositFact struct {
	at     int64
	amount float64
}

// entityFacts is everything observed about one client across all snapshots.
type entityFacts struct {
	clientID int64

	// trades keyed by timestamp: the same last-trade fact observed in many
	// snapshots counts once.
	trades map[int64]float64

	// deposits keyed by UTC calendar day: same-day observations count once.
	deposits map[int64]depositFact

	// equity series across captures, sorted by CapturedAt ascending.
	equity []*domain.EquityHistoryPoint
}

// factSet indexes entity facts by client id.
type factSet map[int64]*entityFacts

func (fs factSet) get(clientID int64) *entityFacts {
	f, ok := fs[clientID]
	if !ok {
		f = &entityFacts{
			clientID: clientID,
			trades:   make(map[int64]float64),
			deposits: make(map[int64]depositFact),
		}
		fs[clientID] = f
	}
	return f
}

// dayBucket maps a millisecond timestamp to its UTC calendar day ordinal.
func dayBucket(ms int64) int64 {
	return time.UnixMilli(ms).UTC().Unix() / 86400
}

// observe folds one normalized entity observation into the fact set.
func (fs factSet) observe(e *domain.ClientEntity, capturedAt int64, snapshotID string) {
	f := fs.get(e.ClientID)

	if e.LastTradeAt > 0 {
		if _, seen := f.trades[e.LastTradeAt]; !seen {
			f.trades[e.LastTradeAt] = e.LastTradeVolume
		}
	}

	if e.LastDepositAt > 0 {
		day := dayBucket(e.LastDepositAt)
		if _, seen := f.deposits[day]; !seen {
			f.deposits[day] = depositFact{at: e.LastDepositAt, amount: e.LastDepositAmount}
		}
	}

	f.equity = append(f.equity, &domain.EquityHistoryPoint{
		ClientID:   e.ClientID,
		Login:      e.AccountNumber,
		SnapshotID: snapshotID,
		CapturedAt: capturedAt,
		Equity:     e.Equity,
	})
}

// finish sorts every equity series by capture time.
func (fs factSet) finish() {
	for _, f := range fs {
		sort.Slice(f.equity, func(i, j int) bool {
			return f.equity[i].CapturedAt < f.equity[j].CapturedAt
		})
	}
}
