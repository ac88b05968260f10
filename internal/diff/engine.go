// Package diff classifies entities between two snapshots into new, removed
// and changed, with field-level change records.
package diff

import (
	"errors"
	"math"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/normalization"
)

// ErrNilSnapshot is returned when the current snapshot is absent. This is the
// only fatal input condition; everything else degrades to empty collections.
var ErrNilSnapshot = errors.New("current snapshot is nil")

// Epsilon suppresses floating-point noise on monitored numeric fields.
// Changes smaller than this are not reported.
const Epsilon = 0.01

// Engine computes change-sets between snapshot pairs.
type Engine struct {
	normalizer *normalization.Normalizer
}

// NewEngine creates a diff engine on top of a normalizer.
func NewEngine(n *normalization.Normalizer) *Engine {
	return &Engine{normalizer: n}
}

// Diff derives the change-set from previous to current. A nil previous
// snapshot classifies every current entity as new. Entities with zero
// detected field changes are excluded from the changed set.
func (e *Engine) Diff(previous, current *domain.Snapshot) (*domain.ChangeSet, error) {
	if current == nil {
		return nil, ErrNilSnapshot
	}

	currEntities := e.normalizer.Normalize(current)
	var prevEntities []*domain.ClientEntity
	if previous != nil {
		prevEntities = e.normalizer.Normalize(previous)
	}

	prevByID := make(map[int64]*domain.ClientEntity, len(prevEntities))
	for _, p := range prevEntities {
		prevByID[p.ClientID] = p
	}
	currByID := make(map[int64]*domain.ClientEntity, len(currEntities))
	for _, c := range currEntities {
		currByID[c.ClientID] = c
	}

	cs := &domain.ChangeSet{CurrentID: current.SnapshotID}
	if previous != nil {
		cs.PreviousID = previous.SnapshotID
	}

	for _, c := range currEntities {
		prev, existed := prevByID[c.ClientID]
		if !existed {
			cs.NewEntities = append(cs.NewEntities, c)
			continue
		}
		if changes := compareEntities(prev, c); len(changes) > 0 {
			cs.ChangedEntities = append(cs.ChangedEntities, &domain.ChangedEntity{
				Entity:       c,
				FieldChanges: changes,
			})
		}
	}

	for _, p := range prevEntities {
		if _, stillThere := currByID[p.ClientID]; !stillThere {
			// Owner was already back-filled from previous ownership
			// metadata during normalization.
			cs.RemovedEntities = append(cs.RemovedEntities, p)
		}
	}

	cs.Summary = domain.ChangeSummary{
		NewCount:     len(cs.NewEntities),
		RemovedCount: len(cs.RemovedEntities),
		ChangedCount: len(cs.ChangedEntities),
		TotalCurrent: len(currEntities),
	}
	return cs, nil
}

// Monitored field names as they appear in FieldChange records.
const (
	FieldEquity            = "equity"
	FieldBalance           = "balance"
	FieldCredit            = "credit"
	FieldLastTradeAt       = "last_trade_at"
	FieldLastDepositAt     = "last_deposit_at"
	FieldLastDepositAmount = "last_deposit_amount"
	FieldFunded            = "funded"
	FieldArchived          = "archived"
	FieldJourneyStage      = "journey_stage"
)

// compareEntities reports differences over the fixed monitored field set.
func compareEntities(prev, curr *domain.ClientEntity) []domain.FieldChange {
	var changes []domain.FieldChange

	addNumeric := func(field string, oldV, newV float64) {
		if math.Abs(newV-oldV) >= Epsilon {
			changes = append(changes, domain.FieldChange{Field: field, OldValue: oldV, NewValue: newV})
		}
	}

	addNumeric(FieldEquity, prev.Equity, curr.Equity)
	if prev.LastTradeAt != curr.LastTradeAt {
		changes = append(changes, domain.FieldChange{Field: FieldLastTradeAt, OldValue: prev.LastTradeAt, NewValue: curr.LastTradeAt})
	}
	if prev.LastDepositAt != curr.LastDepositAt {
		changes = append(changes, domain.FieldChange{Field: FieldLastDepositAt, OldValue: prev.LastDepositAt, NewValue: curr.LastDepositAt})
	}
	addNumeric(FieldLastDepositAmount, prev.LastDepositAmount, curr.LastDepositAmount)
	addNumeric(FieldBalance, prev.Balance, curr.Balance)
	if prev.Funded != curr.Funded {
		changes = append(changes, domain.FieldChange{Field: FieldFunded, OldValue: prev.Funded, NewValue: curr.Funded})
	}
	if prev.Archived != curr.Archived {
		changes = append(changes, domain.FieldChange{Field: FieldArchived, OldValue: prev.Archived, NewValue: curr.Archived})
	}
	addNumeric(FieldCredit, prev.Credit, curr.Credit)
	if prev.JourneyStage != curr.JourneyStage {
		changes = append(changes, domain.FieldChange{Field: FieldJourneyStage, OldValue: prev.JourneyStage, NewValue: curr.JourneyStage})
	}

	return changes
}
