package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/HansLove/rebstool-sub000/internal/classify"
	"github.com/HansLove/rebstool-sub000/internal/diff"
	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/lookup"
	"github.com/HansLove/rebstool-sub000/internal/normalization"
	"github.com/HansLove/rebstool-sub000/internal/storage"
	"github.com/HansLove/rebstool-sub000/internal/window"
)

// Generator produces monitoring reports from stored snapshots.
type Generator struct {
	snapshots  storage.SnapshotStore
	history    storage.EquityHistoryStore // optional, see WithHistory
	normalizer *normalization.Normalizer
	engine     *diff.Engine
	aggregator *window.Aggregator
	log        zerolog.Logger
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(snapshots storage.SnapshotStore, log zerolog.Logger) *Generator {
	n := normalization.New(log)
	return &Generator{
		snapshots:  snapshots,
		normalizer: n,
		engine:     diff.NewEngine(n),
		aggregator: window.NewAggregator(n),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithHistory sets a dedicated equity history source for the 30-day
// withdrawal baseline. Without it the baseline is rebuilt from stored
// snapshots, which only reaches as far back as the snapshot store retains.
func (g *Generator) WithHistory(h storage.EquityHistoryStore) *Generator {
	g.history = h
	return g
}

// Generate produces a complete report from the two most recent snapshots and
// the full stored history. The first capture yields a report where every
// client is new and no classifications carry prior data.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	current, err := g.snapshots.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	previous, err := g.snapshots.GetBefore(ctx, current.CapturedAt)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load previous snapshot: %w", err)
		}
		previous = nil
	}

	changeSet, err := g.engine.Diff(previous, current)
	if err != nil {
		return nil, fmt.Errorf("diff snapshots: %w", err)
	}

	history, err := g.snapshots.GetByTimeRange(ctx, 0, current.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("load snapshot history: %w", err)
	}

	metrics, err := g.aggregator.Aggregate(current, history, domain.AllWindows)
	if err != nil {
		return nil, fmt.Errorf("aggregate windows: %w", err)
	}

	report := &Report{
		GeneratedAt:       g.now(),
		Brokerage:         current.Brokerage,
		CurrentSnapshotID: current.SnapshotID,
		CapturedAt:        current.CapturedAt,
		Summary:           changeSet.Summary,
		NewClients:        clientRows(changeSet.NewEntities),
		RemovedClients:    clientRows(changeSet.RemovedEntities),
		ChangedClients:    changeRows(changeSet.ChangedEntities),
	}
	if previous != nil {
		report.PreviousSnapshotID = previous.SnapshotID
	}

	currentEntities := g.normalizer.Normalize(current)
	var previousEntities []*domain.ClientEntity
	if previous != nil {
		previousEntities = g.normalizer.Normalize(previous)
	}

	report.HealthRows = g.healthRows(current, previous, currentEntities, previousEntities)
	report.AlertRows = g.alertRows(ctx, current, history, currentEntities, previousEntities)
	report.WindowRows = windowRows(currentEntities, metrics)

	return report, nil
}

// healthRows classifies every current client's rebate health. Commission
// comes from the account record matched by trading login.
func (g *Generator) healthRows(
	current, previous *domain.Snapshot,
	currentEntities, previousEntities []*domain.ClientEntity,
) []HealthRow {
	currentAccounts := accountsByLogin(current)
	previousAccounts := accountsByLogin(previous)
	prevByID := entitiesByID(previousEntities)

	rows := make([]HealthRow, 0, len(currentEntities))
	for _, e := range currentEntities {
		in := classify.HealthInput{
			Commission: commissionFor(e, currentAccounts),
			Equity:     e.Equity,
		}
		if prev, ok := prevByID[e.ClientID]; ok {
			in.HasPrevious = true
			in.PreviousCommission = commissionFor(prev, previousAccounts)
			in.PreviousEquity = prev.Equity
		}

		res := classify.EvaluateHealth(in)
		rows = append(rows, HealthRow{
			ClientID:            e.ClientID,
			Name:                e.Name,
			Status:              res.Status,
			CommissionChangePct: res.CommissionChangePct,
			EquityChangePct:     res.EquityChangePct,
			Reasons:             res.Reasons,
		})
	}
	sortByClientID(rows, func(r HealthRow) int64 { return r.ClientID })
	return rows
}

// alertRows evaluates withdrawal alerts combining the previous-snapshot
// comparison with the 30-day window comparison. Only non-none levels are
// reported.
func (g *Generator) alertRows(
	ctx context.Context,
	current *domain.Snapshot,
	history []*domain.Snapshot,
	currentEntities, previousEntities []*domain.ClientEntity,
) []AlertRow {
	prevByID := entitiesByID(previousEntities)

	// Snapshot-derived points are only built when a client has no rows in
	// the dedicated history store.
	var derived map[int64][]*domain.EquityHistoryPoint
	derivedSeries := func() map[int64][]*domain.EquityHistoryPoint {
		if derived == nil {
			derived = g.equitySeries(current, history)
		}
		return derived
	}

	dur, _ := domain.Window30d.Duration()
	windowStart := current.CapturedAt - dur.Milliseconds()

	var rows []AlertRow
	for _, e := range currentEntities {
		var recent, win30 *classify.WithdrawalInput

		if prev, ok := prevByID[e.ClientID]; ok {
			recent = &classify.WithdrawalInput{
				PreviousEquity: prev.Equity,
				CurrentEquity:  e.Equity,
			}
		}

		if points := g.equityPoints(ctx, e.ClientID, current.CapturedAt, derivedSeries); len(points) >= 2 {
			prior, err := lookup.EquityAt(windowStart, points)
			if err == nil {
				win30 = &classify.WithdrawalInput{
					PreviousEquity: prior,
					CurrentEquity:  e.Equity,
				}
			}
		}

		res := classify.EvaluateWithdrawalWithWindow(recent, win30)
		if res.Level == classify.AlertNone {
			continue
		}
		rows = append(rows, AlertRow{
			ClientID:     e.ClientID,
			Name:         e.Name,
			Level:        res.Level,
			Withdrawn:    res.Withdrawn,
			WithdrawnPct: res.WithdrawnPct,
			Reasons:      res.Reasons,
		})
	}
	sortByClientID(rows, func(r AlertRow) int64 { return r.ClientID })
	return rows
}

// equitySeries builds per-client equity points from the capture history,
// ordered by capture time ascending.
func (g *Generator) equitySeries(current *domain.Snapshot, history []*domain.Snapshot) map[int64][]*domain.EquityHistoryPoint {
	seen := make(map[string]struct{})
	var snapshots []*domain.Snapshot
	for _, s := range append(append([]*domain.Snapshot{}, history...), current) {
		if s == nil {
			continue
		}
		if _, dup := seen[s.SnapshotID]; dup {
			continue
		}
		seen[s.SnapshotID] = struct{}{}
		snapshots = append(snapshots, s)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CapturedAt < snapshots[j].CapturedAt
	})

	series := make(map[int64][]*domain.EquityHistoryPoint)
	for _, s := range snapshots {
		for _, e := range g.normalizer.Normalize(s) {
			series[e.ClientID] = append(series[e.ClientID], &domain.EquityHistoryPoint{
				ClientID:   e.ClientID,
				Login:      e.AccountNumber,
				SnapshotID: s.SnapshotID,
				CapturedAt: s.CapturedAt,
				Equity:     e.Equity,
				Balance:    e.Balance,
			})
		}
	}
	return series
}

// equityPoints returns a client's equity series up to the capture time,
// preferring the dedicated history store. The store keeps every capture even
// after the snapshot store has pruned old ones.
func (g *Generator) equityPoints(
	ctx context.Context,
	clientID, until int64,
	fallback func() map[int64][]*domain.EquityHistoryPoint,
) []*domain.EquityHistoryPoint {
	if g.history != nil {
		points, err := g.history.GetByTimeRange(ctx, clientID, 0, until)
		if err != nil {
			g.log.Warn().Err(err).Int64("client_id", clientID).
				Msg("equity history unavailable, rebuilding from snapshots")
		} else if len(points) > 0 {
			return points
		}
	}
	return fallback()[clientID]
}

// windowRows flattens the aggregation result into sorted rows.
func windowRows(entities []*domain.ClientEntity, metrics map[int64]map[domain.Window]*domain.WindowedMetric) []WindowRow {
	names := make(map[int64]string, len(entities))
	var ids []int64
	for _, e := range entities {
		names[e.ClientID] = e.Name
		ids = append(ids, e.ClientID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var rows []WindowRow
	for _, id := range ids {
		perWindow := metrics[id]
		for _, w := range domain.AllWindows {
			m := perWindow[w]
			if m == nil {
				continue
			}
			rows = append(rows, WindowRow{
				ClientID:       id,
				Name:           names[id],
				Window:         w,
				SumVolume:      m.SumVolume,
				SumDeposits:    m.SumDeposits,
				SumWithdrawals: m.SumWithdrawals,
				DepositCount:   m.DepositCount,
				NetFunding:     m.NetFunding,
				Velocity:       m.Velocity,
			})
		}
	}
	return rows
}

func clientRows(entities []*domain.ClientEntity) []ClientRow {
	rows := make([]ClientRow, 0, len(entities))
	for _, e := range entities {
		owner := domain.UnknownOwnerName
		if e.Owner != nil {
			owner = e.Owner.Name
		}
		rows = append(rows, ClientRow{
			ClientID: e.ClientID,
			Name:     e.Name,
			Owner:    owner,
			Equity:   e.Equity,
		})
	}
	sortByClientID(rows, func(r ClientRow) int64 { return r.ClientID })
	return rows
}

func changeRows(changed []*domain.ChangedEntity) []ChangeRow {
	rows := make([]ChangeRow, 0, len(changed))
	for _, c := range changed {
		rows = append(rows, ChangeRow{
			ClientID: c.Entity.ClientID,
			Name:     c.Entity.Name,
			Changes:  c.FieldChanges,
		})
	}
	sortByClientID(rows, func(r ChangeRow) int64 { return r.ClientID })
	return rows
}

func sortByClientID[T any](rows []T, id func(T) int64) {
	sort.Slice(rows, func(i, j int) bool { return id(rows[i]) < id(rows[j]) })
}

func accountsByLogin(s *domain.Snapshot) map[int64]*domain.Account {
	m := make(map[int64]*domain.Account)
	if s == nil {
		return m
	}
	for _, a := range s.Accounts {
		if a == nil {
			continue
		}
		if _, dup := m[a.Login]; dup {
			continue
		}
		m[a.Login] = a
	}
	return m
}

func entitiesByID(entities []*domain.ClientEntity) map[int64]*domain.ClientEntity {
	m := make(map[int64]*domain.ClientEntity, len(entities))
	for _, e := range entities {
		if _, dup := m[e.ClientID]; dup {
			continue
		}
		m[e.ClientID] = e
	}
	return m
}

func commissionFor(e *domain.ClientEntity, accounts map[int64]*domain.Account) float64 {
	if a, ok := accounts[e.AccountNumber]; ok {
		return a.Commission
	}
	return 0
}
