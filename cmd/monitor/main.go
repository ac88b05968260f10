// Package main provides the unified monitoring service:
// - Ingestion: capture jobs POST snapshots to the HTTP API
// - Sync (scheduled): diff, window aggregation, classification
// - Streaming: alert events pushed to WebSocket subscribers
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/HansLove/rebstool-sub000/internal/classify"
	"github.com/HansLove/rebstool-sub000/internal/config"
	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/idhash"
	"github.com/HansLove/rebstool-sub000/internal/normalization"
	"github.com/HansLove/rebstool-sub000/internal/observability"
	"github.com/HansLove/rebstool-sub000/internal/reporting"
	"github.com/HansLove/rebstool-sub000/internal/search"
	"github.com/HansLove/rebstool-sub000/internal/storage"
	chstore "github.com/HansLove/rebstool-sub000/internal/storage/clickhouse"
	"github.com/HansLove/rebstool-sub000/internal/storage/memory"
	"github.com/HansLove/rebstool-sub000/internal/storage/migrations"
	pgstore "github.com/HansLove/rebstool-sub000/internal/storage/postgres"
	"github.com/HansLove/rebstool-sub000/internal/stream"
)

// Server holds all components of the monitoring service.
type Server struct {
	cfg *config.Config
	log zerolog.Logger

	snapshots storage.SnapshotStore
	history   storage.EquityHistoryStore

	normalizer *normalization.Normalizer
	generator  *reporting.Generator
	hub        *stream.Hub

	// State guarded by mu
	mu            sync.Mutex
	lastReport    *reporting.Report
	lastEntities  []*domain.ClientEntity
	lastProcessed string
	syncRuns      int
	started       time.Time
}

func main() {
	// Load .env if present; system env vars win
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, history, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	server := &Server{
		cfg:        cfg,
		log:        log,
		snapshots:  snapshots,
		history:    history,
		normalizer: normalization.New(log),
		generator:  reporting.NewGenerator(snapshots, log).WithHistory(history),
		hub:        stream.NewHub(log, nil),
		started:    time.Now(),
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		server.hub.Close()
	}()

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	server.runSyncLoop(ctx)
	log.Info().Msg("shutdown complete")
}

// newLogger builds the zerolog root logger from config.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).With().Timestamp().Logger()
}

// createStores builds the storage layer. Without DSNs everything runs
// in memory.
func createStores(ctx context.Context, cfg *config.Config) (storage.SnapshotStore, storage.EquityHistoryStore, func(), error) {
	if cfg.UseMemoryStores() {
		return memory.NewSnapshotStore(), memory.NewEquityHistoryStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewSnapshotStore(pool), chstore.NewEquityHistoryStore(chConn), cleanup, nil
}

// runSyncLoop processes the latest capture on an interval until the context
// is cancelled. Each POSTed snapshot is also processed immediately; the loop
// covers captures written to the store by other processes.
func (s *Server) runSyncLoop(ctx context.Context) {
	s.log.Info().Dur("interval", s.cfg.Sync.Interval).Msg("sync loop starting")

	s.sync(ctx)

	ticker := time.NewTicker(s.cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

// sync regenerates the report when a new snapshot appeared and broadcasts
// the resulting events.
func (s *Server) sync(ctx context.Context) {
	start := time.Now()

	latest, err := s.snapshots.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return // nothing captured yet
		}
		s.log.Error().Err(err).Msg("load latest snapshot")
		observability.RecordSync(time.Since(start).Seconds(), err)
		return
	}

	s.mu.Lock()
	alreadyProcessed := latest.SnapshotID == s.lastProcessed
	s.mu.Unlock()
	if alreadyProcessed {
		return
	}

	report, err := s.generator.Generate(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("generate report")
		observability.RecordSync(time.Since(start).Seconds(), err)
		return
	}

	entities := s.normalizer.Normalize(latest)

	observability.DefaultMetrics.EntitiesNormalized.Add(float64(len(entities)))
	observability.DefaultMetrics.UnresolvedOwners.Add(float64(unresolvedOwners(entities)))
	observability.DefaultMetrics.WindowsAggregated.Add(float64(len(report.WindowRows)))

	s.mu.Lock()
	s.lastReport = report
	s.lastEntities = entities
	s.lastProcessed = latest.SnapshotID
	s.syncRuns++
	s.mu.Unlock()

	s.broadcast(report)

	observability.RecordSync(time.Since(start).Seconds(), nil)
	observability.DefaultMetrics.LastSuccessfulSync.SetToCurrentTime()
	observability.DefaultMetrics.TrackedClients.Set(float64(report.Summary.TotalCurrent))
	observability.DefaultMetrics.DiffsComputed.Inc()
	observability.DefaultMetrics.StreamSubscribers.Set(float64(s.hub.SubscriberCount()))

	s.log.Info().
		Str("snapshot_id", report.CurrentSnapshotID).
		Int("new", report.Summary.NewCount).
		Int("removed", report.Summary.RemovedCount).
		Int("changed", report.Summary.ChangedCount).
		Dur("took", time.Since(start)).
		Msg("sync complete")
}

// broadcast pushes the change summary and every non-trivial classification
// to stream subscribers.
func (s *Server) broadcast(report *reporting.Report) {
	s.hub.Broadcast(stream.AlertEvent{
		Type:       stream.EventChangeSet,
		SnapshotID: report.CurrentSnapshotID,
		CapturedAt: report.CapturedAt,
		Summary:    &report.Summary,
	})
	observability.DefaultMetrics.EventsBroadcast.Inc()

	for _, h := range report.HealthRows {
		observability.RecordHealth(string(h.Status))
		if h.Status == classify.HealthHot {
			continue
		}
		s.hub.Broadcast(stream.AlertEvent{
			Type:       stream.EventHealth,
			SnapshotID: report.CurrentSnapshotID,
			CapturedAt: report.CapturedAt,
			ClientID:   h.ClientID,
			Name:       h.Name,
			Status:     string(h.Status),
			Reasons:    h.Reasons,
		})
		observability.DefaultMetrics.EventsBroadcast.Inc()
	}

	for _, a := range report.AlertRows {
		observability.RecordAlert(string(a.Level))
		s.hub.Broadcast(stream.AlertEvent{
			Type:       stream.EventWithdrawalAlert,
			SnapshotID: report.CurrentSnapshotID,
			CapturedAt: report.CapturedAt,
			ClientID:   a.ClientID,
			Name:       a.Name,
			Level:      string(a.Level),
			Reasons:    a.Reasons,
		})
		observability.DefaultMetrics.EventsBroadcast.Inc()
	}
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws/alerts", s.hub.HandleWS)

	mux.HandleFunc("/api/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/changeset", s.handleChangeSet)
	mux.HandleFunc("/api/metrics", s.handleWindowMetrics)
	mux.HandleFunc("/api/health", s.handleHealthRows)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/search", s.handleSearch)

	return mux
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	SyncRuns      int    `json:"sync_runs"`
	LastProcessed string `json:"last_processed,omitempty"`
	Subscribers   int    `json:"subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		SyncRuns:      s.syncRuns,
		LastProcessed: s.lastProcessed,
		Subscribers:   s.hub.SubscriberCount(),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleSnapshots accepts a capture via POST and processes it immediately.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("decode snapshot: %v", err))
		return
	}

	snap, err := req.toDomain(s.cfg.Sync.Brokerage)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if err := s.snapshots.Insert(ctx, snap); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			httpError(w, http.StatusConflict, "snapshot already ingested")
			return
		}
		s.log.Error().Err(err).Msg("insert snapshot")
		httpError(w, http.StatusInternalServerError, "store snapshot failed")
		return
	}

	s.recordEquityHistory(ctx, snap)
	s.sync(ctx)

	writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": snap.SnapshotID})
}

// recordEquityHistory appends per-client equity facts for the capture.
func (s *Server) recordEquityHistory(ctx context.Context, snap *domain.Snapshot) {
	accounts := make(map[int64]*domain.Account, len(snap.Accounts))
	for _, a := range snap.Accounts {
		if a != nil {
			accounts[a.Login] = a
		}
	}

	var points []*domain.EquityHistoryPoint
	for _, e := range s.normalizer.Normalize(snap) {
		p := &domain.EquityHistoryPoint{
			ClientID:   e.ClientID,
			Login:      e.AccountNumber,
			SnapshotID: snap.SnapshotID,
			CapturedAt: snap.CapturedAt,
			Equity:     e.Equity,
			Balance:    e.Balance,
		}
		if a, ok := accounts[e.AccountNumber]; ok {
			p.Commission = a.Commission
		}
		points = append(points, p)
	}

	if err := s.history.InsertBulk(ctx, points); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.log.Warn().Str("snapshot_id", snap.SnapshotID).Msg("equity history already recorded")
			return
		}
		s.log.Error().Err(err).Msg("record equity history")
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.currentReport(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleChangeSet(w http.ResponseWriter, r *http.Request) {
	report, ok := s.currentReport(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_snapshot_id":  report.CurrentSnapshotID,
		"previous_snapshot_id": report.PreviousSnapshotID,
		"summary":              report.Summary,
		"new":                  report.NewClients,
		"removed":              report.RemovedClients,
		"changed":              report.ChangedClients,
	})
}

func (s *Server) handleWindowMetrics(w http.ResponseWriter, r *http.Request) {
	report, ok := s.currentReport(w)
	if !ok {
		return
	}

	rows := report.WindowRows
	if q := r.URL.Query().Get("client_id"); q != "" {
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid client_id")
			return
		}
		rows = filterRows(rows, func(r reporting.WindowRow) bool { return r.ClientID == id })
	}
	if win := domain.Window(r.URL.Query().Get("window")); win != "" {
		if !win.Valid() {
			httpError(w, http.StatusBadRequest, "invalid window")
			return
		}
		rows = filterRows(rows, func(r reporting.WindowRow) bool { return r.Window == win })
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHealthRows(w http.ResponseWriter, r *http.Request) {
	report, ok := s.currentReport(w)
	if !ok {
		return
	}

	rows := report.HealthRows
	if q := r.URL.Query().Get("client_id"); q != "" {
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid client_id")
			return
		}
		rows = filterRows(rows, func(r reporting.HealthRow) bool { return r.ClientID == id })
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	report, ok := s.currentReport(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.AlertRows)
}

// SearchResult is one ranked hit in the /api/search response.
type SearchResult struct {
	ClientID  int64   `json:"client_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email,omitempty"`
	Owner     string  `json:"owner"`
	Equity    float64 `json:"equity"`
	Score     int     `json:"score"`
	MatchType string  `json:"match_type"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if len(query) < search.MinQueryLen {
		httpError(w, http.StatusBadRequest, "query too short")
		return
	}

	s.mu.Lock()
	entities := s.lastEntities
	s.mu.Unlock()
	if entities == nil {
		httpError(w, http.StatusServiceUnavailable, "no snapshot processed yet")
		return
	}

	start := time.Now()
	ranked := search.Search(entities, query)
	observability.RecordSearch(time.Since(start).Seconds())

	results := make([]SearchResult, 0, len(ranked))
	for _, res := range ranked {
		owner := domain.UnknownOwnerName
		if res.Entity.Owner != nil {
			owner = res.Entity.Owner.Name
		}
		results = append(results, SearchResult{
			ClientID:  res.Entity.ClientID,
			Name:      res.Entity.Name,
			Email:     res.Entity.Email,
			Owner:     owner,
			Equity:    res.Entity.Equity,
			Score:     res.Score,
			MatchType: res.MatchType,
		})
	}
	writeJSON(w, http.StatusOK, results)
}

// currentReport returns the last computed report or writes a 503.
func (s *Server) currentReport(w http.ResponseWriter) (*reporting.Report, bool) {
	s.mu.Lock()
	report := s.lastReport
	s.mu.Unlock()

	if report == nil {
		httpError(w, http.StatusServiceUnavailable, "no snapshot processed yet")
		return nil, false
	}
	return report, true
}

// unresolvedOwners counts entities whose owner fell through to the sentinel.
func unresolvedOwners(entities []*domain.ClientEntity) int {
	n := 0
	for _, e := range entities {
		if e.Owner == nil || e.Owner.IsUnknown() {
			n++
		}
	}
	return n
}

func filterRows[T any](rows []T, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Wire types for snapshot ingestion.

type snapshotRequest struct {
	SnapshotID string `json:"snapshot_id,omitempty"`
	Brokerage  string `json:"brokerage,omitempty"`
	CapturedAt int64  `json:"captured_at"`
	Variant    string `json:"variant,omitempty"`

	Accounts     []wireAccount     `json:"accounts,omitempty"`
	Groups       []wireGroup       `json:"groups,omitempty"`
	Clients      []wireClient      `json:"clients,omitempty"`
	LoginResults []wireLoginResult `json:"login_results,omitempty"`
}

type wireAccount struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Commission float64 `json:"commission"`
	Profit     float64 `json:"profit"`
	Credit     float64 `json:"credit"`
}

type wireGroup struct {
	DistributorID   int64        `json:"distributor_id"`
	DistributorName string       `json:"distributor_name"`
	Clients         []wireClient `json:"clients"`
}

type wireLoginResult struct {
	Login   int64        `json:"login"`
	Clients []wireClient `json:"clients"`
}

type wireClient struct {
	ClientID      int64  `json:"client_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	AccountNumber int64  `json:"account_number"`

	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
	Credit  float64 `json:"credit"`

	LastTradeAt       int64   `json:"last_trade_at"`
	LastTradeVolume   float64 `json:"last_trade_volume"`
	LastDepositAt     int64   `json:"last_deposit_at"`
	LastDepositAmount float64 `json:"last_deposit_amount"`

	Funded       bool   `json:"funded"`
	Archived     bool   `json:"archived"`
	JourneyStage string `json:"journey_stage"`

	DistributorID   int64  `json:"distributor_id,omitempty"`
	DistributorName string `json:"distributor_name,omitempty"`
}

func (r *snapshotRequest) toDomain(defaultBrokerage string) (*domain.Snapshot, error) {
	if r.CapturedAt <= 0 {
		return nil, errors.New("captured_at is required")
	}

	snap := &domain.Snapshot{
		SnapshotID: r.SnapshotID,
		Brokerage:  r.Brokerage,
		CapturedAt: r.CapturedAt,
		Variant:    domain.SchemaVariant(r.Variant),
	}
	if snap.Brokerage == "" {
		snap.Brokerage = defaultBrokerage
	}

	for _, a := range r.Accounts {
		snap.Accounts = append(snap.Accounts, &domain.Account{
			Login: a.Login, Balance: a.Balance, Equity: a.Equity,
			Commission: a.Commission, Profit: a.Profit, Credit: a.Credit,
		})
	}
	for _, g := range r.Groups {
		group := &domain.OwnershipGroup{
			DistributorID:   g.DistributorID,
			DistributorName: g.DistributorName,
		}
		for _, c := range g.Clients {
			group.Clients = append(group.Clients, c.toDomain())
		}
		snap.Groups = append(snap.Groups, group)
	}
	for _, c := range r.Clients {
		snap.Clients = append(snap.Clients, c.toDomain())
	}
	for _, lr := range r.LoginResults {
		result := &domain.LoginResult{Login: lr.Login}
		for _, c := range lr.Clients {
			result.Clients = append(result.Clients, c.toDomain())
		}
		snap.LoginResults = append(snap.LoginResults, result)
	}

	clientCount := len(snap.Clients)
	for _, g := range snap.Groups {
		clientCount += len(g.Clients)
	}
	for _, lr := range snap.LoginResults {
		clientCount += len(lr.Clients)
	}

	if snap.SnapshotID == "" {
		snap.SnapshotID = idhash.ComputeSnapshotID(
			snap.Brokerage, snap.CapturedAt, len(snap.Accounts), clientCount)
	}
	return snap, nil
}

func (c *wireClient) toDomain() *domain.ClientEntity {
	entity := &domain.ClientEntity{
		ClientID:          c.ClientID,
		Name:              c.Name,
		Email:             c.Email,
		Phone:             c.Phone,
		AccountNumber:     c.AccountNumber,
		Balance:           c.Balance,
		Equity:            c.Equity,
		Credit:            c.Credit,
		LastTradeAt:       c.LastTradeAt,
		LastTradeVolume:   c.LastTradeVolume,
		LastDepositAt:     c.LastDepositAt,
		LastDepositAmount: c.LastDepositAmount,
		Funded:            c.Funded,
		Archived:          c.Archived,
		JourneyStage:      c.JourneyStage,
	}
	if c.DistributorID != 0 || c.DistributorName != "" {
		entity.Owner = &domain.OwnerRef{
			DistributorID: c.DistributorID,
			Name:          c.DistributorName,
		}
	}
	return entity
}
