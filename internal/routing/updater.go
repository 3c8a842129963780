package routing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"overlay-router/internal/common/logging"
)

// UpdaterConfig controls the gossip loop
type UpdaterConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	// Concurrency caps parallel peer fetches
	Concurrency int
	// RatePerSecond paces fetch starts; zero disables pacing
	RatePerSecond float64
}

// DefaultUpdaterConfig returns the defaults used when the environment is silent
func DefaultUpdaterConfig() UpdaterConfig {
	return UpdaterConfig{
		Interval:      30 * time.Second,
		FetchTimeout:  10 * time.Second,
		Concurrency:   8,
		RatePerSecond: 20,
	}
}

// Peer is a neighbouring gateway and the community it is asked through
type Peer struct {
	MemberID    string
	CommunityID string
}

// UpdateReport summarises one gossip round
type UpdateReport struct {
	Peers          int
	Succeeded      int
	Failed         int
	EntriesChanged int
	Errors         map[string]error
}

// Updater periodically pulls neighbour tables and merges them
type Updater struct {
	directory Directory
	manager   *Manager
	fetcher   PeerTableFetcher
	config    UpdaterConfig
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// UpdaterOption configures an Updater
type UpdaterOption func(*Updater)

// WithUpdaterMetrics records rounds
func WithUpdaterMetrics(metrics *Metrics) UpdaterOption {
	return func(u *Updater) { u.metrics = metrics }
}

// WithUpdaterLogger sets the updater logger
func WithUpdaterLogger(logger logging.Logger) UpdaterOption {
	return func(u *Updater) { u.logger = logger }
}

// NewUpdater creates an updater. Zero config fields take their defaults.
func NewUpdater(directory Directory, manager *Manager, fetcher PeerTableFetcher, config UpdaterConfig, opts ...UpdaterOption) *Updater {
	defaults := DefaultUpdaterConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}

	u := &Updater{
		directory: directory,
		manager:   manager,
		fetcher:   fetcher,
		config:    config,
	}
	if config.RatePerSecond > 0 {
		u.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Concurrency)
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = logging.Component(u.logger, "routing.updater")
	return u
}

// Peers lists the distinct source-gateway members of every local community,
// excluding the local member. Each peer is paired with the first community,
// in sorted order, it was found in.
func (u *Updater) Peers() []Peer {
	local := u.directory.LocalMemberID()
	communities := u.directory.CommunityIDs()
	sort.Strings(communities)

	var peers []Peer
	for _, c := range communities {
		for _, g := range u.directory.SourceGateways(c) {
			if g.MemberID == local {
				continue
			}
			peers = append(peers, Peer{MemberID: g.MemberID, CommunityID: c})
		}
	}
	return lo.UniqBy(peers, func(p Peer) string { return p.MemberID })
}

// RunOnce fetches every peer table concurrently and applies each one as it
// arrives. A failing peer is recorded in the report and never stops the others.
func (u *Updater) RunOnce(ctx context.Context) UpdateReport {
	peers := u.Peers()
	report := UpdateReport{Peers: len(peers), Errors: make(map[string]error)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(u.config.Concurrency)

	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			changed, err := u.updateFromPeer(ctx, peer)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors[peer.MemberID] = err
				u.logger.Warn("Peer table fetch failed",
					logging.String("peer", peer.MemberID),
					logging.String("community", peer.CommunityID),
					logging.Err(err),
				)
				return nil
			}
			report.Succeeded++
			report.EntriesChanged += changed
			return nil
		})
	}
	_ = g.Wait()

	u.metrics.observeRound(report)
	u.logger.Info("Gossip round complete",
		logging.Int("peers", report.Peers),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("entries_changed", report.EntriesChanged),
	)
	return report
}

func (u *Updater) updateFromPeer(ctx context.Context, peer Peer) (int, error) {
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	fetchCtx, cancel := context.WithTimeout(logging.ContextWithMemberID(ctx, peer.MemberID), u.config.FetchTimeout)
	defer cancel()

	tuples, err := u.fetcher.FetchTable(fetchCtx, peer.MemberID, peer.CommunityID)
	if err != nil {
		return 0, err
	}
	return u.manager.ApplyPeerTable(ctx, peer.MemberID, tuples), nil
}

// Start schedules RunOnce every Interval until ctx is done or Stop is called.
// A round still running when the next one is due is skipped.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running {
		return ErrUpdaterRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{logger: u.logger}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", u.config.Interval), func() { u.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule gossip rounds: %w", err)
	}
	c.Start()

	u.cron = c
	u.cancel = cancel
	u.running = true

	go func() {
		<-runCtx.Done()
		u.stop(c)
	}()

	u.logger.Info("Routing updater started", logging.Duration("interval", u.config.Interval))
	return nil
}

// Stop halts scheduling and waits for a running round to finish
func (u *Updater) Stop() error {
	u.mu.Lock()
	c := u.cron
	u.mu.Unlock()

	if c == nil || !u.stop(c) {
		return ErrUpdaterStopped
	}
	return nil
}

// stop shuts down c if it is still the active schedule
func (u *Updater) stop(c *cron.Cron) bool {
	u.mu.Lock()
	if !u.running || u.cron != c {
		u.mu.Unlock()
		return false
	}
	cancel := u.cancel
	u.running = false
	u.cron, u.cancel = nil, nil
	u.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	u.logger.Info("Routing updater stopped")
	return true
}

// IsRunning reports whether rounds are scheduled
func (u *Updater) IsRunning() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

// cronLogger routes cron's internal logging through our logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, err, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
