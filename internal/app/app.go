package app

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"overlay-router/internal/authz"
	"overlay-router/internal/circuitbreaker"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/config"
	"overlay-router/internal/directory"
	"overlay-router/internal/locks"
	"overlay-router/internal/overlay"
	"overlay-router/internal/redis"
	"overlay-router/internal/routing"
	"overlay-router/internal/server"
	"overlay-router/internal/store"
	"overlay-router/internal/transport"
	"overlay-router/internal/transport/memory"
)

// App holds all the node dependencies
type App struct {
	Config      *config.Config
	Directory   *directory.Directory
	Store       store.Backend
	RedisClient *redis.Client
	Locker      *locks.Locker
	Metrics     *routing.Metrics
	Registry    *prometheus.Registry
	Manager     *routing.Manager
	Controller  *routing.Controller
	Transports  *transport.Registry
	Breakers    *circuitbreaker.Manager
	Engine      *routing.Engine
	Dispatcher  *routing.Dispatcher
	Node        *overlay.Node
	Updater     *routing.Updater
	Logger      logging.Logger

	base      logging.Logger
	deliverer routing.LocalDeliverer
	network   *memory.Network
	topology  *directory.Topology
	admin     *server.Server
}

// Option customises New
type Option func(*App)

// WithDeliverer sets the sink for messages addressed to the local member
func WithDeliverer(deliverer routing.LocalDeliverer) Option {
	return func(a *App) { a.deliverer = deliverer }
}

// WithMemoryNetwork attaches the memory transport to network, so several
// nodes can share one process.
func WithMemoryNetwork(network *memory.Network) Option {
	return func(a *App) { a.network = network }
}

// WithTopology uses topology instead of reading the topology file
func WithTopology(topology directory.Topology) Option {
	return func(a *App) { a.topology = &topology }
}

// WithLogger sets the application logger
func WithLogger(logger logging.Logger) Option {
	return func(a *App) { a.base = logger }
}

// New creates a node with all dependencies wired. Nothing listens until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.base == nil {
		app.base = logging.GetGlobalLogger()
	}
	app.base = app.base.WithFields(logging.String("member", cfg.MemberID))
	app.Logger = logging.Component(app.base, "app")
	if app.deliverer == nil {
		app.deliverer = overlay.LogDeliverer{Logger: app.Logger}
	}

	// Initialize components in order of dependency
	if err := app.initializeDirectory(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeStore(ctx); err != nil {
		return nil, app.abort(err)
	}

	if err := app.initializeLocker(); err != nil {
		return nil, app.abort(err)
	}

	app.initializeRouting()

	if err := app.initializeTransports(); err != nil {
		return nil, app.abort(err)
	}

	if err := app.initializeForwarding(); err != nil {
		return nil, app.abort(err)
	}

	return app, nil
}

// abort releases what New opened before failing
func (app *App) abort(err error) error {
	return multierr.Append(err, app.Cleanup())
}

func (app *App) initializeDirectory() error {
	var (
		dir *directory.Directory
		err error
	)
	if app.topology != nil {
		dir, err = directory.New(*app.topology)
	} else {
		dir, err = directory.LoadFile(app.Config.TopologyFile)
	}
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}

	if dir.LocalMemberID() != app.Config.MemberID {
		return errors.ConfigError(fmt.Sprintf("topology describes member %q, node is configured as %q",
			dir.LocalMemberID(), app.Config.MemberID))
	}

	app.Directory = dir
	app.Logger.Info("Directory loaded",
		logging.Strings("communities", dir.CommunityIDs()),
		logging.Int("gateways", len(dir.Gateways())),
	)
	return nil
}

func (app *App) initializeLocker() error {
	if !app.Config.RebuildLock {
		return nil
	}

	locker, err := locks.New(app.RedisClient, locks.WithLogger(app.base))
	if err != nil {
		return err
	}
	app.Locker = locker
	app.Logger.Info("Distributed rebuild lock enabled")
	return nil
}

func (app *App) initializeRouting() {
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = routing.NewMetrics(app.Registry)

	opts := []routing.ManagerOption{
		routing.WithStore(app.Store),
		routing.WithMetrics(app.Metrics),
		routing.WithLogger(app.base),
	}
	if app.Locker != nil {
		opts = append(opts, routing.WithLocker(app.Locker))
	}
	app.Manager = routing.NewManager(app.Directory, opts...)
	app.Controller = routing.NewController(app.Directory, app.Directory, app.Config.DefaultCommunity)
}

func (app *App) initializeForwarding() error {
	app.Breakers = circuitbreaker.NewManager(app.Config.Breaker(), app.base)
	app.Engine = routing.NewEngine(app.Directory, app.Manager, app.Controller, app.Transports,
		routing.WithBreakers(app.Breakers),
		routing.WithEngineLogger(app.base),
	)

	authorizer, err := authz.New(app.Config.AuthzPolicy, app.Config.MemberID, authz.WithLogger(app.base))
	if err != nil {
		return err
	}

	app.Dispatcher = routing.NewDispatcher(app.Directory, app.Manager, app.Engine, authorizer, app.deliverer,
		routing.WithMaxHops(app.Config.MaxHops),
		routing.WithReplayWindow(app.Config.ReplayWindow),
		routing.WithDispatcherMetrics(app.Metrics),
		routing.WithDispatcherLogger(app.base),
	)
	app.Node = overlay.NewNode(app.Manager, app.Engine, app.Dispatcher, app.deliverer,
		overlay.WithFetchTimeout(app.Config.FetchTimeout),
		overlay.WithLogger(app.base),
	)
	app.Updater = routing.NewUpdater(app.Directory, app.Manager, app.Node, app.Config.Updater(),
		routing.WithUpdaterMetrics(app.Metrics),
		routing.WithUpdaterLogger(app.base),
	)
	return nil
}

// Start fills the routing table, opens the transports, starts gossip and
// the admin server.
func (app *App) Start(ctx context.Context) error {
	loaded, err := app.Manager.LoadFromStore(ctx)
	if err != nil {
		return err
	}
	added, err := app.Manager.Recalculate(ctx)
	if err != nil {
		return err
	}
	app.Logger.Info("Routing table ready",
		logging.Int("loaded", loaded),
		logging.Int("recalculated", added),
	)

	if err := app.Transports.ListenAll(ctx, app.Node.Handle); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}

	if err := app.Updater.Start(ctx); err != nil {
		return err
	}

	if app.Config.AdminListenAddress != "" {
		app.admin = app.RunServer()
		if err := app.admin.Start(); err != nil {
			return fmt.Errorf("start admin server: %w", err)
		}
	}
	return nil
}

// Shutdown stops gossip, the admin server and the transports, then releases
// every connection.
func (app *App) Shutdown(ctx context.Context) error {
	var err error

	if app.Updater != nil {
		if stopErr := app.Updater.Stop(); stopErr != nil && !stderrors.Is(stopErr, routing.ErrUpdaterStopped) {
			err = multierr.Append(err, stopErr)
		}
	}
	if app.admin != nil {
		err = multierr.Append(err, app.admin.Shutdown(ctx))
	}
	if app.Transports != nil {
		err = multierr.Append(err, app.Transports.ShutdownAll(ctx))
	}

	err = multierr.Append(err, app.Cleanup())
	if err != nil {
		app.Logger.Warn("Shutdown finished with errors", logging.Err(err))
	}
	return err
}

// Cleanup releases store and redis resources
func (app *App) Cleanup() error {
	var err error
	if app.Locker != nil {
		err = multierr.Append(err, app.Locker.Close())
		app.Locker = nil
	}
	if app.Store != nil {
		err = multierr.Append(err, app.Store.Close())
		app.Store = nil
	}
	if app.RedisClient != nil {
		err = multierr.Append(err, app.RedisClient.Close())
		app.RedisClient = nil
	}
	return err
}

// AdminAddr returns the bound admin address once started
func (app *App) AdminAddr() string {
	if app.admin == nil {
		return ""
	}
	return app.admin.Addr()
}
