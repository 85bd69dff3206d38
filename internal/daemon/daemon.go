package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fika-labs/agentrelay/internal/config"
	"github.com/fika-labs/agentrelay/internal/logger"
	"github.com/fika-labs/agentrelay/internal/observability"
	"github.com/fika-labs/agentrelay/internal/tracing"
	"github.com/fika-labs/agentrelay/pkg/executor"
	"github.com/fika-labs/agentrelay/pkg/gateway"
	"github.com/fika-labs/agentrelay/pkg/httpapi"
	"github.com/fika-labs/agentrelay/pkg/session"
	"github.com/fika-labs/agentrelay/pkg/store"
	"github.com/fika-labs/agentrelay/pkg/taskqueue"
	"github.com/robfig/cron/v3"
)

// Daemon wires the session backend together: store, registry, task
// queue, turn executors, HTTP transport, lifecycle gateway, and
// scheduled maintenance.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	store    *store.Store
	registry *session.Registry
	queue    *taskqueue.Queue

	apiServer     *httpapi.Server
	gatewayServer *gateway.Server
	cron          *cron.Cron
	configWatcher *config.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New creates a daemon from a loaded configuration
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()
	if err := tracing.InitOpenTelemetry("agentrelay"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
	}

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	st, err := store.New(store.Config{
		DBPath: cfg.Database.Path,
		Logger: log.GetZerolog(),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	d.store = st

	d.registry = session.NewRegistry()
	d.queue = taskqueue.New(log.GetZerolog())

	var notifier httpapi.Notifier
	if cfg.Gateway.Enabled {
		d.gatewayServer = gateway.NewServer(log.GetZerolog())
		notifier = d.gatewayServer.Broadcaster()
	}

	options := httpapi.ServerOptions{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if d.gatewayServer != nil {
		options.WSHandler = d.gatewayServer.HandleWS
	}

	api, err := httpapi.NewServer(options, st, d.registry, d.queue,
		d.coordinatorFactory, notifier, log.GetZerolog())
	if err != nil {
		st.Close()
		cancel()
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}
	d.apiServer = api

	return d, nil
}

// coordinatorFactory builds a coordinator for a newly created session
// row, with an executor for the configured default provider
func (d *Daemon) coordinatorFactory(sess store.Session) (*session.Coordinator, error) {
	provider := d.config.Providers.Default
	apiKey := d.apiKeyFor(provider)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", provider)
	}

	exec, err := executor.ForProvider(provider, apiKey, nil, nil, d.logger.GetZerolog())
	if err != nil {
		return nil, err
	}

	return session.NewCoordinator(session.CoordinatorConfig{
		SessionID:          sess.ID,
		Model:              sess.Model,
		ToolVersion:        sess.ToolVersion,
		SystemPromptSuffix: sess.SystemPromptSuffix,
		Provider:           provider,
		APIKey:             apiKey,
		MaxTokens:          d.config.Defaults.MaxTokens,
		Store:              d.store,
		Executor:           exec,
		Logger:             d.logger.GetZerolog(),
	})
}

func (d *Daemon) apiKeyFor(provider string) string {
	switch provider {
	case "openai":
		return d.config.Providers.OpenAI.APIKey
	default:
		return d.config.Providers.Anthropic.APIKey
	}
}

// Start brings up scheduled jobs, the config watcher, and the HTTP
// server. It returns once the server goroutine is launched.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.startCron(); err != nil {
		return err
	}
	d.startConfigWatcher()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.apiServer.Start(); err != nil {
			d.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	d.logger.Info().
		Str("host", d.config.Server.Host).
		Int("port", d.config.Server.Port).
		Bool("gateway", d.gatewayServer != nil).
		Msg("Daemon started")
	return nil
}

func (d *Daemon) startCron() error {
	d.cron = cron.New()

	if _, err := d.cron.AddFunc(d.config.Maintenance.Schedule, func() {
		ctx, cancel := context.WithTimeout(d.ctx, time.Minute)
		defer cancel()
		if err := d.store.Maintain(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Store maintenance failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid maintenance schedule: %w", err)
	}

	// Keep the session gauge honest even if register/remove paths miss
	if _, err := d.cron.AddFunc("* * * * *", func() {
		observability.SetActiveSessions(d.registry.Len())
	}); err != nil {
		return err
	}

	d.cron.Start()
	return nil
}

func (d *Daemon) startConfigWatcher() {
	loader := config.NewLoader("")
	watcher, err := config.NewWatcher(loader, d.logger.GetZerolog(), func(cfg *config.Config) {
		d.logger.SetLevel(cfg.Logging.Level)
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("Config watcher unavailable, log level is fixed")
		return
	}
	d.configWatcher = watcher
}

// Stop shuts the daemon down in dependency order: no new HTTP work,
// interrupt and wait out in-flight turns, then close the store
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping daemon")

	if d.configWatcher != nil {
		_ = d.configWatcher.Stop()
	}
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.apiServer.Stop(shutdownCtx); err != nil {
		d.logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := d.queue.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn().Err(err).Msg("Task queue did not stop in time")
	}
	if err := d.store.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Store close failed")
	}

	if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
		d.logger.Warn().Err(err).Msg("Tracing shutdown failed")
	}

	d.cancel()
	d.wg.Wait()

	d.logger.Info().Dur("uptime", time.Since(d.startTime)).Msg("Daemon stopped")
	return nil
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Status reports whether the daemon is running and for how long
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{Running: d.running}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}
	return status
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}
