package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mentara/mentara/internal/config"
	"github.com/mentara/mentara/internal/logger"
	"github.com/mentara/mentara/internal/observability"
	"github.com/mentara/mentara/internal/tracing"
	"github.com/mentara/mentara/pkg/agent"
	"github.com/mentara/mentara/pkg/archive"
	"github.com/mentara/mentara/pkg/conversation"
	"github.com/mentara/mentara/pkg/gateway"
)

// Daemon is the long-running simulation service. It owns the session
// registry, the agent client, the archive store, and the gateway.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	registry      *conversation.Registry
	archiveStore  *archive.Store
	gatewayServer *gateway.Server
	lifecycle     *LifecycleManager
	tracer        *tracing.Provider

	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status is the daemon's runtime state snapshot.
type Status struct {
	Running        bool
	PID            int
	Uptime         time.Duration
	ActiveSessions int
}

// New wires the daemon from configuration. Nothing starts running
// until Start is called.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()
	tracer, err := tracing.NewProvider("mentara-daemon")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
	}

	zl := log.GetZerolog()

	provider, err := agent.NewProvider(cfg.Agent.Provider, cfg.Agent.APIKey)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	client := agent.NewClient(provider, agent.Config{
		StudentModel:  cfg.Agent.StudentModel,
		EducatorModel: cfg.Agent.EducatorModel,
		FeedbackModel: cfg.Agent.FeedbackModel,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
	}, zl)

	store, err := archive.NewStore(cfg.DataDir, zl)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open archive store: %w", err)
	}

	sim := cfg.Simulation
	registry := conversation.NewRegistry(conversation.Config{
		Scheduler: conversation.SchedulerConfig{
			MaxTurns:      sim.MaxTurns,
			StudentDelay:  time.Duration(sim.StudentDelaySeconds) * time.Second,
			EducatorDelay: time.Duration(sim.EducatorDelaySeconds) * time.Second,
			GracePeriod:   time.Duration(sim.GraceSeconds) * time.Second,
			AgentTimeout:  time.Duration(sim.AgentTimeoutSeconds) * time.Second,
		},
		EndGrace:      time.Duration(sim.EndGraceSeconds) * time.Second,
		Retention:     time.Duration(sim.RetentionMinutes) * time.Minute,
		SweepInterval: time.Duration(sim.SweepIntervalSeconds) * time.Second,
	}, client, store, zl)

	gw := gateway.NewServer(gateway.Config{
		Host:               "0.0.0.0",
		Port:               cfg.Server.Port,
		PollInterval:       time.Duration(cfg.Delivery.PollIntervalMillis) * time.Millisecond,
		DefaultPollTimeout: time.Duration(cfg.Delivery.DefaultTimeoutSeconds) * time.Second,
		MaxPollTimeout:     time.Duration(cfg.Delivery.MaxTimeoutSeconds) * time.Second,
		Provider:           cfg.Agent.Provider,
	}, registry, zl)

	d := &Daemon{
		config:        cfg,
		logger:        log,
		registry:      registry,
		archiveStore:  store,
		gatewayServer: gw,
		tracer:        tracer,
		ctx:           ctx,
		cancel:        cancel,
	}
	d.lifecycle = NewLifecycleManager(d)
	return d, nil
}

// Start brings the daemon up.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	log := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	log.Info().Msg("Starting Mentara daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	d.registry.StartSweeper()
	log.Info().Msg("Session sweeper started")

	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	log.Info().Int("port", d.config.Server.Port).Msg("Gateway server started")

	log.Info().Msg("Daemon started successfully")
	return nil
}

// Stop shuts the daemon down gracefully.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	log := d.logger.GetZerolog()
	log.Info().Msg("Stopping Mentara daemon")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.gatewayServer.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to stop gateway server")
	}

	d.registry.Close(ctx)
	log.Info().Msg("Session registry closed")

	if err := d.tracer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down tracing")
	}

	if err := d.lifecycle.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.cancel()
	log.Info().Msg("Daemon stopped")
	return nil
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	d.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	return d.Stop()
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var uptime time.Duration
	if d.running {
		uptime = time.Since(d.startTime)
	}
	return Status{
		Running:        d.running,
		PID:            os.Getpid(),
		Uptime:         uptime,
		ActiveSessions: d.registry.Count(),
	}
}

// GetConfig exposes the configuration, mainly for the CLI layer.
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetRegistry exposes the session registry for tests.
func (d *Daemon) GetRegistry() *conversation.Registry {
	return d.registry
}
