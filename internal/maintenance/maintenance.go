package maintenance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mnemohq/mnemo/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Config holds maintenance module configuration.
type Config struct {
	StatsSchedule string `yaml:"stats_schedule"`
}

func (c *Config) defaults() {
	if c.StatsSchedule == "" {
		c.StatsSchedule = "*/5 * * * *"
	}
}

// Module owns the background job scheduler. It resolves the coordinator from
// the service registry at Start, so it must be loaded after the memory
// wiring has run.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "maintenance.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(m.logger)
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("memory.coordinator")
	if !ok {
		return errors.New("maintenance: memory.coordinator service not registered")
	}
	stats, ok := svc.(MemoryStats)
	if !ok {
		return errors.New("maintenance: memory.coordinator service has unexpected type")
	}

	if err := m.scheduler.RegisterJob(&StatsJob{
		Stats:        stats,
		Logger:       m.logger,
		ScheduleExpr: m.config.StatsSchedule,
	}); err != nil {
		return err
	}

	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}
