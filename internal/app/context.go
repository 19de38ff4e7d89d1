// Package app holds the process-wide runtime shared by CLI commands:
// settings, the central logger, metrics and the lazily opened store.
package app

import (
	"context"
	"sync"

	"github.com/evalgrid/postit/internal/buildinfo"
	"github.com/evalgrid/postit/internal/catalog"
	"github.com/evalgrid/postit/internal/conf"
	"github.com/evalgrid/postit/internal/datastore"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/observability"
	"github.com/evalgrid/postit/internal/session"
	"github.com/evalgrid/postit/internal/telemetry"
	"github.com/evalgrid/postit/internal/workflow"
)

// Context holds the overall application state.
type Context struct {
	Settings *conf.Settings
	Build    buildinfo.Info
	Logger   *logger.CentralLogger
	Metrics  *observability.Metrics

	mu      sync.Mutex
	manager datastore.Manager
	store   *datastore.GormStore
	catalog *catalog.Catalog
}

// NewContext returns a context for settings. Call Setup before use.
func NewContext(settings *conf.Settings) *Context {
	return &Context{Settings: settings, Build: buildinfo.Current()}
}

// Setup creates the logger, metrics registry and error reporting.
func (c *Context) Setup() error {
	cl, err := logger.NewCentralLogger(&c.Settings.Logging)
	if err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "create_logger").
			Build()
	}
	c.Logger = cl
	logger.SetGlobal(cl)

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	c.Metrics = m

	if _, err := telemetry.Init(&c.Settings.Telemetry, c.Build, cl.Module("app")); err != nil {
		// reporting is optional
		cl.Module("app").Warn("error reporting disabled", logger.Error(err))
	}
	return nil
}

// Log returns a module logger, or a discarding one before Setup.
func (c *Context) Log(module string) logger.Logger {
	if c.Logger == nil {
		return logger.NewSlogLogger(nil, logger.LogLevelError, nil).Module(module)
	}
	return c.Logger.Module(module)
}

// OpenManager opens the configured database and migrates its schema.
func (c *Context) OpenManager() (datastore.Manager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openManagerLocked()
}

func (c *Context) openManagerLocked() (datastore.Manager, error) {
	if c.manager != nil {
		return c.manager, nil
	}
	m, err := datastore.Open(&c.Settings.Store, c.Log("datastore"))
	if err != nil {
		return nil, err
	}
	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, err
	}
	c.manager = m
	return m, nil
}

// Store returns the GORM-backed store, opening the database on first use.
func (c *Context) Store(_ context.Context) (*datastore.GormStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	m, err := c.openManagerLocked()
	if err != nil {
		return nil, err
	}
	opts := []datastore.StoreOption{datastore.WithLogger(c.Log("datastore"))}
	if c.Metrics != nil {
		opts = append(opts, datastore.WithMetrics(c.Metrics.Datastore))
	}
	c.store = datastore.NewGormStore(m.DB(), opts...)
	return c.store, nil
}

// Catalog returns the cached criterion/practice catalog.
func (c *Context) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	st, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.catalog == nil {
		opts := []catalog.Option{catalog.WithLogger(c.Log("catalog"))}
		if c.Metrics != nil {
			opts = append(opts, catalog.WithMetrics(c.Metrics.Datastore))
		}
		c.catalog = catalog.New(st.Catalog(), c.Settings.Catalog.CacheTTL, opts...)
	}
	return c.catalog, nil
}

// SessionConfig maps workflow settings onto a session configuration.
func (c *Context) SessionConfig() session.Config {
	w := c.Settings.Workflow
	gating := workflow.GatingStrict
	if w.SummaryGating == conf.GatingRelaxed {
		gating = workflow.GatingRelaxed
	}
	return session.Config{
		Workflow: workflow.Config{
			AutoAdvanceDelay: w.AutoAdvanceDelay,
			ManualGrace:      w.ManualGrace,
			Gating:           gating,
		},
		ClearPracticeOnSwitch: w.ClearPracticeOnCriterionSwitch,
	}
}

// SessionOptions returns the logger and recorder options for a session.
func (c *Context) SessionOptions() []session.Option {
	opts := []session.Option{session.WithLogger(c.Log("app"))}
	if c.Metrics != nil {
		opts = append(opts, session.WithRecorder(c.Metrics.Engine))
	}
	return opts
}

// Close releases the database, flushes error reports and closes log files.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.manager != nil {
		if err := c.manager.Close(); err != nil {
			errs = append(errs, err)
		}
		c.manager = nil
		c.store = nil
		c.catalog = nil
	}
	telemetry.Close()
	if c.Logger != nil {
		if err := c.Logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
