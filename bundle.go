package mailpoet

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/d-alleyne/mailpoet/internal/builder"
	"github.com/d-alleyne/mailpoet/internal/engine"
	"github.com/d-alleyne/mailpoet/internal/scheduler"
	"github.com/d-alleyne/mailpoet/internal/storage"
	"github.com/d-alleyne/mailpoet/internal/validation"
	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/hooks"
	"github.com/d-alleyne/mailpoet/pkg/registry"
	workerpkg "github.com/d-alleyne/mailpoet/pkg/worker"
)

// Options tunes a Bundle. Zero values select sensible defaults.
type Options struct {
	// Logger receives the engine's and worker's structured logs.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Worker configures the job-consuming worker.
	Worker workerpkg.Config
}

// Bundle wires together stores, a job queue, the step engine, the authoring
// controllers, and a Worker consuming from that queue. All components share
// the same registry and hook set.
type Bundle struct {
	Registry   *registry.Registry
	Hooks      *hooks.Hooks
	Workflows  api.WorkflowStore
	Runs       api.RunStore
	Logs       api.RunLogStore
	Steps      api.StepController
	Updates    api.UpdateController
	Dispatcher api.TriggerDispatcher
	Worker     *workerpkg.Worker

	// queue is kept unexported; it is primarily useful for internal
	// inspection and tests.
	queue   scheduler.Queue
	creator *builder.CreateWorkflowController
}

type bundleStores struct {
	workflows api.WorkflowStore
	runs      api.RunStore
	logs      api.RunLogStore
}

func newBundle(reg *registry.Registry, stores bundleStores, queue scheduler.Queue, opts Options) *Bundle {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := hooks.New()
	validator := validation.New(reg)

	handler := engine.NewStepHandler(engine.StepHandlerConfig{
		Workflows: stores.workflows,
		Runs:      stores.runs,
		Logs:      stores.logs,
		Scheduler: queue,
		Registry:  reg,
		Hooks:     h,
		Logger:    logger,
	})
	handler.AddStepRunner(api.StepTypeAction, engine.NewActionStepRunner(reg))

	return &Bundle{
		Registry:   reg,
		Hooks:      h,
		Workflows:  stores.workflows,
		Runs:       stores.runs,
		Logs:       stores.logs,
		Steps:      handler,
		Updates:    builder.NewUpdateWorkflowController(stores.workflows, reg, validator, h),
		Dispatcher: engine.NewTriggerHandler(stores.workflows, stores.runs, queue, logger),
		Worker:     workerpkg.New(queue, handler, logger, opts.Worker),
		queue:      queue,
		creator:    builder.NewCreateWorkflowController(stores.workflows, validator),
	}
}

// NewMemoryBundle wires a fully in-memory Bundle. Nothing is durable; best
// for tests and local experimentation.
func NewMemoryBundle(reg *registry.Registry, opts Options) *Bundle {
	store := storage.NewMemoryStore()
	return newBundle(reg, bundleStores{
		workflows: store,
		runs:      store,
		logs:      store,
	}, scheduler.NewInMemoryQueue(), opts)
}

// NewSQLiteBundle wires a durable Bundle sharing one SQLite database for
// workflows, runs, and the job queue.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:mailpoet.db?_journal=WAL")
//	bundle, err := mailpoet.NewSQLiteBundle(db, reg, mailpoet.Options{})
func NewSQLiteBundle(db *sql.DB, reg *registry.Registry, opts Options) (*Bundle, error) {
	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	queue, err := scheduler.NewSQLiteQueue(db)
	if err != nil {
		return nil, err
	}
	return newBundle(reg, bundleStores{
		workflows: store,
		runs:      store,
		logs:      store,
	}, queue, opts), nil
}

// NewPostgresBundle wires a durable Bundle backed by PostgreSQL. Multiple
// worker processes can safely share the same database.
func NewPostgresBundle(db *sql.DB, reg *registry.Registry, opts Options) (*Bundle, error) {
	store, err := storage.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	queue, err := scheduler.NewPostgresQueue(db)
	if err != nil {
		return nil, err
	}
	return newBundle(reg, bundleStores{
		workflows: store,
		runs:      store,
		logs:      store,
	}, queue, opts), nil
}

// NewRedisBundle wires a Bundle that keeps runs, run logs, and the job
// queue in Redis. Workflow definitions stay in memory; author them on every
// process start or pair the bundle with your own WorkflowStore.
func NewRedisBundle(client *redis.Client, reg *registry.Registry, opts Options) *Bundle {
	runs := storage.NewRedisRunStore(client, "")
	return newBundle(reg, bundleStores{
		workflows: storage.NewMemoryStore(),
		runs:      runs,
		logs:      runs,
	}, scheduler.NewRedisQueue(client, ""), opts)
}

// CreateWorkflow validates and persists a new draft workflow.
func (b *Bundle) CreateWorkflow(ctx context.Context, name string, steps map[string]*api.Step) (*api.Workflow, error) {
	return b.creator.CreateWorkflow(ctx, name, steps)
}

// Start hands the dispatcher to every registered trigger and runs the
// worker until the context is canceled.
func (b *Bundle) Start(ctx context.Context) error {
	b.Registry.RegisterTriggerHooks(b.Dispatcher)
	return b.Worker.Run(ctx)
}
