// Package wire provides dependency injection for the triage application.
// It creates singleton services with lazy initialization.
package wire

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	cliadapter "github.com/example/triage/internal/adapters/cli"
	"github.com/example/triage/internal/adapters/sqlstore"
	"github.com/example/triage/internal/adapters/tracker"
	"github.com/example/triage/internal/app"
	"github.com/example/triage/internal/config"
	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/logging"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

var (
	cfg                   *config.Config
	database              *sql.DB
	classificationService primary.ClassificationService
	groupService          primary.GroupService
	reclassService        primary.ReclassificationService
	pushService           primary.IssuePushService
	ruleService           primary.RuleService

	once    sync.Once
	initErr error
)

// Init loads the configuration from dir and builds every service.
// Only the first call does any work; later calls return its error.
func Init(dir string) error {
	once.Do(func() { initErr = initServices(dir) })
	return initErr
}

// Config returns the effective configuration.
func Config() *config.Config {
	mustInit()
	return cfg
}

// Close releases the database connection.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices(dir string) error {
	var err error
	cfg, err = config.Load(dir)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format)

	pendingTimeout, err := cfg.PendingTimeout()
	if err != nil {
		return err
	}
	trackerTimeout, err := cfg.TrackerTimeout()
	if err != nil {
		return err
	}

	database, err = db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.InitSchema(database, cfg.Database.Driver); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Create the store adapter (secondary ports) with the injected DB
	store := sqlstore.New(database, cfg.Database.Driver)

	// The tracker stays a nil interface when no URL is configured
	var issueTracker secondary.IssueTracker
	if cfg.Tracker.URL != "" {
		issueTracker = tracker.NewClient(tracker.Config{
			BaseURL: cfg.Tracker.URL,
			Token:   cfg.Tracker.Token,
			Timeout: trackerTimeout,
		})
	}

	// Create services (primary ports implementation)
	classificationService = app.NewClassificationService(store, cfg.Workers)
	groupService = app.NewGroupService(store)
	reclassService = app.NewReclassificationService(store)
	pushService = app.NewIssuePushService(store, issueTracker, pendingTimeout)
	ruleService = app.NewRuleService(store)

	logging.New("wire").Debug("services initialized",
		"driver", cfg.Database.Driver,
		"workers", cfg.Workers,
		"tracker", cfg.Tracker.URL != "")
	return nil
}

func mustInit() {
	if err := Init("."); err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
}

// ClassificationAdapter returns a new ClassificationAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func ClassificationAdapter() *cliadapter.ClassificationAdapter {
	return ClassificationAdapterWithOutput(os.Stdout)
}

// ClassificationAdapterWithOutput returns a new ClassificationAdapter writing to the given output.
func ClassificationAdapterWithOutput(out io.Writer) *cliadapter.ClassificationAdapter {
	mustInit()
	return cliadapter.NewClassificationAdapter(classificationService, reclassService, out)
}

// GroupAdapter returns a new GroupAdapter writing to stdout.
func GroupAdapter() *cliadapter.GroupAdapter {
	return GroupAdapterWithOutput(os.Stdout)
}

// GroupAdapterWithOutput returns a new GroupAdapter writing to the given output.
func GroupAdapterWithOutput(out io.Writer) *cliadapter.GroupAdapter {
	mustInit()
	return cliadapter.NewGroupAdapter(groupService, reclassService, out)
}

// RuleAdapter returns a new RuleAdapter writing to stdout.
func RuleAdapter() *cliadapter.RuleAdapter {
	return RuleAdapterWithOutput(os.Stdout)
}

// RuleAdapterWithOutput returns a new RuleAdapter writing to the given output.
func RuleAdapterWithOutput(out io.Writer) *cliadapter.RuleAdapter {
	mustInit()
	return cliadapter.NewRuleAdapter(ruleService, out)
}

// PushAdapter returns a new PushAdapter writing to stdout.
func PushAdapter() *cliadapter.PushAdapter {
	return PushAdapterWithOutput(os.Stdout)
}

// PushAdapterWithOutput returns a new PushAdapter writing to the given output.
func PushAdapterWithOutput(out io.Writer) *cliadapter.PushAdapter {
	mustInit()
	return cliadapter.NewPushAdapter(pushService, out)
}
