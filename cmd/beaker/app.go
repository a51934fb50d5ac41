package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/dag"
	"github.com/beakerflow/beaker/engine/events"
	"github.com/beakerflow/beaker/engine/graphmirror"
	"github.com/beakerflow/beaker/engine/seed"
	"github.com/beakerflow/beaker/pkg/metrics"
	"github.com/beakerflow/beaker/pkg/resilience"
)

// app bundles everything a command needs: the declared graph, its backing
// stores and transaction runner, the seed manager, and the optional
// lifecycle integrations (NATS events, Neo4j mirror, Prometheus export).
type app struct {
	cfg      config
	log      *slog.Logger
	graph    *dag.Graph
	stores   map[string]beaker.Store
	tx       beaker.TxRunner
	seeds    *seed.Manager
	events   *events.Publisher
	mirror   *graphmirror.Mirror
	registry *metrics.Registry

	closers []func() error
}

// newApp wires the pipeline against cfg: opens the embedded SQLite
// database, declares the demo graph, and connects optional NATS/Neo4j
// integrations when their URLs are configured.
func newApp(cfg config) (*app, error) {
	log := newLogger(cfg)

	graph, err := buildGraph()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	ddb, err := beaker.OpenDurableDB(gdb)
	if err != nil {
		return nil, fmt.Errorf("open durable db: %w", err)
	}

	stores := make(map[string]beaker.Store, len(beakerOrder))
	for _, name := range beakerOrder {
		node, ok := graph.Beaker(name)
		if !ok {
			continue
		}
		switch node.Variant {
		case beaker.Ephemeral:
			stores[name] = beaker.NewMemoryStore(name, node.Schema)
		default:
			store, err := ddb.Beaker(context.Background(), name, node.Schema)
			if err != nil {
				return nil, fmt.Errorf("open beaker %q: %w", name, err)
			}
			stores[name] = store
		}
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		graph:    graph,
		stores:   stores,
		tx:       ddb,
		seeds:    seed.NewManager(seed.NewDurableAuditStore(ddb.DB())),
		registry: metrics.New(),
	}
	registerSeeds(a.seeds, stores)

	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn("nats connect failed, continuing without event publishing", "err", err)
		} else {
			a.closers = append(a.closers, func() error { nc.Close(); return nil })
		}
	}
	a.events = events.NewPublisher(nc)

	var driver neo4j.DriverWithContext
	if cfg.Neo4jURL != "" {
		driver, err = neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			log.Warn("neo4j connect failed, continuing without graph mirror", "err", err)
			driver = nil
		} else {
			a.closers = append(a.closers, func() error { return driver.Close(context.Background()) })
		}
	}
	a.mirror = graphmirror.NewMirror(driver, resilience.NewBreaker(resilience.DefaultBreakerOpts))
	if err := a.mirror.SyncGraph(context.Background(), graph); err != nil {
		log.Warn("graph mirror sync failed, continuing without it", "err", err)
	}

	if cfg.MetricsPort > 0 {
		serveDebug(log, a.registry, cfg.MetricsPort)
	}

	return a, nil
}

// Close releases every resource opened by newApp (NATS connection, Neo4j
// driver). Safe to call even when nothing was opened.
func (a *app) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newLogger(cfg config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
