package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kamusis/upksearch/internal/catalog"
	"github.com/kamusis/upksearch/internal/config"
	"github.com/kamusis/upksearch/internal/embeddings"
	"github.com/kamusis/upksearch/internal/logging"
	"github.com/kamusis/upksearch/internal/search"
	searchindex "github.com/kamusis/upksearch/internal/search/index"
)

// app holds the long-lived pieces a command needs. Fields are nil when the
// command did not ask for them.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	cat    *catalog.SQLite
	enc    *embeddings.Embedder
	engine *search.Engine
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w\nRun 'upksearch init' first.", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
}

// newEmbedder builds the configured provider and probes it. This is the slow
// model-initialization step.
func newEmbedder(ctx context.Context, cfg *config.Config, log *zap.Logger) (*embeddings.Embedder, error) {
	prov, err := embeddings.NewFromConfig(cfg.Embeddings)
	if err != nil {
		return nil, err
	}
	if cfg.Embeddings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Embeddings.Timeout)
		defer cancel()
	}
	return embeddings.New(ctx, prov, embeddings.Options{
		BatchSize:   cfg.Embeddings.BatchSize,
		Concurrency: cfg.Embeddings.Concurrency,
		Logger:      log,
	})
}

// openApp loads config, opens the catalog and, when withEngine is set,
// initializes the embedding model and the search engine.
func openApp(ctx context.Context, withEngine bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	if a.cat, err = catalog.Open(cfg.CatalogPath); err != nil {
		a.Close()
		return nil, err
	}
	if withEngine {
		if err := a.initEngine(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// initEngine loads the embedding model and wires the search engine.
func (a *app) initEngine(ctx context.Context) error {
	enc, err := newEmbedder(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	a.enc = enc
	store := searchindex.NewStore(a.cfg.IndexPrefix, enc, a.log)
	a.engine = search.New(enc, a.cat, store, search.Options{
		Overfetch: a.cfg.Search.Overfetch,
		MinScore:  a.cfg.Search.MinScore,
		Logger:    a.log,
	})
	return nil
}

func (a *app) Close() {
	if a.cat != nil {
		_ = a.cat.Close()
	}
	_ = a.log.Sync()
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
