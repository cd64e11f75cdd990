package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kamusis/upksearch/internal/catalog"
)

// ErrNothingExtracted means no package produced any records, so the catalog
// was left untouched.
var ErrNothingExtracted = errors.New("no assets extracted")

// Sink receives a complete rescan.
type Sink interface {
	ReplaceAll(ctx context.Context, records []catalog.Record) ([]catalog.Record, error)
}

// Options configures Run.
type Options struct {
	AllowedTypes []string
	// PackageTimeout bounds one lister invocation; zero means no limit.
	PackageTimeout time.Duration
	Logger         *zap.Logger
}

// Report summarizes a run.
type Report struct {
	Packages int
	Failed   []string
	Records  []catalog.Record
}

// Run lists every discovered package, parses the output, and replaces the
// catalog with the result. Packages that fail are logged and skipped.
func Run(ctx context.Context, lister Lister, sink Sink, opts Options) (Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	allowed := opts.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}

	pkgs, err := lister.Discover()
	if err != nil {
		return Report{}, err
	}
	log.Info("scanning packages", zap.Int("packages", len(pkgs)))

	rep := Report{Packages: len(pkgs)}
	var records []catalog.Record
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		recs, err := listPackage(ctx, lister, pkg, allowed, opts.PackageTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Failed = append(rep.Failed, pkg)
			log.Warn("package scan failed", zap.String("package", pkg), zap.Error(err))
			continue
		}
		log.Debug("package scanned", zap.String("package", pkg), zap.Int("assets", len(recs)))
		records = append(records, recs...)
	}

	if len(records) == 0 {
		return rep, ErrNothingExtracted
	}
	stored, err := sink.ReplaceAll(ctx, records)
	if err != nil {
		return rep, fmt.Errorf("store catalog: %w", err)
	}
	rep.Records = stored
	log.Info("catalog replaced",
		zap.Int("assets", len(stored)),
		zap.Int("failed_packages", len(rep.Failed)))
	return rep, nil
}

func listPackage(ctx context.Context, lister Lister, pkg string, allowed []string, timeout time.Duration) ([]catalog.Record, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := lister.List(ctx, pkg)
	if err != nil {
		return nil, err
	}
	return ParseListing(pkg, out, allowed)
}
