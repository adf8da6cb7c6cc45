package zim

import (
	"context"

	"github.com/meigma/zim/internal/batch"
)

// ExtractStats contains statistics about an extraction.
type ExtractStats = batch.ProcessStats

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite  bool
	workers    int
	namespaces map[Namespace]struct{}
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithWorkers sets the number of clusters decoded in parallel.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithNamespaces restricts extraction to the given namespaces.
func ExtractWithNamespaces(ns ...Namespace) ExtractOption {
	return func(c *extractConfig) {
		if c.namespaces == nil {
			c.namespaces = make(map[Namespace]struct{}, len(ns))
		}
		for _, n := range ns {
			c.namespaces[n] = struct{}{}
		}
	}
}

// Extract writes every content entry to dir/<namespace>/<url>.
//
// Each cluster is decoded once. Files are written to a temporary name and
// renamed into place. Entries whose URL is not a valid relative path fail
// with an *fs.PathError wrapping fs.ErrInvalid. Redirects are counted as
// skipped.
func (r *Reader) Extract(ctx context.Context, dir string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !r.live() {
		return ExtractStats{}, ErrClosed
	}

	entries := make([]*Entry, 0, len(r.entries))
	for i := range r.entries {
		e := &r.entries[i]
		if cfg.namespaces != nil {
			if _, ok := cfg.namespaces[e.Namespace]; !ok {
				continue
			}
		}
		entries = append(entries, e)
	}

	r.log().Info("extracting archive", "dir", dir, "entries", len(entries))
	proc := batch.NewProcessor(clusterSource{r: r},
		batch.WithWorkers(cfg.workers),
		batch.WithProcessorLogger(r.logger))
	sink := batch.NewFileSink(dir, batch.WithOverwrite(cfg.overwrite))
	defer sink.Close()
	stats, err := proc.Process(ctx, entries, sink)
	if err != nil {
		return stats, err
	}
	r.log().Debug("extraction complete", "processed", stats.Processed, "skipped", stats.Skipped, "bytes", stats.TotalBytes)
	return stats, nil
}
