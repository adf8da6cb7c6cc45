// Package batch extracts many entries efficiently by decoding each
// cluster once and writing its blobs to a sink.
package batch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/zim/internal/cluster"
	"github.com/meigma/zim/internal/zimtype"
)

// Entry is an alias for zimtype.Entry.
type Entry = zimtype.Entry

// ClusterSource returns decoded clusters by number.
type ClusterSource interface {
	Cluster(n uint32) (*cluster.Cluster, error)
}

// Processor groups entries by cluster and writes their content to a sink.
type Processor struct {
	source  ClusterSource
	workers int // 0 = auto, <0 = serial, >0 = fixed count
	logger  *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of clusters decoded in parallel.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithProcessorLogger sets the logger for batch processing operations.
// If not set, logging is disabled.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a processor reading clusters from source.
func NewProcessor(source ClusterSource, opts ...ProcessorOption) *Processor {
	p := &Processor{source: source}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// clusterGroup holds the entries whose content lives in one cluster.
type clusterGroup struct {
	cluster uint32
	entries []*Entry
}

// groupByCluster groups content entries by cluster number. Entries must be
// sorted by (ClusterNumber, BlobNumber).
func groupByCluster(entries []*Entry) []clusterGroup {
	var groups []clusterGroup
	for _, e := range entries {
		if n := len(groups); n > 0 && groups[n-1].cluster == e.ClusterNumber {
			groups[n-1].entries = append(groups[n-1].entries, e)
			continue
		}
		groups = append(groups, clusterGroup{cluster: e.ClusterNumber, entries: []*Entry{e}})
	}
	return groups
}

// Process writes the content of every entry the sink accepts.
//
// Redirects and entries rejected by sink.ShouldProcess are counted as
// skipped. Processing stops on the first error.
func (p *Processor) Process(ctx context.Context, entries []*Entry, sink Sink) (ProcessStats, error) {
	var stats ProcessStats

	toProcess := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsRedirect() || !sink.ShouldProcess(e) {
			stats.Skipped++
			continue
		}
		toProcess = append(toProcess, e)
	}
	if len(toProcess) == 0 {
		return stats, nil
	}

	slices.SortFunc(toProcess, func(a, b *Entry) int {
		if c := cmp.Compare(a.ClusterNumber, b.ClusterNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.BlobNumber, b.BlobNumber)
	})
	groups := groupByCluster(toProcess)

	workers := p.workerCount(len(groups))
	p.log().Debug("batch processing", "entries", len(toProcess), "clusters", len(groups), "workers", workers)

	var processed atomic.Int64
	var total atomic.Uint64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, size, err := p.processGroup(ctx, group, sink)
			processed.Add(int64(n))
			total.Add(size)
			return err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats.Processed = int(processed.Load())
	stats.TotalBytes = total.Load()
	return stats, err
}

func (p *Processor) workerCount(groups int) int {
	switch {
	case p.workers < 0:
		return 1
	case p.workers > 0:
		return min(p.workers, groups)
	default:
		return max(1, min(runtime.GOMAXPROCS(0), groups))
	}
}

// processGroup decodes one cluster and writes each of its entries.
func (p *Processor) processGroup(ctx context.Context, group clusterGroup, sink Sink) (int, uint64, error) {
	c, err := p.source.Cluster(group.cluster)
	if err != nil {
		return 0, 0, fmt.Errorf("batch: cluster %d: %w", group.cluster, err)
	}

	var n int
	var size uint64
	for _, e := range group.entries {
		if err := ctx.Err(); err != nil {
			return n, size, err
		}
		content, err := c.Blob(int(e.BlobNumber))
		if err != nil {
			return n, size, fmt.Errorf("batch: %s: %w", e.Path(), err)
		}
		if err := writeEntry(sink, e, content); err != nil {
			return n, size, fmt.Errorf("batch: %s: %w", e.Path(), err)
		}
		n++
		size += uint64(len(content))
	}
	return n, size, nil
}

func writeEntry(sink Sink, e *Entry, content []byte) error {
	w, err := sink.Writer(e)
	if err != nil {
		return err
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
