package zim

import "log/slog"

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithClusterCacheSize sets how many decoded clusters are kept in memory
// (default: 16). Zero disables caching.
func WithClusterCacheSize(n int) Option {
	return func(r *Reader) {
		r.cacheSize = max(n, 0)
	}
}

// WithMaxRedirectHops sets how many redirects Resolve follows before
// returning ErrRedirectLimit (default: 1). Values < 1 are treated as 1.
func WithMaxRedirectHops(n int) Option {
	return func(r *Reader) {
		r.maxHops = max(n, 1)
	}
}

// WithMaxClusterSize limits the decoded size of a single cluster
// (default: 256 MiB). Set limit to 0 to disable the limit.
func WithMaxClusterSize(limit uint64) Option {
	return func(r *Reader) {
		r.maxClusterSize = limit
	}
}
