package api

import (
	"time"

	"github.com/okian/shaker/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultUserID sets the user id used when a request names none.
func WithDefaultUserID(id string) Option {
	return func(s *Server) {
		if id != "" {
			s.defaultUserID = id
		}
	}
}

// WithDefaultK sets the default result sizes of /recs and /similar.
func WithDefaultK(recs, similar int) Option {
	return func(s *Server) {
		if recs > 0 {
			s.defaultK = recs
		}
		if similar > 0 {
			s.defaultSimilarK = similar
		}
	}
}

// WithDefaultPageSize sets the page size used when a query names none.
func WithDefaultPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultPageSize = n
		}
	}
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = append([]string(nil), origins...)
	}
}

// WithRateLimit limits write requests per client IP. A non-positive
// requests value disables the limit.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimit = requests
		if window > 0 {
			s.rateWindow = window
		}
	}
}
