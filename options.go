package casebook

import (
	"time"

	"go.uber.org/zap"
)

// Option is a functional option for configuring a Session.
type Option func(*sessionConfig)

type sessionConfig struct {
	logger       *zap.Logger
	startNumber  int
	maxImageDim  int
	numberFormat string
	filenameStem string
	now          func() time.Time
}

// WithLogger sets the session logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *sessionConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStartNumber sets the first case number issued in an empty folder.
func WithStartNumber(n int) Option {
	return func(c *sessionConfig) {
		c.startNumber = n
	}
}

// WithMaxImageDimension bounds the longest side of prepared evidence images.
func WithMaxImageDimension(px int) Option {
	return func(c *sessionConfig) {
		if px > 0 {
			c.maxImageDim = px
		}
	}
}

// WithNumberFormat sets the default display format for case numbers, e.g.
// "RPT-{number}". Requests may override it per build.
func WithNumberFormat(format string) Option {
	return func(c *sessionConfig) {
		c.numberFormat = format
	}
}

// WithFilenameStem sets the fixed middle part of generated report filenames.
func WithFilenameStem(stem string) Option {
	return func(c *sessionConfig) {
		if stem != "" {
			c.filenameStem = stem
		}
	}
}

// WithClock overrides the session time source.
func WithClock(now func() time.Time) Option {
	return func(c *sessionConfig) {
		if now != nil {
			c.now = now
		}
	}
}
