package kql

import (
	"strings"

	"github.com/DIVD-NL/ioc-hunt/pkg/types"
)

type options struct {
	indicatorType types.IndicatorType
	typed         bool
	timeRange     string
	limit         int
}

// Option adjusts how queries are rendered.
type Option func(*options)

// WithType skips classification and treats every value as t.
func WithType(t types.IndicatorType) Option {
	return func(o *options) {
		o.indicatorType = t
		o.typed = true
	}
}

// WithTimeRange sets the KQL time expression, e.g. "ago(30d)".
// An empty expression keeps DefaultTimeRange.
func WithTimeRange(expr string) Option {
	return func(o *options) {
		if expr = strings.TrimSpace(expr); expr != "" {
			o.timeRange = expr
		}
	}
}

// WithLimit sets the row limit. Values below 1 keep DefaultLimit.
func WithLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.limit = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		indicatorType: types.Unknown,
		timeRange:     DefaultTimeRange,
		limit:         DefaultLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// apply copies o into dst; it lets resolved options be passed on as an Option.
func (o options) apply(dst *options) {
	*dst = o
}

// Settings reports the time range and limit that opts resolve to.
func Settings(opts ...Option) (timeRange string, limit int) {
	o := newOptions(opts)
	return o.timeRange, o.limit
}
