package memvec

import (
	"log/slog"

	"github.com/hupe1980/memvec/codec"
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/index/hnsw"
	"github.com/hupe1980/memvec/persistence"
	"github.com/hupe1980/memvec/resource"
)

const (
	// DefaultDimension matches the common sentence-embedding size.
	DefaultDimension = 384

	// DefaultCapacityHint pre-sizes internal structures.
	DefaultCapacityHint = 10_000
)

type options struct {
	dimension        int
	capacityHint     int
	m                int
	efConstruction   int
	efSearch         int
	distanceType     distance.Metric
	randomSeed       *int64
	logger           *Logger
	metricsCollector MetricsCollector
	codec            codec.Codec
	compressor       persistence.Compressor
	resources        *resource.Controller
	handlers         []Handler
}

// Option configures Store construction.
type Option func(*options)

// WithDimension sets the vector dimension. Every vector added to the store
// must have exactly this length.
func WithDimension(dimension int) Option {
	return func(o *options) {
		o.dimension = dimension
	}
}

// WithCapacityHint pre-sizes internal structures for the expected number of
// vectors. Advisory only; growing past it never fails.
func WithCapacityHint(hint int) Option {
	return func(o *options) {
		o.capacityHint = hint
	}
}

// WithM sets the maximum graph connections per node and layer.
// Higher values improve recall at the cost of memory and insert time.
func WithM(m int) Option {
	return func(o *options) {
		o.m = m
	}
}

// WithEFConstruction sets the candidate list size used while building the
// graph. Construction-time only.
func WithEFConstruction(ef int) Option {
	return func(o *options) {
		o.efConstruction = ef
	}
}

// WithEFSearch sets the initial candidate list size used during search.
// Adjustable later via Store.SetEFSearch.
func WithEFSearch(ef int) Option {
	return func(o *options) {
		o.efSearch = ef
	}
}

// WithDistanceType selects the distance metric. Cosine is the default.
func WithDistanceType(m distance.Metric) Option {
	return func(o *options) {
		o.distanceType = m
	}
}

// WithRandomSeed makes graph layer assignment deterministic. Useful for
// tests and reproducible benchmarks.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.randomSeed = &seed
	}
}

// WithLogger configures structured logging. Pass nil to keep the no-op
// default.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogLevel creates a text logger with the given level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metricsCollector = mc
		}
	}
}

// WithCodec configures the codec for snapshot bodies.
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the snapshot body compression.
// If nil is passed, the persistence default (zstd) is used.
func WithCompression(c persistence.Compressor) Option {
	return func(o *options) {
		if c == nil {
			c = persistence.DefaultCompressor
		}
		o.compressor = c
	}
}

// WithResourceController bounds maintenance concurrency and snapshot IO
// throughput. A nil controller enforces nothing.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithEventHandler registers a lifecycle event handler at construction time,
// early enough to observe the Initialized event. Handlers can also be added
// later via Store.Subscribe.
func WithEventHandler(h Handler) Option {
	return func(o *options) {
		if h != nil {
			o.handlers = append(o.handlers, h)
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		dimension:        DefaultDimension,
		capacityHint:     DefaultCapacityHint,
		m:                hnsw.DefaultM,
		efConstruction:   hnsw.DefaultEFConstruction,
		efSearch:         hnsw.DefaultEFSearch,
		distanceType:     distance.MetricCosine,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}

	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	return o
}
