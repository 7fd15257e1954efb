package manager

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"iorganise/internal/common/fsutil"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultLoadTimeout   = 5 * time.Minute
	defaultBatchSize     = 16
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Resolver maps kind/variant to weights. Required.
	Resolver Resolver
	// Loaders constructs handles per kind. A kind without a loader fails to
	// load with a dependency-unavailable error.
	Loaders map[Kind]Loader

	// Device preference: auto, cpu or gpu.
	Device    string
	BatchSize int

	// AllowCoresidency disables exclusive mode: acquiring a kind no longer
	// evicts the other kinds, and BudgetMB/MarginMB drive LRU eviction instead.
	AllowCoresidency bool
	BudgetMB         int
	MarginMB         int

	LoadTimeout   time.Duration
	MaxQueueDepth int
	MaxWait       time.Duration

	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Reclaim runs after every eviction. Defaults to a GC plus FreeOSMemory.
	Reclaim func()
	// SizeOf estimates the memory of a weights path in MB.
	SizeOf func(path string) int
	// LookPath is used for device auto-detection.
	LookPath func(string) (string, error)
}

// New constructs a Manager from Config, applying package defaults.
func New(cfg Config) *Manager {
	m := &Manager{
		resolver:  cfg.Resolver,
		exclusive: !cfg.AllowCoresidency,
		budgetMB:  cfg.BudgetMB,
		marginMB:  cfg.MarginMB,
		publisher: cfg.Publisher,
		reclaim:   cfg.Reclaim,
		sizeOf:    cfg.SizeOf,
		startTime: time.Now(),
	}
	for k, l := range cfg.Loaders {
		if k.valid() {
			m.loaders[k] = l
		}
	}
	m.device = ResolveDevice(cfg.Device, cfg.LookPath)
	m.precision = PrecisionFor(m.device)
	// Apply defaults if unset
	if cfg.BatchSize <= 0 {
		m.batchSize = defaultBatchSize
	} else {
		m.batchSize = cfg.BatchSize
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.LoadTimeout <= 0 {
		m.loadTimeout = defaultLoadTimeout
	} else {
		m.loadTimeout = cfg.LoadTimeout
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.reclaim == nil {
		m.reclaim = freeMemory
	}
	if m.sizeOf == nil {
		m.sizeOf = fsutil.SizeMB
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	// one active session plus maxQueueDepth waiters
	m.queueCh = make(chan struct{}, m.maxQueueDepth+1)
	m.leaseCh = make(chan struct{}, 1)
	return m
}

func freeMemory() {
	runtime.GC()
	debug.FreeOSMemory()
}
