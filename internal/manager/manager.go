package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager is the model registry: one slot per Kind, loads on demand and
// evicts on variant change, stage transitions and shutdown.
type Manager struct {
	// opMu serializes slot transitions (acquire, evict) including the load
	// itself, so two acquires never construct concurrently.
	opMu sync.Mutex
	// mu guards the fields below for readers such as Status.
	mu     sync.RWMutex
	slots  [numKinds]*slot
	closed bool

	loads     uint64
	evictions uint64
	hits      uint64
	lastErr   string

	loaders   [numKinds]Loader
	resolver  Resolver
	device    Device
	precision string
	batchSize int

	exclusive bool
	budgetMB  int
	marginMB  int

	loadTimeout time.Duration

	// Session admission
	maxQueueDepth int
	maxWait       time.Duration
	queueCh       chan struct{}
	leaseCh       chan struct{}

	publisher EventPublisher
	log       zerolog.Logger
	reclaim   func()
	sizeOf    func(string) int
	startTime time.Time
}

// Device returns the device models are loaded on.
func (m *Manager) Device() Device { return m.device }

// Precision returns the compute precision for Device.
func (m *Manager) Precision() string { return m.precision }

// Exclusive reports whether acquiring one kind evicts every other kind.
func (m *Manager) Exclusive() bool { return m.exclusive }

// Ready reports whether the manager accepts work.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed && m.resolver != nil
}

// Resident returns the variant resident for kind, if any.
func (m *Manager) Resident(kind Kind) (string, bool) {
	if !kind.valid() {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s := m.slots[kind]; s != nil {
		return s.variant, true
	}
	return "", false
}

// ResidentCount returns the number of occupied slots.
func (m *Manager) ResidentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// Close evicts every handle and rejects further acquires and sessions.
// It is idempotent.
func (m *Manager) Close() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.evictAllLocked("close")
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
