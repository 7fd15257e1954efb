package manager

import "sync"

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Trace renders the events as "name:kind" strings, optionally keeping only
// the given names.
func (p *MemoryPublisher) Trace(names ...string) []string {
	keep := map[string]bool{}
	for _, n := range names {
		keep[n] = true
	}
	var out []string
	for _, e := range p.Events() {
		if len(keep) > 0 && !keep[e.Name] {
			continue
		}
		out = append(out, e.Name+":"+e.Kind.String())
	}
	return out
}

// Reset drops all recorded events.
func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}
