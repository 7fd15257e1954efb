package manager

// Event names published by the Manager.
const (
	EventAcquireHit = "acquire_hit"
	EventLoadStart  = "load_start"
	EventLoadReady  = "load_ready"
	EventLoadError  = "load_error"
	EventEvict      = "evict"
	EventEvictError = "evict_error"
)

// Event represents a registry lifecycle event.
// Minimal and stable: name, kind, variant and optional fields.
type Event struct {
	Name    string
	Kind    Kind
	Variant string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
