package manager

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Acquirer is implemented by *Manager and *Session.
type Acquirer interface {
	Acquire(ctx context.Context, kind Kind, variant string) (Handle, error)
}

// Acquire returns the handle for kind/variant, loading it if needed. An empty
// variant selects the kind's default.
//
// When a different variant of kind is resident it is evicted before the new
// one is constructed. In exclusive mode every other kind is evicted too;
// otherwise other kinds are evicted LRU-first until the new weights fit the
// budget. The load itself is detached from ctx and bounded by the load
// timeout, so a cancelled request never leaves a half-built slot.
func (m *Manager) Acquire(ctx context.Context, kind Kind, variant string) (Handle, error) {
	if !kind.valid() {
		return nil, fmt.Errorf("invalid model kind %d", int(kind))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.isClosed() {
		return nil, ErrClosed
	}
	if m.resolver == nil {
		return nil, &ModelLoadError{Kind: kind, Variant: variant, Err: errors.New("no weights catalog configured")}
	}
	if variant == "" {
		variant = m.resolver.Default(kind.String())
	}

	// Fast path: resident variant matches
	m.mu.Lock()
	if s := m.slots[kind]; s != nil && s.variant == variant {
		s.lastUsed = time.Now()
		m.hits++
		h := s.handle
		m.mu.Unlock()
		modelCacheHitsTotal.WithLabelValues(kind.String()).Inc()
		m.publisher.Publish(Event{Name: EventAcquireHit, Kind: kind, Variant: variant})
		return h, nil
	}
	m.mu.Unlock()

	evicted := m.evictLocked(kind, "replace")
	if m.exclusive {
		for _, k := range Kinds {
			if k != kind && m.evictLocked(k, "exclusive") {
				evicted = true
			}
		}
	}

	path, err := m.resolver.Resolve(kind.String(), variant)
	if err != nil {
		if evicted {
			m.reclaim()
		}
		return nil, m.loadFailed(kind, variant, err)
	}
	estMB := m.sizeOf(path)
	if !m.exclusive && m.budgetMB > 0 {
		if m.evictUntilFits(kind, estMB) {
			evicted = true
		}
	}
	if evicted {
		m.reclaim()
	}

	loader := m.loaders[kind]
	if loader == nil {
		return nil, m.loadFailed(kind, variant, ErrDependencyUnavailable("no loader registered for "+kind.String()))
	}

	start := time.Now()
	m.log.Info().Str("event", EventLoadStart).Str("kind", kind.String()).Str("variant", variant).Str("device", string(m.device)).Msg("manager")
	m.publisher.Publish(Event{Name: EventLoadStart, Kind: kind, Variant: variant, Fields: map[string]any{"path": path, "est_mb": estMB}})

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
	h, err := loader.Load(lctx, LoadSpec{
		Kind:      kind,
		Variant:   variant,
		Path:      path,
		Device:    m.device,
		Precision: m.precision,
		BatchSize: m.batchSize,
	})
	cancel()
	if err == nil && h == nil {
		err = errors.New("loader returned no handle")
	}
	if err != nil {
		return nil, m.loadFailed(kind, variant, err)
	}

	now := time.Now()
	m.mu.Lock()
	m.slots[kind] = &slot{handle: h, variant: variant, loadedAt: now, lastUsed: now, estMB: estMB}
	m.loads++
	m.lastErr = ""
	m.mu.Unlock()

	dur := time.Since(start)
	modelLoadsTotal.WithLabelValues(kind.String()).Inc()
	modelLoadDuration.WithLabelValues(kind.String()).Observe(dur.Seconds())
	modelResident.WithLabelValues(kind.String()).Set(1)
	m.log.Info().Str("event", EventLoadReady).Str("kind", kind.String()).Str("variant", variant).Dur("dur", dur).Msg("manager")
	m.publisher.Publish(Event{Name: EventLoadReady, Kind: kind, Variant: variant, Fields: map[string]any{"dur_ms": int(dur / time.Millisecond)}})
	return h, nil
}

func (m *Manager) loadFailed(kind Kind, variant string, cause error) error {
	err := &ModelLoadError{Kind: kind, Variant: variant, Err: cause}
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
	modelLoadErrorsTotal.WithLabelValues(kind.String()).Inc()
	m.log.Error().Str("event", EventLoadError).Str("kind", kind.String()).Str("variant", variant).Err(cause).Msg("manager")
	m.publisher.Publish(Event{Name: EventLoadError, Kind: kind, Variant: variant, Fields: map[string]any{"error": cause.Error()}})
	return err
}

// AcquireAs acquires a handle and asserts it to T.
func AcquireAs[T Handle](ctx context.Context, a Acquirer, kind Kind, variant string) (T, error) {
	var zero T
	h, err := a.Acquire(ctx, kind, variant)
	if err != nil {
		return zero, err
	}
	t, ok := h.(T)
	if !ok {
		return zero, &ModelLoadError{Kind: kind, Variant: h.VariantID(), Err: fmt.Errorf("handle %T does not provide %s inference", h, kind)}
	}
	return t, nil
}

func AcquireTranscriber(ctx context.Context, a Acquirer, variant string) (Transcriber, error) {
	return AcquireAs[Transcriber](ctx, a, KindASR, variant)
}

func AcquireSummarizer(ctx context.Context, a Acquirer, variant string) (Summarizer, error) {
	return AcquireAs[Summarizer](ctx, a, KindLLM, variant)
}

func AcquireClassifier(ctx context.Context, a Acquirer, variant string) (Classifier, error) {
	return AcquireAs[Classifier](ctx, a, KindClassifier, variant)
}

// Infer runs h on in and wraps failures in an InferenceError.
func Infer[I, O any](ctx context.Context, h Inferer[I, O], in I) (O, error) {
	out, err := h.Infer(ctx, in)
	if err != nil && !IsInference(err) {
		err = &InferenceError{Kind: h.Kind(), Variant: h.VariantID(), Err: err}
	}
	return out, err
}
