package manager

import "time"

// Evict removes and closes the resident handle of kind. It is a no-op when the
// slot is empty.
func (m *Manager) Evict(kind Kind) {
	if !kind.valid() {
		return
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.evictLocked(kind, "evict") {
		m.reclaim()
	}
}

// EvictAll removes and closes every resident handle.
func (m *Manager) EvictAll() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.evictAllLocked("evict_all")
}

func (m *Manager) evictAllLocked(reason string) {
	evicted := false
	for _, k := range Kinds {
		if m.evictLocked(k, reason) {
			evicted = true
		}
	}
	if evicted {
		m.reclaim()
	}
}

// evictLocked empties the slot of kind. Caller holds opMu. Close failures are
// logged and counted but never returned: the slot is empty either way.
func (m *Manager) evictLocked(kind Kind, reason string) bool {
	m.mu.Lock()
	s := m.slots[kind]
	m.slots[kind] = nil
	if s != nil {
		m.evictions++
	}
	m.mu.Unlock()
	if s == nil {
		return false
	}
	modelEvictionsTotal.WithLabelValues(kind.String()).Inc()
	modelResident.WithLabelValues(kind.String()).Set(0)
	if err := s.handle.Close(); err != nil {
		m.log.Warn().Str("event", EventEvictError).Str("kind", kind.String()).Str("variant", s.variant).Err(err).Msg("manager")
		m.publisher.Publish(Event{Name: EventEvictError, Kind: kind, Variant: s.variant, Fields: map[string]any{"error": err.Error()}})
	}
	m.log.Info().Str("event", EventEvict).Str("kind", kind.String()).Str("variant", s.variant).Str("reason", reason).Msg("manager")
	m.publisher.Publish(Event{Name: EventEvict, Kind: kind, Variant: s.variant, Fields: map[string]any{"reason": reason}})
	return true
}

// evictUntilFits evicts LRU handles of other kinds until requiredMB fits
// within budget - margin. Caller holds opMu. Returns whether anything was
// evicted.
func (m *Manager) evictUntilFits(kind Kind, requiredMB int) bool {
	evicted := false
	for {
		m.mu.RLock()
		used := 0
		var lru Kind = -1
		var lruUsed time.Time
		for k, s := range m.slots {
			if s == nil {
				continue
			}
			used += s.estMB
			if Kind(k) == kind {
				continue
			}
			if lru < 0 || s.lastUsed.Before(lruUsed) {
				lru, lruUsed = Kind(k), s.lastUsed
			}
		}
		m.mu.RUnlock()
		if used+requiredMB+m.marginMB <= m.budgetMB || lru < 0 {
			// fits, or nothing left to evict
			return evicted
		}
		if m.evictLocked(lru, "budget") {
			evicted = true
		}
	}
}
