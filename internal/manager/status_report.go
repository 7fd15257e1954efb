package manager

import (
	"time"

	"iorganise/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		Exclusive:      m.exclusive,
		BudgetMB:       m.budgetMB,
		MarginMB:       m.marginMB,
		MaxQueueDepth:  m.maxQueueDepth,
		LoadsTotal:     m.loads,
		EvictionsTotal: m.evictions,
		HitsTotal:      m.hits,
		LastError:      m.lastErr,
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	resp.QueueLen = len(m.queueCh) - len(m.leaseCh)
	if resp.QueueLen < 0 {
		resp.QueueLen = 0
	}
	resp.Resident = make([]types.ResidentStatus, 0, numKinds)
	for k, s := range m.slots {
		if s == nil {
			continue
		}
		resp.UsedMB += s.estMB
		resp.Resident = append(resp.Resident, types.ResidentStatus{
			Kind:      Kind(k).String(),
			Variant:   s.variant,
			Device:    string(s.handle.Device()),
			Precision: s.handle.Precision(),
			LoadedAt:  s.loadedAt.Unix(),
			LastUsed:  s.lastUsed.Unix(),
			EstMB:     s.estMB,
		})
	}
	return resp
}
