// Package manager owns the heavyweight models used by the processing
// pipeline. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - kind.go, device.go: model kinds and compute device selection.
//   - types.go: Handle, Inferer, Loader and the per-kind slot.
//   - errors.go: error types and helpers (IsTooBusy, IsModelLoad, ...).
//   - acquire.go: Acquire with cache hits, exclusive mode and detached loads.
//   - evict.go: Evict/EvictAll, budget eviction and memory reclaim.
//   - session.go: exclusive leases with bounded FIFO admission.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//   - status_report.go: Status reporting for /status.
//
// At most one handle per Kind is resident. Handles are owned by the Manager;
// callers must not Close them and must re-acquire after any eviction.
package manager
