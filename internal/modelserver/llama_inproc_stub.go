//go:build !llama

package modelserver

import "iorganise/internal/manager"

// loadLlamaInProcess fails fast: the llama runtime is not available in this
// build. Rebuild with -tags=llama or use the llama-server runtime.
func loadLlamaInProcess(manager.LoadSpec, int, int, int) (manager.Handle, error) {
	return nil, manager.ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
