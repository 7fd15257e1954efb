//go:build llama

package modelserver

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"iorganise/internal/manager"
)

// inprocLlama owns a model loaded into this process through go-llama.cpp.
type inprocLlama struct {
	kind        manager.Kind
	variant     string
	device      manager.Device
	precision   string
	threads     int
	tokenBudget int

	mu    sync.Mutex
	model *llama.LLama
}

func loadLlamaInProcess(spec manager.LoadSpec, ctxSize, threads, tokenBudget int) (manager.Handle, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{llama.SetContext(ctxSize)}
	if spec.Device == manager.DeviceCUDA {
		mo = append(mo, llama.SetGPULayers(gpuLayers), llama.SetNBatch(gpuBatch))
	}
	m, err := llama.New(spec.Path, mo...)
	if err != nil {
		return nil, err
	}
	if threads <= 0 {
		threads = 1
	}
	return &inprocLlama{
		kind:        manager.KindLLM,
		variant:     spec.Variant,
		device:      spec.Device,
		precision:   spec.Precision,
		threads:     threads,
		tokenBudget: tokenBudget,
		model:       m,
	}, nil
}

func (h *inprocLlama) Kind() manager.Kind     { return h.kind }
func (h *inprocLlama) VariantID() string      { return h.variant }
func (h *inprocLlama) Device() manager.Device { return h.device }
func (h *inprocLlama) Precision() string      { return h.precision }

func (h *inprocLlama) Infer(ctx context.Context, text string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// stop generating once the caller is gone
	h.model.SetTokenCallback(func(string) bool { return ctx.Err() == nil })
	out, err := h.model.Predict(SummaryPrompt(text, h.tokenBudget),
		llama.SetTokens(summaryMaxTokens),
		llama.SetThreads(h.threads),
		llama.SetTemperature(summaryTemperature),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (h *inprocLlama) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}
