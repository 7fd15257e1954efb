package modelserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"iorganise/internal/manager"
)

// Generation parameters for summaries.
const (
	summaryTemperature = 0.2
	summaryMaxTokens   = 512
	defaultLlamaCtx    = 8192
	gpuLayers          = 33
	gpuBatch           = 512
)

// LlamaHandle summarizes text through a llama.cpp server.
type LlamaHandle struct {
	handle
	tokenBudget int
}

var _ manager.Summarizer = (*LlamaHandle)(nil)

// AttachLlama wraps an already running llama.cpp server.
func AttachLlama(baseURL string, spec manager.LoadSpec, tokenBudget int) *LlamaHandle {
	spec.Kind = manager.KindLLM
	return &LlamaHandle{handle: newHandle(spec, baseURL, nil), tokenBudget: tokenBudget}
}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Infer returns a point-form summary of text.
func (h *LlamaHandle) Infer(ctx context.Context, text string) (string, error) {
	var out completionResponse
	err := h.postJSON(ctx, "/v1/completions", completionRequest{
		Prompt:      SummaryPrompt(text, h.tokenBudget),
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llama server returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Text), nil
}

// llamaLoader spawns llama-server, or loads in-process when configured and
// built with the llama tag.
type llamaLoader struct{ opts Options }

func (l llamaLoader) Load(ctx context.Context, spec manager.LoadSpec) (manager.Handle, error) {
	ctxSize := l.opts.LlamaCtx
	if ctxSize <= 0 {
		ctxSize = defaultLlamaCtx
	}
	if l.opts.LlamaInProcess {
		return loadLlamaInProcess(spec, ctxSize, l.opts.Threads, l.opts.SummaryTokenBudget)
	}
	args := []string{"-m", spec.Path, "-c", fmt.Sprint(ctxSize)}
	if spec.Device == manager.DeviceCUDA {
		args = append(args, "-ngl", fmt.Sprint(gpuLayers), "-b", fmt.Sprint(gpuBatch))
	}
	if l.opts.Threads > 0 {
		args = append(args, "-t", fmt.Sprint(l.opts.Threads))
	}
	args = append(args, l.opts.LlamaExtraArgs...)
	proc, err := StartProcess(ctx, l.opts.processConfig("llama-server", l.opts.LlamaBin, args))
	if err != nil {
		return nil, err
	}
	return &LlamaHandle{handle: newHandle(spec, proc.BaseURL(), proc), tokenBudget: l.opts.SummaryTokenBudget}, nil
}
