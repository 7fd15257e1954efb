package modelserver

import (
	"context"
	"fmt"

	"iorganise/internal/manager"
)

// ClassifierHandle predicts a subject label through a classifier server.
type ClassifierHandle struct {
	handle
}

var _ manager.Classifier = (*ClassifierHandle)(nil)

// AttachClassifier wraps an already running classifier server.
func AttachClassifier(baseURL string, spec manager.LoadSpec) *ClassifierHandle {
	spec.Kind = manager.KindClassifier
	return &ClassifierHandle{handle: newHandle(spec, baseURL, nil)}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label int `json:"label"`
}

// Infer returns the predicted label index for text.
func (h *ClassifierHandle) Infer(ctx context.Context, text string) (int, error) {
	var out classifyResponse
	if err := h.postJSON(ctx, "/v1/classify", classifyRequest{Text: text}, &out); err != nil {
		return 0, err
	}
	return out.Label, nil
}

type classifierLoader struct{ opts Options }

func (l classifierLoader) Load(ctx context.Context, spec manager.LoadSpec) (manager.Handle, error) {
	args := []string{"--model", spec.Path, "--device", string(spec.Device), "--batch-size", fmt.Sprint(spec.BatchSize)}
	proc, err := StartProcess(ctx, l.opts.processConfig("classifier-server", l.opts.ClassifierBin, args))
	if err != nil {
		return nil, err
	}
	return &ClassifierHandle{handle: newHandle(spec, proc.BaseURL(), proc)}, nil
}
