package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"iorganise/internal/manager"
)

// handle is the part shared by every server-backed model: identity, the HTTP
// client and, when spawned, the owning process.
type handle struct {
	kind      manager.Kind
	variant   string
	device    manager.Device
	precision string
	baseURL   string
	client    *http.Client
	proc      *Process
}

func newHandle(spec manager.LoadSpec, baseURL string, proc *Process) handle {
	return handle{
		kind:      spec.Kind,
		variant:   spec.Variant,
		device:    spec.Device,
		precision: spec.Precision,
		baseURL:   strings.TrimRight(baseURL, "/"),
		// no client timeout: every call carries a context deadline
		client: &http.Client{Timeout: 0},
		proc:   proc,
	}
}

func (h *handle) Kind() manager.Kind     { return h.kind }
func (h *handle) VariantID() string      { return h.variant }
func (h *handle) Device() manager.Device { return h.device }
func (h *handle) Precision() string      { return h.precision }

// BaseURL returns the model server address.
func (h *handle) BaseURL() string { return h.baseURL }

// Close stops the owned server process, releasing its weights. Attached
// handles own no process and Close is a no-op.
func (h *handle) Close() error {
	if h.proc == nil {
		return nil
	}
	return h.proc.Stop()
}

// postJSON sends in as JSON and decodes a 2xx response into out.
func (h *handle) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, out)
}

func (h *handle) do(req *http.Request, out any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s server http error: %s: %s", h.kind, resp.Status, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s server: decode response: %w", h.kind, err)
	}
	return nil
}
