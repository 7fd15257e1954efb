package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"iorganise/internal/auth"
	"iorganise/internal/extract"
	"iorganise/internal/manager"
	"iorganise/internal/pipeline"
	"iorganise/pkg/types"
)

func TestTranscribe_SpoolsUploads(t *testing.T) {
	env := newTestEnv(t)
	fields := map[string]string{"asr_model": "medium", "content_summary": "true", "llm": "llama_8b"}
	w := env.do(multipartRequest("/transcribe-audio", "", fields, upload{"a.wav", "RIFF-a"}, upload{"b.mp4", "video-b"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	last := env.batch.last
	if last.ASRVariant != "medium" || last.LLMVariant != "llama_8b" || !last.Summarize || last.Classify {
		t.Fatalf("request=%+v", last)
	}
	if len(last.Only) != 2 || last.Only[0] != extract.CategoryAudio || last.Only[1] != extract.CategoryVideo {
		t.Fatalf("only=%v", last.Only)
	}
	if len(last.Items) != 2 || last.Items[0].Key != "1" || last.Items[1].Key != "2" {
		t.Fatalf("items=%+v", last.Items)
	}
	if len(env.batch.spooled) != 2 || env.batch.spooled[0] != "RIFF-a" || env.batch.spooled[1] != "video-b" {
		t.Fatalf("spooled=%q", env.batch.spooled)
	}
	// temp copies are gone once the response is written
	for _, it := range last.Items {
		if _, err := os.Stat(it.LocalPath); !os.IsNotExist(err) {
			t.Fatalf("temp file %s still present: %v", it.LocalPath, err)
		}
	}
	var res types.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res["1"].Filename != "a.wav" || res["2"].Filename != "b.mp4" {
		t.Fatalf("results=%+v", res)
	}
}

func TestTranscribe_PerFileFailure(t *testing.T) {
	env := newTestEnv(t)
	env.batch.fail = map[string]*pipeline.StageError{
		"2": {Stage: pipeline.StageExtract, Kind: pipeline.KindUnsupported, Message: "unsupported media"},
	}
	w := env.do(multipartRequest("/transcribe-audio", "", nil, upload{"a.wav", "a"}, upload{"b.txt", "b"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var res types.BatchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res["1"].Error != "" || res["2"].Stage != "extract" || res["2"].Error != "unsupported media" {
		t.Fatalf("results=%+v", res)
	}
}

func TestTranscribe_BadInput(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		req  *http.Request
	}{
		{"no files", multipartRequest("/transcribe-audio", "", map[string]string{"asr_model": "small"})},
		{"not multipart", jsonRequest(http.MethodPost, "/transcribe-audio", "", map[string]string{})},
		{"unknown asr", multipartRequest("/transcribe-audio", "", map[string]string{"asr_model": "huge"}, upload{"a.wav", "a"})},
		{"bad bool", multipartRequest("/transcribe-audio", "", map[string]string{"content_summary": "maybe"}, upload{"a.wav", "a"})},
	}
	for _, tc := range cases {
		if w := env.do(tc.req); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", tc.name, w.Code, w.Body.String())
		}
	}
	if env.batch.requests != 0 {
		t.Fatalf("batches submitted=%d", env.batch.requests)
	}
}

func TestTranscribe_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&manager.ModelLoadError{Kind: manager.KindASR, Variant: "small", Err: os.ErrNotExist}, http.StatusServiceUnavailable},
		{manager.ErrDependencyUnavailable("ffmpeg missing"), http.StatusServiceUnavailable},
		{pipeline.ErrRunnerClosed, http.StatusServiceUnavailable},
		{mockHTTPError{"slow down", http.StatusTooManyRequests}, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		env.batch.err = tc.err
		w := env.do(multipartRequest("/transcribe-audio", "", nil, upload{"a.wav", "a"}))
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestTranscribe_BatchTimeout(t *testing.T) {
	SetBatchTimeoutSeconds(1)
	defer SetBatchTimeoutSeconds(0)
	env := newTestEnv(t)
	env.batch.block = make(chan struct{})
	defer close(env.batch.block)
	start := time.Now()
	w := env.do(multipartRequest("/transcribe-audio", "", nil, upload{"a.wav", "a"}))
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d", w.Code)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout not honored")
	}
}

func TestOCR_ImagesOnly(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest("/ocr", "", nil, upload{"page.png", "png"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if only := env.batch.last.Only; len(only) != 1 || only[0] != extract.CategoryImage {
		t.Fatalf("only=%v", only)
	}
}

func TestPredict_TextAndFiles(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest("/predict", "", map[string]string{"text": "  mitosis and meiosis "}, upload{"doc.txt", "atoms"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	last := env.batch.last
	if !last.Classify || last.Summarize {
		t.Fatalf("request=%+v", last)
	}
	if len(last.Items) != 2 || last.Items[0].Key != "text" || last.Items[0].Text != "mitosis and meiosis" || last.Items[1].Key != "1" {
		t.Fatalf("items=%+v", last.Items)
	}

	w = env.do(multipartRequest("/predict", "", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty predict status=%d", w.Code)
	}
}

func TestEvict_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		env.reg.unloadErr = tc.err
		_, tok := env.signup(t, "Ada")
		req := httptest.NewRequest(http.MethodPost, "/models/evict", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := env.do(req)
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.want)
		}
	}
}

// evictHandle records whether the registry closed it.
type evictHandle struct {
	spec   manager.LoadSpec
	closed chan struct{}
}

func (h *evictHandle) Kind() manager.Kind     { return h.spec.Kind }
func (h *evictHandle) VariantID() string      { return h.spec.Variant }
func (h *evictHandle) Device() manager.Device { return h.spec.Device }
func (h *evictHandle) Precision() string      { return h.spec.Precision }
func (h *evictHandle) Close() error           { close(h.closed); return nil }

type oneResolver struct{}

func (oneResolver) Resolve(kind, variant string) (string, error) { return "/weights/" + kind, nil }
func (oneResolver) Default(string) string                       { return "default" }

func TestEvict_WaitsForActiveSession(t *testing.T) {
	h := &evictHandle{closed: make(chan struct{})}
	m := manager.New(manager.Config{
		Resolver: oneResolver{},
		Loaders: map[manager.Kind]manager.Loader{
			manager.KindLLM: manager.LoaderFunc(func(_ context.Context, spec manager.LoadSpec) (manager.Handle, error) {
				h.spec = spec
				return h, nil
			}),
		},
		Device:  "cpu",
		MaxWait: 5 * time.Second,
		Reclaim: func() {},
		SizeOf:  func(string) int { return 1 },
	})
	defer m.Close()

	env := newTestEnv(t)
	_, tok := env.signup(t, "Ada")
	mux := NewMux(Deps{
		Registry: m,
		Catalog:  fakeCatalog{},
		Store:    env.db,
		Blobs:    env.blobs,
		Batches:  env.batch,
		Issuer:   auth.NewIssuer("test-secret", time.Hour),
	})

	ctx := context.Background()
	sess, err := m.Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if _, err := sess.Acquire(ctx, manager.KindLLM, ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/models/evict", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		done <- w.Code
	}()
	select {
	case <-h.closed:
		t.Fatalf("handle closed while session still active")
	case code := <-done:
		t.Fatalf("evict returned %d while session still active", code)
	case <-time.After(50 * time.Millisecond):
	}

	_ = sess.Close()
	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("status=%d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("evict did not finish after session closed")
	}
	select {
	case <-h.closed:
	default:
		t.Fatalf("handle not closed by evict")
	}
}

func TestEvict_TooBusyWhileSessionHeld(t *testing.T) {
	m := manager.New(manager.Config{Device: "cpu", MaxWait: 20 * time.Millisecond})
	defer m.Close()
	env := newTestEnv(t)
	_, tok := env.signup(t, "Ada")
	mux := NewMux(Deps{
		Registry: m,
		Catalog:  fakeCatalog{},
		Store:    env.db,
		Blobs:    env.blobs,
		Batches:  env.batch,
		Issuer:   auth.NewIssuer("test-secret", time.Hour),
	})
	sess, err := m.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer sess.Close()

	req := httptest.NewRequest(http.MethodPost, "/models/evict", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
