package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"iorganise/internal/config"
	"iorganise/pkg/types"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// buildFakeModelServer builds the stand-in for whisper-server, llama-server
// and the classifier server.
func buildFakeModelServer(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := filepath.Join(t.TempDir(), "fake_model_server")
	cmd := exec.Command("go", "build", "-o", bin, "../../internal/modelserver/testdata/fake_model_server.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build fake server: %v: %s", err, out)
	}
	return bin
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(req *http.Request) *http.Response {
	c.t.Helper()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func (c *client) json(method, path string, body, out any, want int) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, c.base+path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := c.do(req)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		c.t.Fatalf("%s %s: status=%d want %d body=%s", method, path, resp.StatusCode, want, b)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			c.t.Fatalf("%s %s: json: %v: %s", method, path, err, b)
		}
	}
}

func (c *client) multipart(path string, fields map[string]string, files map[string][]byte, out any, want int) {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for name, data := range files {
		fw, _ := mw.CreateFormFile("files", name)
		_, _ = fw.Write(data)
	}
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, c.base+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := c.do(req)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		c.t.Fatalf("POST %s: status=%d want %d body=%s", path, resp.StatusCode, want, b)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			c.t.Fatalf("POST %s: json: %v: %s", path, err, b)
		}
	}
}

// wavBytes is a header-only 16 kHz mono PCM wav file.
func wavBytes() []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36))
	b.WriteString("WAVEfmt ")
	for _, v := range []any{uint32(16), uint16(1), uint16(1), uint32(16000), uint32(32000), uint16(2), uint16(16)} {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(0))
	return b.Bytes()
}

func startDaemon(t *testing.T) string {
	t.Helper()
	bin := buildFakeModelServer(t)
	dir := t.TempDir()
	weights := func(name string) string {
		p := filepath.Join(dir, "models", name)
		_ = os.MkdirAll(filepath.Dir(p), 0o755)
		_ = os.WriteFile(p, []byte("weights"), 0o644)
		return p
	}

	cfg := config.Default()
	cfg.Addr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Auth.SecretKey = "blackbox"
	cfg.CORS.Enabled = false
	cfg.Models.Device = "cpu"
	cfg.Models.DefaultASR, cfg.Models.DefaultLLM, cfg.Models.DefaultClassifier = "small", "mistral_7b", "subjects"
	cfg.Models.ASR = map[string]string{"small": weights("small.bin")}
	cfg.Models.LLM = map[string]string{"mistral_7b": weights("mistral.gguf")}
	cfg.Models.Classifier = map[string]string{"subjects": weights("subjects")}
	cfg.Models.Runtime.WhisperBin = bin
	cfg.Models.Runtime.LlamaBin = bin
	cfg.Models.Runtime.ClassifierBin = bin
	cfg.Models.Runtime.ReadyTimeoutSec = 10
	cfg.OCR.URL = "http://127.0.0.1:1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zerolog.Nop()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(15 * time.Second):
			t.Errorf("serve did not stop")
		}
	})

	base := "http://" + cfg.Addr
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err := http.Get(base + "/healthz"); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return base
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("daemon not healthy at %s", base)
	return ""
}

func TestBlackbox_UploadProcessBundle(t *testing.T) {
	base := startDaemon(t)
	c := &client{t: t, base: base}

	c.json(http.MethodPost, "/register", types.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "pw"}, nil, http.StatusCreated)
	form := url.Values{"username": {"ada@example.com"}, "password": {"pw"}}
	resp, err := http.PostForm(base+"/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var tok types.TokenResponse
	_ = json.NewDecoder(resp.Body).Decode(&tok)
	resp.Body.Close()
	if tok.AccessToken == "" {
		t.Fatalf("no token")
	}
	c.token = tok.AccessToken

	var recs []types.FileRecord
	c.multipart("/files", nil, map[string][]byte{"notes.txt": []byte("Mitosis splits one cell into two.")}, &recs, http.StatusCreated)
	if len(recs) != 1 {
		t.Fatalf("records=%+v", recs)
	}
	id := recs[0].ID

	var res types.BatchResponse
	c.json(http.MethodPost, "/files/process", types.ProcessRequest{FileIDs: []int64{id}, Classify: true, Summarize: true}, &res, http.StatusOK)
	got := res[fmt.Sprint(id)]
	if got.Error != "" || got.Subject != "Computer Science" || got.Summary != "- a point" || got.Cached {
		t.Fatalf("first run=%+v", got)
	}

	// a second run serves the stored artifacts
	c.json(http.MethodPost, "/files/process", types.ProcessRequest{FileIDs: []int64{id}, Summarize: true}, &res, http.StatusOK)
	if got := res[fmt.Sprint(id)]; !got.Cached || got.Summary != "- a point" {
		t.Fatalf("second run=%+v", got)
	}

	req, _ := http.NewRequest(http.MethodGet, base+fmt.Sprintf("/files/%d/bundle", id), nil)
	resp = c.do(req)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bundle status=%d body=%s", resp.StatusCode, body)
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("bundle entries=%d", len(zr.File))
	}

	var st types.StatusResponse
	c.json(http.MethodGet, "/status", nil, &st, http.StatusOK)
	if len(st.Resident) != 0 || st.LoadsTotal != 2 {
		t.Fatalf("status=%+v", st)
	}
}

func TestBlackbox_TranscribeAudio(t *testing.T) {
	base := startDaemon(t)
	c := &client{t: t, base: base}

	var res types.BatchResponse
	c.multipart("/transcribe-audio", map[string]string{"content_summary": "true"}, map[string][]byte{"lecture.wav": wavBytes()}, &res, http.StatusOK)
	got := res["1"]
	if got.Error != "" {
		t.Fatalf("result=%+v", got)
	}
	if len(got.Segments) != 1 || !strings.HasPrefix(got.Segments[0].Text, "hello from ") || got.Language != "en" {
		t.Fatalf("segments=%+v", got)
	}
	if got.Summary != "- a point" {
		t.Fatalf("summary=%q", got.Summary)
	}

	var st types.StatusResponse
	c.json(http.MethodGet, "/status", nil, &st, http.StatusOK)
	if len(st.Resident) != 0 || st.EvictionsTotal != 2 {
		t.Fatalf("status=%+v", st)
	}
}
