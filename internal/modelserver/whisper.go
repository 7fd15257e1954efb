package modelserver

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"iorganise/internal/manager"
	"iorganise/pkg/types"
)

// WhisperHandle transcribes audio through a whisper.cpp server.
type WhisperHandle struct {
	handle
	language string
}

var _ manager.Transcriber = (*WhisperHandle)(nil)

// AttachWhisper wraps an already running whisper.cpp server.
func AttachWhisper(baseURL string, spec manager.LoadSpec) *WhisperHandle {
	spec.Kind = manager.KindASR
	return &WhisperHandle{handle: newHandle(spec, baseURL, nil), language: "en"}
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

// Infer uploads the audio file at path and returns its timed segments.
func (h *WhisperHandle) Infer(ctx context.Context, path string) (manager.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return manager.Transcript{}, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeWhisperForm(mw, f, filepath.Base(path), h.language))
	}()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/inference", pr)
	if err != nil {
		return manager.Transcript{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out whisperResponse
	if err := h.do(req, &out); err != nil {
		return manager.Transcript{}, err
	}
	t := manager.Transcript{Language: out.Language, Segments: make([]types.Segment, 0, len(out.Segments))}
	for _, s := range out.Segments {
		t.Segments = append(t.Segments, types.Segment{Start: s.Start, End: s.End, Text: strings.TrimLeft(s.Text, " \t\n")})
	}
	return t, nil
}

func writeWhisperForm(mw *multipart.Writer, r io.Reader, name, language string) error {
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return err
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return err
		}
	}
	return mw.Close()
}

// whisperLoader spawns one whisper-server per load.
type whisperLoader struct{ opts Options }

func (l whisperLoader) Load(ctx context.Context, spec manager.LoadSpec) (manager.Handle, error) {
	args := []string{"-m", spec.Path}
	if spec.Device != manager.DeviceCUDA {
		args = append(args, "-ng")
	}
	if l.opts.Threads > 0 {
		args = append(args, "-t", fmt.Sprint(l.opts.Threads))
	}
	proc, err := StartProcess(ctx, l.opts.processConfig("whisper-server", l.opts.WhisperBin, args))
	if err != nil {
		return nil, err
	}
	return &WhisperHandle{handle: newHandle(spec, proc.BaseURL(), proc), language: "en"}, nil
}
