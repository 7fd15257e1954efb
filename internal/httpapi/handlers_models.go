package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"iorganise/internal/extract"
	"iorganise/internal/pipeline"
	"iorganise/pkg/types"
)

// spoolUploads saves the multipart "files" parts to a temp dir and returns
// one item per file, keyed "1".."n" in upload order.
func spoolUploads(w http.ResponseWriter, r *http.Request, required bool) ([]pipeline.Item, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, uploadErr(err)
		}
		if required {
			return nil, noop, badRequestf("expected multipart form with files")
		}
		return nil, noop, nil
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		_ = r.MultipartForm.RemoveAll()
		if required {
			return nil, noop, badRequestf("No Files Uploaded")
		}
		return nil, noop, nil
	}
	dir, err := os.MkdirTemp("", "iorganise-upload-*")
	if err != nil {
		return nil, noop, err
	}
	cleanup := func() {
		_ = os.RemoveAll(dir)
		_ = r.MultipartForm.RemoveAll()
	}
	items := make([]pipeline.Item, 0, len(files))
	for i, fh := range files {
		key := strconv.Itoa(i + 1)
		dst := filepath.Join(dir, key+strings.ToLower(filepath.Ext(fh.Filename)))
		if err := copyPart(fh, dst); err != nil {
			cleanup()
			return nil, noop, err
		}
		items = append(items, pipeline.Item{Key: key, Filename: fh.Filename, LocalPath: dst})
	}
	return items, cleanup, nil
}

func copyPart(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// uploadErr maps an exceeded body limit to 413 and passes other errors through.
func uploadErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return httpStatusError{http.StatusRequestEntityTooLarge, "upload too large"}
	}
	return err
}

type httpStatusError struct {
	code int
	msg  string
}

func (e httpStatusError) Error() string   { return e.msg }
func (e httpStatusError) StatusCode() int { return e.code }

func (s *server) checkVariant(kind, variant string) error {
	if variant == "" || s.Catalog.Has(kind, variant) {
		return nil
	}
	return badRequestf("unknown %s model %q", kind, variant)
}

func formBool(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return false, nil
	}
	if strings.EqualFold(v, "on") {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequestf("invalid %s %q", name, v)
	}
	return b, nil
}

// runBatch submits req and writes the per-file result map.
func (s *server) runBatch(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	ctx, cancel := batchContext(r)
	defer cancel()
	res, err := s.Batches.Submit(ctx, req)
	if err != nil {
		if r.Context().Err() != nil {
			// client went away; nobody to answer
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.API())
}

// handleTranscribe godoc
// @Summary  Transcribe audio and video files, optionally summarizing them
// @Tags     pipeline
// @Accept   multipart/form-data
// @Produce  json
// @Param    files           formData file   true  "Audio or video files"
// @Param    asr_model       formData string false "ASR variant"
// @Param    content_summary formData bool   false "Summarize each transcript"
// @Param    llm             formData string false "LLM variant"
// @Success  200 {object} types.BatchResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Router   /transcribe-audio [post]
func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	items, cleanup, err := spoolUploads(w, r, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()
	summarize, err := formBool(r, "content_summary")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := pipeline.Request{
		Items:      items,
		ASRVariant: r.FormValue("asr_model"),
		LLMVariant: r.FormValue("llm"),
		Summarize:  summarize,
		Only:       []extract.Category{extract.CategoryAudio, extract.CategoryVideo},
	}
	if err := errors.Join(s.checkVariant("asr", req.ASRVariant), s.checkVariant("llm", req.LLMVariant)); err != nil {
		writeError(w, r, badRequestf("%v", err))
		return
	}
	s.runBatch(w, r, req)
}

// handleOCR godoc
// @Summary  Extract text from images through the OCR service
// @Tags     pipeline
// @Accept   multipart/form-data
// @Produce  json
// @Param    files formData file true "Images"
// @Success  200 {object} types.BatchResponse
// @Router   /ocr [post]
func (s *server) handleOCR(w http.ResponseWriter, r *http.Request) {
	items, cleanup, err := spoolUploads(w, r, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()
	s.runBatch(w, r, pipeline.Request{Items: items, Only: []extract.Category{extract.CategoryImage}})
}

// handlePredict godoc
// @Summary  Classify text or documents into a subject
// @Tags     pipeline
// @Accept   multipart/form-data
// @Produce  json
// @Param    text  formData string false "Raw text"
// @Param    files formData file   false "Documents or images"
// @Success  200 {object} types.BatchResponse
// @Failure  400 {object} types.ErrorResponse
// @Router   /predict [post]
func (s *server) handlePredict(w http.ResponseWriter, r *http.Request) {
	items, cleanup, err := spoolUploads(w, r, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()
	if text := strings.TrimSpace(r.FormValue("text")); text != "" {
		items = append([]pipeline.Item{{Key: "text", Filename: "text", Text: text}}, items...)
	}
	if len(items) == 0 {
		writeError(w, r, badRequestf("text or files required"))
		return
	}
	s.runBatch(w, r, pipeline.Request{
		Items:    items,
		Classify: true,
		Only:     []extract.Category{extract.CategoryDocument, extract.CategoryImage},
	})
}

// handleDevice godoc
// @Summary  Compute device and precision used for models
// @Tags     models
// @Produce  json
// @Success  200 {object} types.DeviceResponse
// @Router   /device [get]
func (s *server) handleDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.DeviceResponse{Device: string(s.Registry.Device()), Precision: s.Registry.Precision()})
}

// handleLegacyDevice answers with the bare device name as a JSON string.
func (s *server) handleLegacyDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, string(s.Registry.Device()))
}

// handleModels godoc
// @Summary  Weights catalog
// @Tags     models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /models [get]
func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: s.Catalog.List()})
}

// handleStatus godoc
// @Summary  Model registry status
// @Tags     models
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Status())
}

// handleEvict godoc
// @Summary  Evict every resident model
// @Tags     models
// @Security BearerAuth
// @Success  204
// @Failure  429 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /models/evict [post]
func (s *server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.Unload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
