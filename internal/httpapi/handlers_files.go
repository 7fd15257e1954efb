package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"iorganise/internal/auth"
	"iorganise/internal/filestore"
	"iorganise/internal/pipeline"
	"iorganise/internal/store"
	"iorganise/pkg/types"
)

func fileRecord(f store.FileUpload, shared bool) types.FileRecord {
	return types.FileRecord{
		ID:        f.ID,
		OwnerID:   f.UserID,
		Filename:  f.Filename,
		MimeType:  f.MimeType,
		Size:      f.Size,
		Subject:   f.Subject,
		Processed: f.Processed(),
		Shared:    shared,
		CreatedAt: f.CreatedAt.Unix(),
	}
}

// readable loads file id and checks that the user owns it or had it shared.
func (s *server) readable(ctx context.Context, userID, id int64) (store.FileUpload, error) {
	f, err := s.Store.GetFile(ctx, id)
	if err != nil {
		return store.FileUpload{}, fmt.Errorf("file %d: %w", id, err)
	}
	ok, err := s.Store.CanRead(ctx, userID, f)
	if err != nil {
		return store.FileUpload{}, err
	}
	if !ok {
		return store.FileUpload{}, fmt.Errorf("file %d: %w", id, auth.ErrPermission)
	}
	return f, nil
}

// owned loads file id and checks that the user owns it.
func (s *server) owned(ctx context.Context, userID, id int64) (store.FileUpload, error) {
	f, err := s.Store.GetFile(ctx, id)
	if err != nil {
		return store.FileUpload{}, fmt.Errorf("file %d: %w", id, err)
	}
	if f.UserID != userID {
		return store.FileUpload{}, fmt.Errorf("file %d: %w", id, auth.ErrPermission)
	}
	return f, nil
}

// handleUpload godoc
// @Summary  Upload files
// @Tags     files
// @Accept   multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param    files formData file true "Files to store"
// @Success  201 {array} types.FileRecord
// @Router   /files [post]
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, badRequestf("expected multipart form with files"))
		return
	}
	uid := currentUser(r)
	owner := strconv.FormatInt(uid, 10)
	var out []types.FileRecord
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, r, uploadErr(err))
			return
		}
		if part.FormName() != "files" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		name := path.Base(part.FileName())
		obj, err := s.Blobs.Save(r.Context(), owner, name, part)
		_ = part.Close()
		if err != nil {
			writeError(w, r, uploadErr(err))
			return
		}
		f := store.FileUpload{UserID: uid, Filename: name, MimeType: obj.MimeType, Size: obj.Size, Path: obj.Path}
		if err := s.Store.CreateFile(r.Context(), &f); err != nil {
			_ = s.Blobs.Remove(r.Context(), obj.Path)
			writeError(w, r, err)
			return
		}
		out = append(out, fileRecord(f, false))
	}
	if len(out) == 0 {
		writeError(w, r, badRequestf("No Files Uploaded"))
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleListFiles godoc
// @Summary  Files owned by or shared with the caller
// @Tags     files
// @Produce  json
// @Security BearerAuth
// @Success  200 {array} types.FileRecord
// @Router   /files [get]
func (s *server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.Store.VisibleFiles(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]types.FileRecord, 0, len(files))
	for _, f := range files {
		out = append(out, fileRecord(f.FileUpload, f.Shared))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetFile godoc
// @Summary  One file record
// @Tags     files
// @Produce  json
// @Security BearerAuth
// @Param    id path int true "File id"
// @Success  200 {object} types.FileRecord
// @Failure  403 {object} types.ErrorResponse
// @Failure  404 {object} types.ErrorResponse
// @Router   /files/{id} [get]
func (s *server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	uid := currentUser(r)
	f, err := s.readable(r.Context(), uid, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileRecord(f, f.UserID != uid))
}

// handleDeleteFile godoc
// @Summary  Delete an owned file and its artifacts
// @Tags     files
// @Security BearerAuth
// @Param    id path int true "File id"
// @Success  204
// @Failure  403 {object} types.ErrorResponse
// @Router   /files/{id} [delete]
func (s *server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.owned(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, p := range []string{f.Path, f.ContentPath, f.SummaryPath} {
		if p == "" {
			continue
		}
		if err := s.Blobs.Remove(r.Context(), p); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := s.Store.DeleteFile(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProcess godoc
// @Summary  Run stored files through the pipeline
// @Tags     files
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body types.ProcessRequest true "Files and stages"
// @Success  200 {object} types.BatchResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Router   /files/process [post]
func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req types.ProcessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.FileIDs) == 0 {
		writeError(w, r, badRequestf("file_ids is required"))
		return
	}
	uid := currentUser(r)
	settings, err := s.Store.GetSettingsByUser(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ASRModel == "" {
		req.ASRModel = settings.ASRModel
	}
	if req.LLM == "" {
		req.LLM = settings.LLM
	}
	if err := s.checkVariant("asr", req.ASRModel); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.checkVariant("llm", req.LLM); err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]pipeline.Item, 0, len(req.FileIDs))
	seen := map[int64]bool{}
	for _, id := range req.FileIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		f, err := s.readable(r.Context(), uid, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items = append(items, pipeline.Item{Key: strconv.FormatInt(id, 10), Filename: f.Filename, FileID: id})
	}
	s.runBatch(w, r, pipeline.Request{
		Items:      items,
		ASRVariant: req.ASRModel,
		LLMVariant: req.LLM,
		Classify:   req.Classify,
		Summarize:  req.Summarize,
	})
}

// handleBundle godoc
// @Summary  Zip of the original upload and its text artifacts
// @Tags     files
// @Produce  application/zip
// @Security BearerAuth
// @Param    id path int true "File id"
// @Success  200 {file} binary
// @Router   /files/{id}/bundle [get]
func (s *server) handleBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.readable(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries := []filestore.Entry{
		{Name: f.Filename, Path: f.Path},
		{Name: "content.txt", Path: f.ContentPath},
		{Name: "summary.txt", Path: f.SummaryPath},
	}
	for _, e := range entries {
		if e.Path == "" {
			continue
		}
		ok, err := s.Blobs.Exists(r.Context(), e.Path)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, fmt.Errorf("%s: %w", e.Name, filestore.ErrNotFound))
			return
		}
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename+".zip"))
	if err := filestore.Bundle(r.Context(), s.Blobs, w, entries); err != nil {
		// headers are gone; the client sees a truncated archive
		if zlog != nil {
			zlog.Error().Err(err).Int64("file_id", id).Msg("bundle")
		}
	}
}

// handleShare godoc
// @Summary  Share owned files with other users
// @Tags     files
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body types.ShareRequest true "Files and recipients"
// @Success  200 {object} types.ShareResponse
// @Failure  403 {object} types.ErrorResponse
// @Failure  404 {object} types.ErrorResponse
// @Router   /files/share [post]
func (s *server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req types.ShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.FileIDs) == 0 || len(req.UserIDs) == 0 {
		writeError(w, r, badRequestf("fileId_list and userId_list are required"))
		return
	}
	uid := currentUser(r)
	for _, id := range req.FileIDs {
		if _, err := s.owned(r.Context(), uid, id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	n, err := s.Store.Share(r.Context(), req.FileIDs, req.UserIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ShareResponse{Created: n})
}
