package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"iorganise/internal/auth"
	"iorganise/internal/store"
	"iorganise/pkg/types"
)

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "application/json") {
		return unsupportedMedia{}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequestf("invalid JSON body")
	}
	return nil
}

type unsupportedMedia struct{}

func (unsupportedMedia) Error() string   { return "Content-Type must be application/json" }
func (unsupportedMedia) StatusCode() int { return http.StatusUnsupportedMediaType }

func currentUser(r *http.Request) int64 {
	id, _ := auth.UserID(r.Context())
	return id
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// handleRegister godoc
// @Summary  Create an account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body types.RegisterRequest true "New user"
// @Success  201 {object} types.UserResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  409 {object} types.ErrorResponse
// @Router   /register [post]
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Password == "" || !strings.Contains(req.Email, "@") {
		writeError(w, r, badRequestf("name, a valid email and password are required"))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u := store.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	settings := store.UserSetting{ASRModel: s.Catalog.Default("asr"), LLM: s.Catalog.Default("llm")}
	if err := s.Store.RegisterUser(r.Context(), &u, settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.UserResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

// handleLogin godoc
// @Summary  Exchange credentials for a bearer token
// @Tags     auth
// @Accept   x-www-form-urlencoded
// @Produce  json
// @Param    username formData string true "Email"
// @Param    password formData string true "Password"
// @Success  200 {object} types.TokenResponse
// @Failure  401 {object} types.ErrorResponse
// @Router   /login [post]
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	email := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	password := r.FormValue("password")
	if email == "" || password == "" {
		writeError(w, r, badRequestf("username and password are required"))
		return
	}
	u, err := s.Store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, auth.ErrBadCredentials)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := s.Issuer.Issue(u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

// handleGetSettings godoc
// @Summary  Current user's model settings
// @Tags     settings
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} types.Settings
// @Router   /settings [get]
func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.Store.GetSettingsByUser(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Settings{ID: st.ID, ASRModel: st.ASRModel, LLM: st.LLM})
}

// handleUpdateSettings godoc
// @Summary  Update model settings
// @Tags     settings
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path int true "Settings id"
// @Param    body body types.UpdateSettingsRequest true "Variants; empty fields are unchanged"
// @Success  200 {object} types.Settings
// @Failure  400 {object} types.ErrorResponse
// @Failure  403 {object} types.ErrorResponse
// @Router   /settings/{id} [put]
func (s *server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.UpdateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.Store.GetSettings(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if st.UserID != currentUser(r) {
		writeError(w, r, auth.ErrPermission)
		return
	}
	var upd store.SettingsUpdate
	if req.ASRModel != "" {
		if !s.Catalog.Has("asr", req.ASRModel) {
			writeError(w, r, badRequestf("unknown asr model %q", req.ASRModel))
			return
		}
		upd.ASRModel = &req.ASRModel
	}
	if req.LLM != "" {
		if !s.Catalog.Has("llm", req.LLM) {
			writeError(w, r, badRequestf("unknown llm %q", req.LLM))
			return
		}
		upd.LLM = &req.LLM
	}
	st, err = s.Store.UpdateSettings(r.Context(), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Settings{ID: st.ID, ASRModel: st.ASRModel, LLM: st.LLM})
}
