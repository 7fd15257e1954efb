package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iorganise/internal/auth"
	"iorganise/internal/filestore"
	"iorganise/internal/manager"
	"iorganise/internal/pipeline"
	"iorganise/internal/store"
	"iorganise/pkg/types"
)

// Registry is the model registry as seen by the HTTP layer.
type Registry interface {
	Status() types.StatusResponse
	Device() manager.Device
	Precision() string
	Ready() bool
	Unload(ctx context.Context) error
}

// Catalog lists weights variants.
type Catalog interface {
	List() []types.Model
	Has(kind, variant string) bool
	Default(kind string) string
}

// Store persists users, settings, uploads and shares.
type Store interface {
	RegisterUser(ctx context.Context, u *store.User, settings store.UserSetting) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetSettingsByUser(ctx context.Context, userID int64) (store.UserSetting, error)
	GetSettings(ctx context.Context, id int64) (store.UserSetting, error)
	UpdateSettings(ctx context.Context, id int64, upd store.SettingsUpdate) (store.UserSetting, error)
	CreateFile(ctx context.Context, f *store.FileUpload) error
	GetFile(ctx context.Context, id int64) (store.FileUpload, error)
	DeleteFile(ctx context.Context, id int64) error
	VisibleFiles(ctx context.Context, userID int64) ([]store.VisibleFile, error)
	CanRead(ctx context.Context, userID int64, f store.FileUpload) (bool, error)
	Share(ctx context.Context, fileIDs, userIDs []int64) (int, error)
	Ping(ctx context.Context) error
}

// Batches runs pipeline batches off the handler goroutine.
type Batches interface {
	Submit(ctx context.Context, req pipeline.Request) (pipeline.Results, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Registry Registry
	Catalog  Catalog
	Store    Store
	Blobs    filestore.Store
	Batches  Batches
	Issuer   *auth.Issuer
}

type server struct {
	Deps
}

// NewMux builds the router with every route mounted.
func NewMux(d Deps) http.Handler {
	s := &server{Deps: d}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsAllowedOrigins,
			AllowedMethods:   corsAllowedMethods,
			AllowedHeaders:   corsAllowedHeaders,
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)

	r.Post("/transcribe-audio", s.handleTranscribe)
	r.Post("/ocr", s.handleOCR)
	r.Post("/predict", s.handlePredict)

	r.Get("/device", s.handleDevice)
	r.Get("/get-device", s.handleLegacyDevice)
	r.Get("/models", s.handleModels)
	r.Get("/status", s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.Issuer, writeError))

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings/{id}", s.handleUpdateSettings)

		r.Post("/files", s.handleUpload)
		r.Get("/files", s.handleListFiles)
		r.Post("/files/process", s.handleProcess)
		r.Post("/files/share", s.handleShare)
		r.Get("/files/{id}", s.handleGetFile)
		r.Delete("/files/{id}", s.handleDeleteFile)
		r.Get("/files/{id}/bundle", s.handleBundle)

		r.Post("/models/evict", s.handleEvict)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.Registry.Ready() && s.Store.Ping(r.Context()) == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}
