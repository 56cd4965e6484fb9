package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/session"
)

type Service interface {
	Upload(ctx context.Context, actor dams.Actor, in dams.UploadInput) (dams.Asset, error)
	Replace(ctx context.Context, actor dams.Actor, id uuid.UUID, in dams.UploadInput) (dams.Asset, error)
	Delete(ctx context.Context, actor dams.Actor, id uuid.UUID) (dams.DeleteResult, error)
	ListForActor(ctx context.Context, actor dams.Actor) ([]dams.Asset, error)
	Share(ctx context.Context, actor dams.Actor, id uuid.UUID, granteeID string) (dams.ShareGrant, bool, error)
	GetShared(ctx context.Context, actor dams.Actor, id uuid.UUID) (dams.Asset, error)
	ListSharedWithActor(ctx context.Context, actor dams.Actor) ([]dams.SharedAsset, error)
}

// FileOpener serves objects of a local blob store.
type FileOpener interface {
	Open(ctx context.Context, key string) (*os.File, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	Sessions session.Store
	CORS     CORSConfig
	// MaxUploadBytes caps multipart request bodies. Zero means 100 MiB.
	MaxUploadBytes int64
	// Files, when set, serves stored objects under /files/{key}.
	Files FileOpener
}

const (
	defaultMaxUploadBytes = 100 << 20
	multipartMemory       = 32 << 20
)

// Handler provides HTTP handlers for asset operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with the asset API mounted under
// /api/v1/assets. Every asset route requires a session.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = WriteJSON(w, http.StatusOK, success(http.StatusOK, "ok"))
	})

	r.Route("/api/v1/assets", func(r chi.Router) {
		r.Use(SessionMiddleware(h.config.Sessions))

		r.Post("/upload", h.handleUpload)
		r.Get("/user", h.handleListUser)
		r.Put("/file/{id}", h.handleReplace)
		r.Post("/share/{id}", h.handleShare)
		r.Get("/shared", h.handleListShared)
		r.Get("/shared/{id}", h.handleGetShared)
		r.Delete("/{assetId}", h.handleDelete)
	})

	if h.config.Files != nil {
		r.Get("/files/{key}", h.handleFile)
	}

	return r
}

type assetResponse struct {
	Response
	Asset dams.Asset `json:"asset"`
}

type assetsResponse struct {
	Response
	Assets []dams.Asset `json:"assets"`
}

type sharedAssetsResponse struct {
	Response
	Assets []dams.SharedAsset `json:"assets"`
}

type shareResponse struct {
	Response
	Shared dams.ShareGrant `json:"shared"`
}

type shareRequest struct {
	SharedWithUserID string `json:"sharedWithUserId"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	in, cleanup, valid := h.readUpload(w, r)
	if !valid {
		return
	}
	defer cleanup()

	asset, err := h.service.Upload(r.Context(), actor, in)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, assetResponse{
		Response: success(http.StatusCreated, dams.MessageUploaded),
		Asset:    asset,
	})
}

func (h *Handler) handleListUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	assets, err := h.service.ListForActor(r.Context(), actor)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, assetsResponse{
		Response: success(http.StatusOK, dams.MessageListed),
		Assets:   assets,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, valid := parseAssetID(w, chi.URLParam(r, "assetId"))
	if !valid {
		return
	}

	result, err := h.service.Delete(r.Context(), actor, id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, success(http.StatusOK, result.Message))
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, valid := parseAssetID(w, chi.URLParam(r, "id"))
	if !valid {
		return
	}

	in, cleanup, valid := h.readUpload(w, r)
	if !valid {
		return
	}
	defer cleanup()

	asset, err := h.service.Replace(r.Context(), actor, id, in)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, assetResponse{
		Response: success(http.StatusOK, dams.MessageReplaced),
		Asset:    asset,
	})
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, valid := parseAssetID(w, chi.URLParam(r, "id"))
	if !valid {
		return
	}

	var req shareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "Request body must be JSON")
		return
	}

	if strings.TrimSpace(req.SharedWithUserID) == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "sharedWithUserId is required")
		return
	}

	grant, created, err := h.service.Share(r.Context(), actor, id, req.SharedWithUserID)
	if err != nil {
		HandleError(w, err)
		return
	}

	message := dams.MessageShared
	if !created {
		message = dams.MessageAlreadyShared
	}

	_ = WriteJSON(w, http.StatusOK, shareResponse{
		Response: success(http.StatusOK, message),
		Shared:   grant,
	})
}

func (h *Handler) handleGetShared(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeSharedDenied(w)
		return
	}

	asset, err := h.service.GetShared(r.Context(), actor, id)
	if err != nil {
		if errors.Is(err, dams.ErrForbidden) || errors.Is(err, dams.ErrNotFound) {
			writeSharedDenied(w)
			return
		}
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, assetResponse{
		Response: success(http.StatusOK, dams.MessageSharedFetched),
		Asset:    asset,
	})
}

// writeSharedDenied answers every shared lookup failure the same way so that
// callers cannot probe which asset IDs exist.
func writeSharedDenied(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, "forbidden", "Asset not found or not shared with you")
}

func (h *Handler) handleListShared(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	assets, err := h.service.ListSharedWithActor(r.Context(), actor)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, sharedAssetsResponse{
		Response: success(http.StatusOK, dams.MessageSharedListed),
		Assets:   assets,
	})
}

func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	f, err := h.config.Files.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, dams.ErrNotFound) {
			writeDefaultNotFound(w)
			return
		}
		HandleError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeDefaultNotFound(w)
		return
	}

	http.ServeContent(w, r, key, info.ModTime(), f)
}

// readUpload extracts the multipart "file" part. On failure it has already
// written the response and ok is false.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (in dams.UploadInput, cleanup func(), ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "File exceeds the maximum upload size")
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			WriteError(w, http.StatusBadRequest, "invalid_input", "No file uploaded")
		default:
			WriteError(w, http.StatusBadRequest, "invalid_input", "Malformed multipart body")
		}
		return dams.UploadInput{}, nil, false
	}

	cleanup = func() {
		_ = file.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	return dams.UploadInput{
		Filename: header.Filename,
		MimeType: partContentType(header),
		Size:     header.Size,
		Content:  file,
	}, cleanup, true
}

func partContentType(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}

func parseAssetID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "Invalid asset ID")
		return uuid.Nil, false
	}
	return id, true
}
