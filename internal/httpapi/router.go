// Package httpapi is the HTTP surface of the sync server: push, pull,
// conflict resolution, and the asset upload/download endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/apperr"
	"github.com/caine128/NotesApp-sub000/internal/auth"
	"github.com/caine128/NotesApp-sub000/internal/blob"
	"github.com/caine128/NotesApp-sub000/internal/service/assetservice"
	"github.com/caine128/NotesApp-sub000/internal/service/syncservice"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	Push    *syncservice.PushService
	Pull    *syncservice.PullService
	Resolve *syncservice.ResolveService
	Upload  *assetservice.UploadService
	Signer  *blob.Signer
	Blobs   blob.Store
}

// errBody is the wire shape of every request-level failure.
type errBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes a structured {code, message} failure
func writeError(w http.ResponseWriter, code int, appCode, message string) {
	writeJSON(w, code, errBody{Code: appCode, Message: message})
}

// statusFor maps coded service errors to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case apperr.CodeDeviceNotFound, apperr.CodeBlockNotFound, apperr.CodeAssetNotFound:
		return http.StatusNotFound
	case apperr.CodeBlockTypeInvalid, apperr.CodeAssetSizeInvalid:
		return http.StatusBadRequest
	case apperr.CodeUploadInvalidStatus, apperr.CodeAssetClientMismatch:
		return http.StatusConflict
	case apperr.CodeAssetSizeTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.CodeAssetUploadFailed:
		return http.StatusBadGateway
	case apperr.CodeDownloadTokenInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError translates a service failure: coded errors become
// their mapped status, anything else is a 500 with a generic body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if code := apperr.CodeOf(err); code != "" {
		writeError(w, statusFor(code), code, err.Error())
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Internal", "internal server error")
}

// Routes creates the HTTP router with all sync endpoints
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	// Health check (unauthenticated)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	// Signed download: the token is the authorization
	r.Get("/v1/assets/{assetID}/download", s.DownloadAsset)

	// All sync endpoints require authentication
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))
		r.Use(RateLimitMiddleware(RateLimitInfo{
			WindowSeconds: 60,
			MaxRequests:   600,
			Burst:         120,
		}))

		r.Post("/v1/sync/push", s.PushChanges)
		r.Get("/v1/sync/pull", s.PullChanges)
		r.Post("/v1/sync/resolve", s.ResolveConflicts)

		r.Post("/v1/assets/upload", s.UploadAsset)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
