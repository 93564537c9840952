package httpapi

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/apperr"
	"github.com/caine128/NotesApp-sub000/internal/auth"
	"github.com/caine128/NotesApp-sub000/internal/blob"
	"github.com/caine128/NotesApp-sub000/internal/service/assetservice"
)

// UploadAsset streams the request body into the blob store and commits the
// asset. Query parameters: blockId, assetClientId, fileName, contentType?,
// sizeBytes.
func (s *Server) UploadAsset(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	blockID, err := uuid.Parse(query.Get("blockId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Request.Malformed", "blockId is not a UUID")
		return
	}
	assetClientID, err := uuid.Parse(query.Get("assetClientId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Request.Malformed", "assetClientId is not a UUID")
		return
	}
	fileName := query.Get("fileName")
	if fileName == "" {
		writeError(w, http.StatusBadRequest, "Request.Malformed", "fileName is required")
		return
	}
	sizeBytes, err := strconv.ParseInt(query.Get("sizeBytes"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Request.Malformed", "sizeBytes must be an integer")
		return
	}
	contentType := query.Get("contentType")
	if contentType == "" {
		contentType = r.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := s.Upload.Upload(r.Context(), auth.UserID(r.Context()), assetservice.UploadRequest{
		BlockID:       blockID,
		AssetClientID: assetClientID,
		FileName:      fileName,
		ContentType:   contentType,
		SizeBytes:     sizeBytes,
		Content:       http.MaxBytesReader(w, r.Body, sizeBytes),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadAsset serves a blob against a signed token. The token is the
// whole authorization: no session is required, so URLs can be handed to
// image views and share sheets.
func (s *Server) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, apperr.CodeDownloadTokenInvalid, "token is required")
		return
	}

	claims, err := s.Signer.VerifyDownload(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, apperr.CodeDownloadTokenInvalid, "token is invalid or expired")
		return
	}

	// The token must match the asset it was minted for.
	pathID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil || pathID != claims.AssetID {
		writeError(w, http.StatusUnauthorized, apperr.CodeDownloadTokenInvalid, "token does not match the asset")
		return
	}

	rc, err := s.Blobs.Get(r.Context(), claims.BlobPath)
	if err != nil {
		if err == blob.ErrNotFound {
			writeError(w, http.StatusNotFound, apperr.CodeAssetNotFound, "asset not found")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	if claims.ContentType != "" {
		w.Header().Set("Content-Type", claims.ContentType)
	}
	if claims.FileName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": claims.FileName}))
	}
	if _, err := io.Copy(w, rc); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("asset download interrupted")
	}
}
