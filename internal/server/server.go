package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kiesman99/gridstitch/internal/api"
	"github.com/kiesman99/gridstitch/internal/artifact"
	"github.com/kiesman99/gridstitch/internal/composer"
	"github.com/kiesman99/gridstitch/pkg/layout"
)

// DefaultMaxUploadBytes caps the multipart body of one composition request.
const DefaultMaxUploadBytes = 64 << 20

// imagesField is the multipart field carrying the uploads.
const imagesField = "images"

// Server implements the ServerInterface from the generated API
type Server struct {
	startTime time.Time
	version   string

	composer *composer.Composer
	store    *artifact.Store
	defaults layout.Params
	logger   *slog.Logger

	MaxUploadBytes int64
}

// NewServer creates a new server instance. defaults fill in whatever a
// request leaves unset.
func NewServer(version string, store *artifact.Store, defaults layout.Params, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		startTime:      time.Now(),
		version:        version,
		composer:       composer.New(),
		store:          store,
		defaults:       defaults,
		logger:         logger,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("encoding health response", "error", err)
	}
}

// CreateComposition composes the uploaded images, stores the result as a
// downloadable artifact and returns the encoded image.
func (s *Server) CreateComposition(w http.ResponseWriter, r *http.Request, params api.CreateCompositionParams) {
	requestID := requestIDFrom(r)
	logger := s.logger.With("request_id", requestID)

	if err := s.validateCompositionParams(params); err != nil {
		s.writeValidationErrorResponse(w, err, &requestID)
		return
	}
	layoutParams := s.convertToLayoutParams(params)

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
				"Upload exceeds the size limit", &requestID, map[string]interface{}{
					"limit_bytes": s.MaxUploadBytes,
				})
			return
		}
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Request body must be multipart/form-data", &requestID, nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[imagesField]
	if len(files) == 0 {
		logger.Debug("no images uploaded, nothing to compose")
		w.Header().Set("X-Request-ID", requestID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	payloads, err := readUploads(files)
	if err != nil {
		logger.Error("reading uploads", "error", err)
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Uploaded files could not be read", &requestID, nil)
		return
	}

	images, err := composer.DecodeBytes(payloads)
	if err == nil {
		var result *composer.Result
		result, err = s.composer.Compose(images, layoutParams)
		if err == nil {
			s.writeComposition(w, result, requestID, logger)
			return
		}
	}
	s.handleCompositionError(w, err, files, &requestID, logger)
}

func (s *Server) writeComposition(w http.ResponseWriter, result *composer.Result, requestID string, logger *slog.Logger) {
	a, err := s.store.Save(result.Data, result.Format)
	if err != nil {
		logger.Error("storing artifact", "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "STORAGE_ERROR",
			"Composed image could not be stored", &requestID, nil)
		return
	}

	logger.Info("composition created",
		"images", len(result.Placements), "rows", result.Grid.Rows, "cols", result.Grid.Cols,
		"format", result.Format, "bytes", len(result.Data), "artifact", a.Name)

	w.Header().Set("Content-Type", result.Format.ContentType())
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Artifact-Name", a.Name)
	w.Header().Set("Location", artifactPath(a.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		logger.Error("writing response", "error", err)
	}
}

// GetArtifact streams a stored composition as a download.
func (s *Server) GetArtifact(w http.ResponseWriter, r *http.Request, name api.ArtifactName) {
	requestID := requestIDFrom(r)

	f, a, err := s.store.Open(name)
	switch {
	case errors.Is(err, artifact.ErrInvalidName):
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_ARTIFACT_NAME",
			fmt.Sprintf("%q is not an artifact name", name), &requestID, nil)
		return
	case errors.Is(err, artifact.ErrNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, "ARTIFACT_NOT_FOUND",
			"Artifact does not exist or has expired", &requestID, nil)
		return
	case err != nil:
		s.logger.Error("opening artifact", "request_id", requestID, "name", name, "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", &requestID, nil)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", a.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		s.logger.Error("writing artifact", "request_id", requestID, "error", err)
	}
}

// DeleteArtifact removes a stored composition before the janitor would.
// Deleting a missing artifact succeeds.
func (s *Server) DeleteArtifact(w http.ResponseWriter, r *http.Request, name api.ArtifactName) {
	requestID := requestIDFrom(r)

	err := s.store.Remove(name)
	switch {
	case errors.Is(err, artifact.ErrInvalidName):
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_ARTIFACT_NAME",
			fmt.Sprintf("%q is not an artifact name", name), &requestID, nil)
		return
	case err != nil:
		s.logger.Error("removing artifact", "request_id", requestID, "name", name, "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", &requestID, nil)
		return
	}

	s.logger.Info("artifact removed", "request_id", requestID, "name", name)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusNoContent)
}

// RunJanitor prunes artifacts older than ttl every interval until ctx ends.
func (s *Server) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	prune := func() {
		n, err := s.store.Prune(ttl)
		if err != nil {
			s.logger.Error("pruning artifacts", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("pruned artifacts", "removed", n)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// validateCompositionParams validates the query parameters
func (s *Server) validateCompositionParams(params api.CreateCompositionParams) error {
	if params.Format != nil {
		if _, err := layout.ParseFormat(string(*params.Format)); err != nil {
			return &fieldError{field: "format", message: fmt.Sprintf("format must be %s or %s", api.PNG, api.JPEG)}
		}
	}
	if params.Size != nil && !layout.IsSupportedSize(int(*params.Size)) {
		return &fieldError{field: "size", message: fmt.Sprintf("size must be one of %v", layout.SupportedSizes)}
	}
	if params.Padding != nil && *params.Padding < 0 {
		return &fieldError{field: "padding", message: "padding must not be negative"}
	}
	if params.Spacing != nil && *params.Spacing < 0 {
		return &fieldError{field: "spacing", message: "spacing must not be negative"}
	}
	return nil
}

// convertToLayoutParams overlays the request on the configured defaults
func (s *Server) convertToLayoutParams(params api.CreateCompositionParams) layout.Params {
	p := s.defaults

	if params.Format != nil {
		// validated above
		p.Format, _ = layout.ParseFormat(string(*params.Format))
	}
	if params.Size != nil {
		p.Size = int(*params.Size)
	}
	if params.Padding != nil {
		p.Padding = *params.Padding
	}
	if params.Spacing != nil {
		p.Spacing = *params.Spacing
	}

	return p
}

// handleCompositionError maps composer failures to responses
func (s *Server) handleCompositionError(w http.ResponseWriter, err error, files []*multipart.FileHeader, requestID *string, logger *slog.Logger) {
	var ce *composer.Error
	if !errors.As(err, &ce) {
		logger.Error("composition failed", "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", requestID, nil)
		return
	}

	logger.Error("composition failed", "reason", ce.Reason, "index", ce.Index, "error", err)

	switch ce.Reason {
	case composer.ReasonInvalidParams:
		s.writeValidationErrorResponse(w, &fieldError{field: "request", message: "layout parameters are out of range"}, requestID)
	case composer.ReasonDecodeFailure:
		message := "An uploaded file is not a readable image"
		if ce.Index >= 0 && ce.Index < len(files) {
			message = fmt.Sprintf("Uploaded file %q is not a readable image", files[ce.Index].Filename)
		}
		s.writeCompositionErrorResponse(w, api.DECODEFAILURE, message, ce.Index, requestID)
	case composer.ReasonDegenerateLayout:
		s.writeCompositionErrorResponse(w, api.DEGENERATELAYOUT,
			"Padding and spacing leave no room for the images at this output size", -1, requestID)
	default:
		s.writeErrorResponse(w, http.StatusInternalServerError, "ENCODE_FAILURE",
			"Composed image could not be encoded", requestID, nil)
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	writeJSON(w, statusCode, response)
}

func (s *Server) writeCompositionErrorResponse(w http.ResponseWriter, reason api.CompositionErrorResponseReason, message string, index int, requestID *string) {
	response := api.CompositionErrorResponse{
		Error:     "COMPOSITION_FAILED",
		Reason:    reason,
		Message:   message,
		RequestId: requestID,
	}
	if index >= 0 {
		response.ImageIndex = &index
	}

	writeJSON(w, http.StatusUnprocessableEntity, response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, err error, requestID *string) {
	field := "request"
	var fe *fieldError
	if errors.As(err, &fe) {
		field = fe.field
	}

	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   err.Error(),
		RequestId: requestID,
		ValidationErrors: []struct {
			Code    *string `json:"code,omitempty"`
			Field   string  `json:"field"`
			Message string  `json:"message"`
		}{
			{
				Field:   field,
				Message: err.Error(),
			},
		},
	}

	writeJSON(w, http.StatusBadRequest, response)
}

// ParamErrorHandler answers parameter binding failures from the generated
// wrapper with a validation error.
func (s *Server) ParamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFrom(r)

	var pe *api.InvalidParamFormatError
	if errors.As(err, &pe) {
		err = &fieldError{field: pe.ParamName, message: fmt.Sprintf("invalid value for %s", pe.ParamName)}
	}
	s.writeValidationErrorResponse(w, err, &requestID)
}

type fieldError struct {
	field   string
	message string
}

func (e *fieldError) Error() string {
	return e.message
}

func readUploads(files []*multipart.FileHeader) ([][]byte, error) {
	payloads := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		payloads = append(payloads, data)
	}
	return payloads, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func artifactPath(name string) string {
	return APIPrefix + "/artifacts/" + name
}

// requestIDFrom prefers the id set by middleware.RequestID
func requestIDFrom(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return generateRequestID()
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
