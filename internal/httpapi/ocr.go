package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/spherical/pdf-ocr/internal/domain"
	"github.com/spherical/pdf-ocr/internal/observability"
	"github.com/spherical/pdf-ocr/internal/pdf"
	"github.com/spherical/pdf-ocr/internal/stream"
)

const multipartMemory = 32 << 20

// OCRHandler turns an uploaded PDF into a Server-Sent Events stream.
type OCRHandler struct {
	logger     *observability.Logger
	validator  *pdf.Validator
	rasterizer domain.Rasterizer
	pipeline   domain.Pipeline
	providers  []domain.ProviderConfig
	maxUpload  int64
}

// NewOCRHandler creates the handler. providers are used when a request
// carries no api_configs field.
func NewOCRHandler(logger *observability.Logger, rasterizer domain.Rasterizer, pipeline domain.Pipeline, providers []domain.ProviderConfig, maxUpload int64) *OCRHandler {
	return &OCRHandler{
		logger:     logger.WithComponent("ocr"),
		validator:  pdf.NewValidator(maxUpload),
		rasterizer: rasterizer,
		pipeline:   pipeline,
		providers:  providers,
		maxUpload:  maxUpload,
	}
}

// Extract handles POST /api/ocr.
//
// The form carries the PDF as `file` and an optional `api_configs` JSON array.
// Problems found before the first event are answered with a JSON error; after
// that every failure travels inside the stream.
func (h *OCRHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "upload too large", err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file is required", err.Error())
		return
	}
	defer file.Close()

	if err := h.validator.ValidateFilename(header.Filename); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid file", err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read file", err.Error())
		return
	}
	if err := h.validator.ValidateDocument(data); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid file", err.Error())
		return
	}

	providers, err := h.resolveProviders(r.FormValue("api_configs"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid api_configs", err.Error())
		return
	}

	ctx := r.Context()
	pages, err := h.rasterizer.Rasterize(ctx, data)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !domain.IsType(err, domain.ErrorTypeConversion) && !domain.IsType(err, domain.ErrorTypeValidation) {
			status = http.StatusInternalServerError
		}
		h.writeError(w, status, "failed to render document", err.Error())
		return
	}

	sink, err := stream.NewSSEWriter(w)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported", err.Error())
		return
	}

	h.logger.Info().
		Str("file", header.Filename).
		Int("bytes", len(data)).
		Int("pages", len(pages)).
		Int("providers", len(providers)).
		Msg("Starting OCR stream")

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := h.pipeline.Run(streamCtx, pages, providers)
	if err := stream.Forward(streamCtx, cancel, events, sink); err != nil {
		h.logger.Info().Err(err).Msg("Client went away, stream abandoned")
	}
}

// resolveProviders decodes the api_configs field, falling back to the
// configured providers when it is empty.
func (h *OCRHandler) resolveProviders(raw string) ([]domain.ProviderConfig, error) {
	if strings.TrimSpace(raw) == "" {
		if len(h.providers) == 0 {
			return nil, domain.ValidationError("no providers configured", nil)
		}
		return h.providers, nil
	}

	var providers []domain.ProviderConfig
	if err := json.Unmarshal([]byte(raw), &providers); err != nil {
		return nil, domain.ValidationError("api_configs must be a JSON array", err)
	}
	if len(providers) == 0 {
		return nil, domain.ValidationError("api_configs is empty", nil)
	}
	return providers, nil
}

func (h *OCRHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	h.logger.Warn().Int("status", status).Str("detail", detail).Msg(message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
