package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"canvasConverter/api/dto"
	"canvasConverter/api/middleware"
	"canvasConverter/api/service"
	"canvasConverter/api/validation"
	"canvasConverter/worker/archive"
	"canvasConverter/worker/collector"
	"canvasConverter/worker/converter"
	worker "canvasConverter/worker/service"
)

const multipartMemory = 32 << 20

type ConvertService interface {
	Convert(ctx context.Context, traceID string, req dto.ConvertRequest, payloads []collector.Payload) (*worker.Result, error)
	GetProgress(ctx context.Context, batchID string) (*dto.ProgressResponse, error)
}

type ConvertHandler struct {
	service       ConvertService
	maxUploadSize int64
	logger        *zap.Logger
}

func NewConvertHandler(service ConvertService, maxUploadSize int64, logger *zap.Logger) *ConvertHandler {
	return &ConvertHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Register wires the handler's routes onto r.
func (h *ConvertHandler) Register(r *mux.Router) {
	r.HandleFunc("/convert", h.Convert).Methods(http.MethodPost)
	r.HandleFunc("/progress/{id}", h.Progress).Methods(http.MethodGet)
}

// uploadedFile lets a multipart part be read by a conversion job.
type uploadedFile struct {
	header *multipart.FileHeader
}

func (f uploadedFile) Name() string { return f.header.Filename }

func (f uploadedFile) Open() (io.ReadCloser, error) { return f.header.Open() }

func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(w, "Upload too large", validation.ErrFileTooLarge, traceID, http.StatusRequestEntityTooLarge, dto.CodeInvalidInput)
			return
		}
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest, dto.CodeInvalidInput)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.handleError(w, "No files uploaded", collector.ErrNoPayloads, traceID, http.StatusBadRequest, dto.CodeInvalidInput)
		return
	}

	payloads := make([]collector.Payload, 0, len(headers))
	for _, fh := range headers {
		if err := validateUpload(fh); err != nil {
			h.handleError(w, fmt.Sprintf("Invalid file %s", fh.Filename), err, traceID, http.StatusBadRequest, dto.CodeInvalidInput)
			return
		}
		payloads = append(payloads, uploadedFile{header: fh})
	}

	batchID := r.FormValue("batch_id")
	if batchID == "" {
		batchID = r.Header.Get("X-Batch-ID")
	}

	req := dto.ConvertRequest{
		BatchID:    batchID,
		Resolution: r.FormValue("resolution"),
		Background: r.FormValue("background"),
	}

	result, err := h.service.Convert(r.Context(), traceID, req, payloads)
	if err != nil {
		h.handleConvertError(w, err, result, traceID)
		return
	}

	h.logger.Info("Batch converted",
		zap.String("trace_id", traceID),
		zap.String("batch_id", result.BatchID),
		zap.Int("total", result.Total),
		zap.Int("failed", len(result.Failures)),
	)

	failed := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failed = append(failed, f.RelPath)
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Archive)))
	w.Header().Set("X-Batch-ID", result.BatchID)
	w.Header().Set("X-Images-Total", strconv.Itoa(result.Total))
	w.Header().Set("X-Images-Failed", strconv.Itoa(len(result.Failures)))
	if len(failed) > 0 {
		w.Header().Set("X-Failed-Images", strings.Join(failed, ","))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(result.Archive)
}

func (h *ConvertHandler) Progress(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	batchID := mux.Vars(r)["id"]
	if batchID == "" {
		h.handleError(w, "Batch ID is required", nil, traceID, http.StatusBadRequest, dto.CodeInvalidInput)
		return
	}

	resp, err := h.service.GetProgress(r.Context(), batchID)
	if err != nil {
		switch {
		case errors.Is(err, dto.ErrBatchNotFound):
			h.handleError(w, "Batch not found", err, traceID, http.StatusNotFound, "")
		case errors.Is(err, service.ErrProgressUnavailable):
			h.handleError(w, "Progress tracking unavailable", err, traceID, http.StatusServiceUnavailable, "")
		default:
			h.handleError(w, "Failed to get progress", err, traceID, http.StatusInternalServerError, dto.CodeInternal)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func validateUpload(fh *multipart.FileHeader) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = validation.ValidatePayload(fh.Filename, f)
	return err
}

func (h *ConvertHandler) handleConvertError(w http.ResponseWriter, err error, result *worker.Result, traceID string) {
	switch {
	case errors.Is(err, converter.ErrInvalidResolution),
		errors.Is(err, converter.ErrInvalidColor),
		errors.Is(err, converter.ErrInvalidTarget),
		errors.Is(err, collector.ErrNoPayloads),
		errors.Is(err, dto.ErrInvalidBatchID):
		h.handleError(w, "Invalid conversion request", err, traceID, http.StatusBadRequest, dto.CodeInvalidInput)
	case errors.Is(err, dto.ErrBatchInProgress):
		h.handleError(w, "Batch already running", err, traceID, http.StatusConflict, dto.CodeInvalidInput)
	case errors.Is(err, collector.ErrInvalidArchive):
		h.handleError(w, "Invalid archive", err, traceID, http.StatusBadRequest, dto.CodeInvalidArchive)
	case errors.Is(err, collector.ErrEmptyBatch):
		h.handleError(w, "No images found", err, traceID, http.StatusUnprocessableEntity, dto.CodeNoImages)
	case errors.Is(err, worker.ErrAllFailed):
		h.logger.Error("No image could be converted",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		resp := dto.ErrorResponse{
			Error:   "No image could be converted",
			Code:    dto.CodeAllFailed,
			TraceID: traceID,
		}
		if result != nil {
			for _, f := range result.Failures {
				resp.Failures = append(resp.Failures, dto.FailedImage{Path: f.RelPath, Reason: f.Reason})
			}
		}
		h.respondJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, archive.ErrPackaging):
		h.handleError(w, "Failed to package output", err, traceID, http.StatusInternalServerError, dto.CodePackagingFailed)
	default:
		h.handleError(w, "Conversion failed", err, traceID, http.StatusInternalServerError, dto.CodeInternal)
	}
}

func (h *ConvertHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int, code string) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Int("status", status),
		zap.Error(err),
	)

	h.respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: traceID,
	})
}

func (h *ConvertHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
