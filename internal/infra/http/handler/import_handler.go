package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"github.com/K4R7IK/vulnmanage/internal/app/ingest"
	"github.com/K4R7IK/vulnmanage/internal/infra/jobs"
	"github.com/K4R7IK/vulnmanage/pkg/apierror"
	"github.com/K4R7IK/vulnmanage/pkg/domain/progress"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
	"github.com/K4R7IK/vulnmanage/pkg/validator"
)

// maxUploadSize caps the in-memory portion of multipart parsing.
const maxUploadSize = 64 << 20 // 64 MiB

// ImportHandler serves the CSV import endpoints.
type ImportHandler struct {
	service   *ingest.Service
	jobClient *jobs.Client
	tracker   progress.Tracker
	validator *validator.Validator
	logger    *logger.Logger
}

// NewImportHandler creates a new ImportHandler. jobClient may be nil,
// in which case async imports are unavailable.
func NewImportHandler(service *ingest.Service, jobClient *jobs.Client, tracker progress.Tracker, v *validator.Validator, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		service:   service,
		jobClient: jobClient,
		tracker:   tracker,
		validator: v,
		logger:    log,
	}
}

type importForm struct {
	PeriodLabel     string `validate:"required,min=1,max=100"`
	ObservationDate string `validate:"required"`
	OSLabel         string `validate:"omitempty,max=255"`
	Encoding        string `validate:"omitempty,oneof=utf-8 latin1"`
}

type importAcceptedResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
}

// Upload handles POST /api/v1/companies/{companyID}/imports.
//
// The upload is a multipart form with a "file" part (optionally
// gzip-compressed) and period_label, observation_date, os_label and
// encoding fields. With ?async=true the import is queued and a 202 with
// the operation ID is returned; otherwise the import runs inline.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		handleError(w, r, h.logger, apierror.BadRequest("invalid multipart form").WithError(err))
		return
	}

	form := importForm{
		PeriodLabel:     r.FormValue("period_label"),
		ObservationDate: r.FormValue("observation_date"),
		OSLabel:         r.FormValue("os_label"),
		Encoding:        r.FormValue("encoding"),
	}
	if err := h.validator.Validate(form); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	observationDate, err := parseObservationDate(form.ObservationDate)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		handleError(w, r, h.logger, apierror.BadRequest("missing file upload").WithError(err))
		return
	}
	defer file.Close()

	data, err := readUpload(file)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	operationID := shared.NewID().String()
	if err := h.tracker.Create(r.Context(), operationID); err != nil {
		h.logger.Warn("progress create failed", "operation_id", operationID, "error", err)
	}

	if r.URL.Query().Get("async") == "true" {
		if h.jobClient == nil {
			handleError(w, r, h.logger, apierror.ServiceUnavailable("background imports are not enabled"))
			return
		}
		err := h.jobClient.EnqueueImportCSV(r.Context(), jobs.ImportCSVPayload{
			OperationID:     operationID,
			CompanyID:       companyID.String(),
			PeriodLabel:     form.PeriodLabel,
			ObservationDate: observationDate,
			OSLabel:         form.OSLabel,
			Encoding:        form.Encoding,
		}, data)
		if err != nil {
			handleError(w, r, h.logger, err)
			return
		}
		respondJSON(w, http.StatusAccepted, importAcceptedResponse{
			OperationID: operationID,
			Status:      string(progress.StatePending),
		})
		return
	}

	result, err := h.service.Import(r.Context(), ingest.Input{
		OperationID:     operationID,
		CompanyID:       companyID,
		PeriodLabel:     form.PeriodLabel,
		ObservationDate: observationDate,
		OSLabel:         form.OSLabel,
		Encoding:        form.Encoding,
		Data:            bytes.NewReader(data),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		OperationID string         `json:"operation_id"`
		Result      *ingest.Result `json:"result"`
	}{OperationID: operationID, Result: result})
}

// Progress handles GET /api/v1/imports/{operationID}.
func (h *ImportHandler) Progress(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "operationID")
	status, err := h.tracker.Get(r.Context(), operationID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// readUpload reads the file, transparently decompressing gzip content.
func readUpload(file io.Reader) ([]byte, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apierror.BadRequest("cannot read upload").WithError(err)
	}

	// gzip magic bytes
	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, apierror.BadRequest("invalid gzip upload").WithError(err)
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, apierror.BadRequest("invalid gzip upload").WithError(err)
		}
	}
	return data, nil
}

func parseObservationDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apierror.BadRequest("observation_date must be RFC 3339 or YYYY-MM-DD")
}
