package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/klauspost/compress/gzip"

	"github.com/K4R7IK/vulnmanage/internal/app/ingest"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// Task types.
const (
	TypeImportCSV = "import:csv"
)

// Queue names.
const (
	QueueImports = "imports"
)

// ImportCSVPayload carries one queued CSV import. The CSV body rides
// along gzip-compressed so large uploads stay within Redis value limits.
type ImportCSVPayload struct {
	OperationID     string    `json:"operation_id"`
	CompanyID       string    `json:"company_id"`
	PeriodLabel     string    `json:"period_label"`
	ObservationDate time.Time `json:"observation_date"`
	OSLabel         string    `json:"os_label,omitempty"`
	Encoding        string    `json:"encoding,omitempty"`
	CSVGzip         []byte    `json:"csv_gzip"`
}

// NewImportCSVTask creates an import task, compressing the CSV body.
func NewImportCSVTask(payload ImportCSVPayload, csvData []byte) (*asynq.Task, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(csvData); err != nil {
		return nil, fmt.Errorf("failed to compress CSV: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress CSV: %w", err)
	}
	payload.CSVGzip = buf.Bytes()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeImportCSV, data,
		asynq.Queue(QueueImports),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
	), nil
}

// ImportTaskHandler processes queued CSV imports.
type ImportTaskHandler struct {
	service *ingest.Service
	logger  *logger.Logger
}

// NewImportTaskHandler creates a new ImportTaskHandler.
func NewImportTaskHandler(service *ingest.Service, log *logger.Logger) *ImportTaskHandler {
	return &ImportTaskHandler{
		service: service,
		logger:  log.With("component", "import_task_handler"),
	}
}

// HandleImportCSV runs one queued import.
func (h *ImportTaskHandler) HandleImportCSV(ctx context.Context, t *asynq.Task) error {
	var payload ImportCSVPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	companyID, err := shared.IDFromString(payload.CompanyID)
	if err != nil {
		return fmt.Errorf("invalid company ID %q: %v: %w", payload.CompanyID, err, asynq.SkipRetry)
	}

	zr, err := gzip.NewReader(bytes.NewReader(payload.CSVGzip))
	if err != nil {
		return fmt.Errorf("failed to decompress CSV: %v: %w", err, asynq.SkipRetry)
	}
	csvData, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("failed to decompress CSV: %v: %w", err, asynq.SkipRetry)
	}
	if err := zr.Close(); err != nil {
		return fmt.Errorf("failed to decompress CSV: %v: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("processing queued import",
		"operation_id", payload.OperationID,
		"company_id", payload.CompanyID,
		"period", payload.PeriodLabel,
	)

	_, err = h.service.Import(ctx, ingest.Input{
		OperationID:     payload.OperationID,
		CompanyID:       companyID,
		PeriodLabel:     payload.PeriodLabel,
		ObservationDate: payload.ObservationDate,
		OSLabel:         payload.OSLabel,
		Encoding:        payload.Encoding,
		Data:            bytes.NewReader(csvData),
	})
	if err != nil {
		// Bad upload content never gets better on retry; only transient
		// failures (store, lock, progress) are worth re-queuing.
		var parseErr *ingest.ParseError
		var validationErr *ingest.ValidationError
		if errors.As(err, &parseErr) || errors.As(err, &validationErr) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
