package ingest

import (
	"io"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// Input describes one CSV import request.
type Input struct {
	// OperationID keys progress tracking. Generated by the caller so
	// concurrent imports never share a status record.
	OperationID string

	CompanyID   shared.ID
	PeriodLabel string

	// ObservationDate is the upload's declared creation date. It is the
	// sole chronology authority for prior-period resolution; the period
	// label is an opaque display key.
	ObservationDate time.Time

	// OSLabel is the operating system declared for the whole batch.
	OSLabel string

	// Encoding names the source character set. Empty or "utf-8" reads
	// the data as-is; "latin1" transcodes ISO 8859-1 scanner exports.
	Encoding string

	// Data is the raw CSV content.
	Data io.Reader
}

// Result summarizes one completed import.
type Result struct {
	RowsParsed    int `json:"rows_parsed"`
	RowsSkipped   int `json:"rows_skipped"`
	Duplicates    int `json:"duplicates"`
	Informational int `json:"informational"`

	Chunks          int `json:"chunks"`
	FindingsNew     int `json:"findings_new"`
	FindingsCarried int `json:"findings_carried"`
	Reopened        int `json:"reopened"`
	Resolved        int `json:"resolved"`
}

// item is one fingerprinted batch entry flowing through the reconciler.
// The entity is built up front so the fingerprint used for dedup and
// lookup is exactly the one persisted on create.
type item struct {
	row     Row
	finding *finding.Finding
}

// chunkOutcome counts what one chunk's reconciliation did.
type chunkOutcome struct {
	created  int
	carried  int
	reopened int
}
