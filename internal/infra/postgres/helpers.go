package postgres

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// Helper functions for null handling in PostgreSQL queries

// nullString converts a *string to sql.NullString.
// nil is treated as NULL.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullStringValue extracts a *string from sql.NullString.
// Returns nil if NULL.
func nullStringValue(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

// nullInt converts a *int to sql.NullInt32.
// nil is treated as NULL.
func nullInt(i *int) sql.NullInt32 {
	if i == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*i), Valid: true}
}

// nullIntValue extracts a *int from sql.NullInt32.
// Returns nil if NULL.
func nullIntValue(ni sql.NullInt32) *int {
	if ni.Valid {
		v := int(ni.Int32)
		return &v
	}
	return nil
}

// nullFloat converts a *float64 to sql.NullFloat64.
// nil is treated as NULL.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// nullFloatValue extracts a *float64 from sql.NullFloat64.
// Returns nil if NULL.
func nullFloatValue(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return &nf.Float64
	}
	return nil
}

// isConnectionError checks if the error means the database was
// unreachable rather than the statement being at fault.
func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 is connection exceptions, class 57 operator
		// intervention (server shutdown, cannot connect now).
		class := pqErr.Code.Class()
		return class == "08" || class == "57"
	}
	return false
}

// storeError tags connection-class failures with shared.ErrUnavailable
// so upper layers can tell an unreachable store from a bad statement.
// Every other error passes through unchanged.
func storeError(err error) error {
	if isConnectionError(err) {
		return fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	return err
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// toJSONB marshals a value to JSON bytes for JSONB columns.
// Returns nil if the value is nil.
func toJSONB(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// fromJSONB unmarshals JSON bytes from a JSONB column into the target.
// Does nothing if data is nil or empty.
func fromJSONB(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
