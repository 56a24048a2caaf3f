package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
)

// Row is one normalized scanner export row.
type Row struct {
	Identifiers []string
	Score       *float64
	Risk        finding.RiskLevel
	Host        string
	Protocol    string
	Port        *int
	Title       string
	Synopsis    string
	Description string
	Solution    string
	References  []string
	RawOutput   string
}

// ParseStats counts what happened to the raw rows during parsing.
type ParseStats struct {
	Total         int
	Kept          int
	Skipped       int
	Duplicates    int
	Informational int
}

// columnAliases maps normalized header names to canonical column keys.
// Unrecognized columns are ignored.
var columnAliases = map[string]string{
	"cve":                  "identifiers",
	"cve id":               "identifiers",
	"vulnerability id":     "identifiers",
	"cvss":                 "score",
	"cvss score":           "score",
	"cvss v3.0 base score": "score",
	"risk":                 "risk",
	"severity":             "risk",
	"host":                 "host",
	"host address":         "host",
	"ip address":           "host",
	"protocol":             "protocol",
	"port":                 "port",
	"name":                 "title",
	"title":                "title",
	"plugin name":          "title",
	"synopsis":             "synopsis",
	"description":          "description",
	"solution":             "solution",
	"remediation":          "solution",
	"see also":             "references",
	"references":           "references",
	"plugin output":        "raw_output",
	"raw output":           "raw_output",
}

// ParseCSV reads a scanner CSV export into normalized rows.
//
// Parsing is lenient: headers and values are trimmed, blank lines and
// rows missing required fields are skipped rather than aborting, and
// byte-identical rows are collapsed to one. Rows at the informational
// risk tier are dropped. A ParseError is returned only when the header
// is unreadable or no row survives at all.
func ParseCSV(r io.Reader, encoding string) ([]Row, ParseStats, error) {
	var stats ParseStats

	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		// as-is
	case "latin1", "iso-8859-1":
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return nil, stats, &ParseError{Reason: "unsupported encoding " + encoding}
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, stats, &ParseError{Reason: "cannot read header row", Err: err}
	}

	// Map column index -> canonical key.
	columns := make(map[int]string, len(header))
	for i, h := range header {
		if key, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			columns[i] = key
		}
	}
	if len(columns) == 0 {
		return nil, stats, &ParseError{Reason: "no recognized columns in header"}
	}

	rows := make([]Row, 0, 64)
	seen := make(map[string]struct{})

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Malformed line: skip it, keep going.
			stats.Total++
			stats.Skipped++
			continue
		}
		stats.Total++

		if isBlank(record) {
			stats.Skipped++
			continue
		}

		// Full-row dedup: literal duplicate CSV lines collapse before
		// fingerprinting ever happens.
		key := strings.Join(record, "\x1f")
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		row, ok := buildRow(record, columns)
		if !ok {
			stats.Skipped++
			continue
		}
		if !row.Risk.Tracked() {
			stats.Informational++
			continue
		}

		rows = append(rows, row)
		stats.Kept++
	}

	if stats.Kept == 0 {
		return nil, stats, &ParseError{Reason: "no valid rows in input"}
	}
	return rows, stats, nil
}

// buildRow converts one CSV record into a Row. Returns false when a
// required field is missing or unparseable.
func buildRow(record []string, columns map[int]string) (Row, bool) {
	var row Row
	for i, key := range columns {
		if i >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[i])
		if value == "" {
			continue
		}
		switch key {
		case "identifiers":
			row.Identifiers = splitList(value)
		case "score":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				row.Score = &f
			}
		case "risk":
			risk, err := finding.ParseRiskLevel(value)
			if err != nil {
				return Row{}, false
			}
			row.Risk = risk
		case "host":
			row.Host = value
		case "protocol":
			row.Protocol = strings.ToLower(value)
		case "port":
			if p, err := strconv.Atoi(value); err == nil && p > 0 {
				row.Port = &p
			}
		case "title":
			row.Title = value
		case "synopsis":
			row.Synopsis = value
		case "description":
			row.Description = value
		case "solution":
			row.Solution = value
		case "references":
			row.References = splitList(value)
		case "raw_output":
			row.RawOutput = value
		}
	}

	if row.Host == "" || row.Title == "" || row.Risk == "" {
		return Row{}, false
	}
	return row, true
}

// splitList splits multi-valued cells on newlines and commas.
func splitList(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '\n' || r == ','
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
