package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
)

const nessusHeader = "Plugin ID,CVE,CVSS,Risk,Host,Protocol,Port,Name,Synopsis,Description,Solution,See Also,Plugin Output\n"

// TestParseCSV_NessusExport parses a typical scanner export with all
// recognized columns populated.
func TestParseCSV_NessusExport(t *testing.T) {
	data := nessusHeader +
		`10863,CVE-2014-0160,7.5,Critical,10.0.0.5,tcp,443,OpenSSL Heartbeat,Memory disclosure,Long description here,Upgrade OpenSSL,"https://heartbleed.com, https://example.com/advisory",raw banner` + "\n"

	rows, stats, err := ParseCSV(strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "10.0.0.5", row.Host)
	assert.Equal(t, "tcp", row.Protocol)
	require.NotNil(t, row.Port)
	assert.Equal(t, 443, *row.Port)
	assert.Equal(t, "OpenSSL Heartbeat", row.Title)
	assert.Equal(t, finding.RiskCritical, row.Risk)
	assert.Equal(t, []string{"CVE-2014-0160"}, row.Identifiers)
	require.NotNil(t, row.Score)
	assert.InDelta(t, 7.5, *row.Score, 0.001)
	assert.Equal(t, "Memory disclosure", row.Synopsis)
	assert.Equal(t, "Long description here", row.Description)
	assert.Equal(t, "Upgrade OpenSSL", row.Solution)
	assert.Equal(t, []string{"https://heartbleed.com", "https://example.com/advisory"}, row.References)
	assert.Equal(t, "raw banner", row.RawOutput)

	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Kept)
}

// TestParseCSV_HeaderAliases accepts alternative scanner column names,
// case-insensitively.
func TestParseCSV_HeaderAliases(t *testing.T) {
	data := "IP Address,Plugin Name,SEVERITY,Vulnerability ID,Remediation\n" +
		"192.168.1.20,Weak SSH ciphers,Medium,CVE-2008-5161,Disable CBC mode\n"

	rows, _, err := ParseCSV(strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "192.168.1.20", rows[0].Host)
	assert.Equal(t, "Weak SSH ciphers", rows[0].Title)
	assert.Equal(t, finding.RiskMedium, rows[0].Risk)
	assert.Equal(t, []string{"CVE-2008-5161"}, rows[0].Identifiers)
	assert.Equal(t, "Disable CBC mode", rows[0].Solution)
}

// TestParseCSV_DropsInformational verifies risk "None" rows are counted
// but never kept.
func TestParseCSV_DropsInformational(t *testing.T) {
	data := "Host,Name,Risk\n" +
		"10.0.0.1,Traceroute Information,None\n" +
		"10.0.0.1,SMBv1 enabled,High\n"

	rows, stats, err := ParseCSV(strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SMBv1 enabled", rows[0].Title)
	assert.Equal(t, 1, stats.Informational)
	assert.Equal(t, 1, stats.Kept)
}

// TestParseCSV_SkipsBlankAndIncomplete verifies blank lines and rows
// missing required fields are skipped without aborting.
func TestParseCSV_SkipsBlankAndIncomplete(t *testing.T) {
	data := "Host,Name,Risk\n" +
		",,\n" +
		"10.0.0.1,,High\n" +
		",Orphan finding,High\n" +
		"10.0.0.1,Kept finding,High\n"

	rows, stats, err := ParseCSV(strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Kept finding", rows[0].Title)
	assert.Equal(t, 3, stats.Skipped)
}

// TestParseCSV_FullRowDedup collapses byte-identical lines to one row.
func TestParseCSV_FullRowDedup(t *testing.T) {
	data := "Host,Name,Risk\n" +
		"10.0.0.1,Duplicate finding,High\n" +
		"10.0.0.1,Duplicate finding,High\n" +
		"10.0.0.1,Duplicate finding,High\n"

	rows, stats, err := ParseCSV(strings.NewReader(data), "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 2, stats.Duplicates)
	assert.Equal(t, 1, stats.Kept)
}

// TestParseCSV_UnknownRiskSkipsRow verifies an unparseable risk label
// drops just that row.
func TestParseCSV_UnknownRiskSkipsRow(t *testing.T) {
	data := "Host,Name,Risk\n" +
		"10.0.0.1,Odd finding,Catastrophic\n" +
		"10.0.0.1,Normal finding,Low\n"

	rows, stats, err := ParseCSV(strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Normal finding", rows[0].Title)
	assert.Equal(t, 1, stats.Skipped)
}

// TestParseCSV_NoUsableRows returns a ParseError when nothing survives.
func TestParseCSV_NoUsableRows(t *testing.T) {
	data := "Host,Name,Risk\n" +
		"10.0.0.1,Only info here,None\n"

	_, _, err := ParseCSV(strings.NewReader(data), "")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

// TestParseCSV_NoRecognizedColumns rejects a header with no known names.
func TestParseCSV_NoRecognizedColumns(t *testing.T) {
	data := "foo,bar,baz\n1,2,3\n"

	_, _, err := ParseCSV(strings.NewReader(data), "")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

// TestParseCSV_UnsupportedEncoding rejects unknown character sets up
// front.
func TestParseCSV_UnsupportedEncoding(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader("Host,Name,Risk\n"), "utf-16")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

// TestParseCSV_Latin1 transcodes ISO 8859-1 exports.
func TestParseCSV_Latin1(t *testing.T) {
	// "Se\xf1al" is "Señal" in ISO 8859-1.
	data := "Host,Name,Risk\n10.0.0.1,Se\xf1al insegura,High\n"

	rows, _, err := ParseCSV(strings.NewReader(data), "latin1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Señal insegura", rows[0].Title)
}

// TestSplitList splits multi-valued cells on commas and newlines.
func TestSplitList(t *testing.T) {
	got := splitList("CVE-2014-0160,CVE-2014-0346\nCVE-2021-44228, ")
	assert.Equal(t, []string{"CVE-2014-0160", "CVE-2014-0346", "CVE-2021-44228"}, got)
}
