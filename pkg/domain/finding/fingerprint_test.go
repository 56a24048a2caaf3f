package finding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

func baseInput() FingerprintInput {
	port := 443
	score := 7.5
	return FingerprintInput{
		CompanyID:      "7f9c24e5-2f31-4a1e-9d12-3b8f6a0c1d2e",
		AssetAddress:   "10.0.0.5",
		AssetOS:        "linux",
		Port:           &port,
		Protocol:       "tcp",
		Title:          "OpenSSL Heartbeat Information Disclosure",
		Identifiers:    []string{"CVE-2014-0160"},
		Description:    "The remote service is affected by an information disclosure flaw.",
		Synopsis:       "Memory disclosure over TLS heartbeat.",
		Recommendation: "Upgrade OpenSSL.",
		RiskLevel:      "critical",
		Score:          &score,
		References:     []string{"https://heartbleed.com", "https://nvd.nist.gov/vuln/detail/CVE-2014-0160"},
	}
}

// TestFingerprint_Stable verifies the digest is deterministic across calls.
func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint(baseInput())
	b := Fingerprint(baseInput())

	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "expected lowercase hex sha-256")
}

// TestFingerprint_ListOrderInvariant verifies identifier and reference
// order does not influence the digest.
func TestFingerprint_ListOrderInvariant(t *testing.T) {
	a := baseInput()
	a.Identifiers = []string{"CVE-2014-0160", "CVE-2014-0346"}
	a.References = []string{"https://b.example", "https://a.example"}

	b := baseInput()
	b.Identifiers = []string{"CVE-2014-0346", "CVE-2014-0160"}
	b.References = []string{"https://a.example", "https://b.example"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

// TestFingerprint_DoesNotMutateInput verifies the sort happens on copies.
func TestFingerprint_DoesNotMutateInput(t *testing.T) {
	in := baseInput()
	in.Identifiers = []string{"CVE-2021-44228", "CVE-2014-0160"}

	Fingerprint(in)

	assert.Equal(t, []string{"CVE-2021-44228", "CVE-2014-0160"}, in.Identifiers)
}

// TestFingerprint_FieldSensitivity verifies every identifying field
// participates in the digest.
func TestFingerprint_FieldSensitivity(t *testing.T) {
	base := Fingerprint(baseInput())

	otherPort := 8443
	otherScore := 9.8
	cases := []struct {
		name   string
		mutate func(*FingerprintInput)
	}{
		{"company", func(in *FingerprintInput) { in.CompanyID = "11111111-2222-3333-4444-555555555555" }},
		{"asset address", func(in *FingerprintInput) { in.AssetAddress = "10.0.0.6" }},
		{"asset os", func(in *FingerprintInput) { in.AssetOS = "windows" }},
		{"port", func(in *FingerprintInput) { in.Port = &otherPort }},
		{"nil port", func(in *FingerprintInput) { in.Port = nil }},
		{"protocol", func(in *FingerprintInput) { in.Protocol = "udp" }},
		{"title", func(in *FingerprintInput) { in.Title = "Something else" }},
		{"identifiers", func(in *FingerprintInput) { in.Identifiers = []string{"CVE-2021-44228"} }},
		{"description", func(in *FingerprintInput) { in.Description = "changed" }},
		{"synopsis", func(in *FingerprintInput) { in.Synopsis = "changed" }},
		{"recommendation", func(in *FingerprintInput) { in.Recommendation = "changed" }},
		{"risk level", func(in *FingerprintInput) { in.RiskLevel = "high" }},
		{"score", func(in *FingerprintInput) { in.Score = &otherScore }},
		{"references", func(in *FingerprintInput) { in.References = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput()
			tc.mutate(&in)
			assert.NotEqual(t, base, Fingerprint(in))
		})
	}
}

// TestFinding_FingerprintTracksSetters verifies the entity recomputes
// its digest whenever an identifying field changes.
func TestFinding_FingerprintTracksSetters(t *testing.T) {
	companyID := shared.NewID()
	uploaded := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	f, err := NewFinding(companyID, "10.0.0.5", "Weak SSH ciphers", RiskMedium, uploaded)
	require.NoError(t, err)
	initial := f.Fingerprint()

	f.SetIdentifiers([]string{"CVE-2008-5161"})
	afterIDs := f.Fingerprint()
	assert.NotEqual(t, initial, afterIDs)

	// Raw output is excluded from the digest.
	raw := "ssh banner dump"
	f.SetRawOutput(&raw)
	assert.Equal(t, afterIDs, f.Fingerprint())
}

// TestFinding_SameContentSameFingerprint verifies two independently built
// findings with equal content collapse to one digest.
func TestFinding_SameContentSameFingerprint(t *testing.T) {
	companyID := shared.NewID()
	uploaded := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	build := func(ids []string) *Finding {
		f, err := NewFinding(companyID, "192.168.1.10", "TLS 1.0 enabled", RiskLow, uploaded)
		require.NoError(t, err)
		f.SetIdentifiers(ids)
		f.SetTexts("desc", "syn", "disable TLS 1.0")
		return f
	}

	a := build([]string{"CVE-2011-3389", "CVE-2014-3566"})
	b := build([]string{"CVE-2014-3566", "CVE-2011-3389"})

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

// TestNewFinding_Validation covers the required-field checks.
func TestNewFinding_Validation(t *testing.T) {
	companyID := shared.NewID()
	uploaded := time.Now()

	_, err := NewFinding(shared.ID{}, "10.0.0.5", "title", RiskHigh, uploaded)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewFinding(companyID, "", "title", RiskHigh, uploaded)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewFinding(companyID, "10.0.0.5", "", RiskHigh, uploaded)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewFinding(companyID, "10.0.0.5", "title", RiskLevel("bogus"), uploaded)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// TestParseRiskLevel covers case folding and rejection.
func TestParseRiskLevel(t *testing.T) {
	r, err := ParseRiskLevel(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, r)
	assert.True(t, r.Tracked())

	r, err = ParseRiskLevel("NONE")
	require.NoError(t, err)
	assert.Equal(t, RiskNone, r)
	assert.False(t, r.Tracked())

	_, err = ParseRiskLevel("informational")
	assert.Error(t, err)
}
