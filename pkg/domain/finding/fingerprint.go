package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// FingerprintInput holds the identifying field set of a finding.
// Two findings with equal inputs are the same underlying issue regardless
// of the period they were observed in.
type FingerprintInput struct {
	CompanyID      string   `json:"company_id"`
	AssetAddress   string   `json:"asset_address"`
	AssetOS        string   `json:"asset_os"`
	Port           *int     `json:"port"`
	Protocol       string   `json:"protocol"`
	Title          string   `json:"title"`
	Identifiers    []string `json:"identifiers"`
	Description    string   `json:"description"`
	Synopsis       string   `json:"synopsis"`
	Recommendation string   `json:"recommendation"`
	RiskLevel      string   `json:"risk_level"`
	Score          *float64 `json:"score"`
	References     []string `json:"references"`
}

// Fingerprint computes the stable content hash identifying a finding.
// List fields are sorted before serialization so equivalent findings with
// differently ordered identifier or reference lists collapse to the same
// digest. The digest is a lowercase hex SHA-256 and must remain stable
// across process restarts and re-imports of identical rows.
func Fingerprint(in FingerprintInput) string {
	in.Identifiers = sortedCopy(in.Identifiers)
	in.References = sortedCopy(in.References)

	// Struct field order is fixed, so json.Marshal yields a canonical form.
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
