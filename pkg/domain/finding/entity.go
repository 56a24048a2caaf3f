package finding

import (
	"fmt"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// Finding is a single deduplicated vulnerability observation on one asset.
// A Finding is created on first observation of its fingerprint for a company
// and is logically immutable thereafter; per-period state lives in
// PeriodMembership records.
type Finding struct {
	id             shared.ID
	companyID      shared.ID
	assetAddress   string
	assetOS        *string
	port           *int
	protocol       *string
	title          string
	identifiers    []string
	description    string
	synopsis       string
	recommendation string
	riskLevel      RiskLevel
	score          *float64
	references     []string
	rawOutput      *string
	uploadedAt     time.Time
	fingerprint    string
	createdAt      time.Time
}

// NewFinding creates a Finding and computes its content fingerprint.
func NewFinding(
	companyID shared.ID,
	assetAddress string,
	title string,
	riskLevel RiskLevel,
	uploadedAt time.Time,
) (*Finding, error) {
	if companyID.IsZero() {
		return nil, fmt.Errorf("%w: company ID is required", shared.ErrValidation)
	}
	if assetAddress == "" {
		return nil, fmt.Errorf("%w: asset address is required", shared.ErrValidation)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if !riskLevel.IsValid() {
		return nil, fmt.Errorf("%w: invalid risk level %q", shared.ErrValidation, riskLevel)
	}

	f := &Finding{
		id:           shared.NewID(),
		companyID:    companyID,
		assetAddress: assetAddress,
		title:        title,
		riskLevel:    riskLevel,
		identifiers:  []string{},
		references:   []string{},
		uploadedAt:   uploadedAt.UTC(),
		createdAt:    time.Now().UTC(),
	}
	f.fingerprint = f.computeFingerprint()
	return f, nil
}

// Reconstitute recreates a Finding from persistence. The stored fingerprint
// is trusted as-is; it is never recomputed on load.
func Reconstitute(
	id shared.ID,
	companyID shared.ID,
	assetAddress string,
	assetOS *string,
	port *int,
	protocol *string,
	title string,
	identifiers []string,
	description string,
	synopsis string,
	recommendation string,
	riskLevel RiskLevel,
	score *float64,
	references []string,
	rawOutput *string,
	uploadedAt time.Time,
	fingerprint string,
	createdAt time.Time,
) *Finding {
	if identifiers == nil {
		identifiers = []string{}
	}
	if references == nil {
		references = []string{}
	}
	return &Finding{
		id:             id,
		companyID:      companyID,
		assetAddress:   assetAddress,
		assetOS:        assetOS,
		port:           port,
		protocol:       protocol,
		title:          title,
		identifiers:    identifiers,
		description:    description,
		synopsis:       synopsis,
		recommendation: recommendation,
		riskLevel:      riskLevel,
		score:          score,
		references:     references,
		rawOutput:      rawOutput,
		uploadedAt:     uploadedAt,
		fingerprint:    fingerprint,
		createdAt:      createdAt,
	}
}

// computeFingerprint hashes the identifying field set.
func (f *Finding) computeFingerprint() string {
	in := FingerprintInput{
		CompanyID:      f.companyID.String(),
		AssetAddress:   f.assetAddress,
		Port:           f.port,
		Title:          f.title,
		Identifiers:    f.identifiers,
		Description:    f.description,
		Synopsis:       f.synopsis,
		Recommendation: f.recommendation,
		RiskLevel:      f.riskLevel.String(),
		Score:          f.score,
		References:     f.references,
	}
	if f.assetOS != nil {
		in.AssetOS = *f.assetOS
	}
	if f.protocol != nil {
		in.Protocol = *f.protocol
	}
	return Fingerprint(in)
}

// SetNetwork sets the network location fields. Only valid before the
// finding is persisted, since it changes the fingerprint.
func (f *Finding) SetNetwork(port *int, protocol *string) {
	f.port = port
	f.protocol = protocol
	f.fingerprint = f.computeFingerprint()
}

// SetAssetOS sets the operating system label of the asset.
func (f *Finding) SetAssetOS(os *string) {
	f.assetOS = os
	f.fingerprint = f.computeFingerprint()
}

// SetIdentifiers sets the external vulnerability identifiers (CVE IDs etc.).
func (f *Finding) SetIdentifiers(ids []string) {
	if ids == nil {
		ids = []string{}
	}
	f.identifiers = ids
	f.fingerprint = f.computeFingerprint()
}

// SetTexts sets the free-text description, synopsis and recommendation fields.
func (f *Finding) SetTexts(description, synopsis, recommendation string) {
	f.description = description
	f.synopsis = synopsis
	f.recommendation = recommendation
	f.fingerprint = f.computeFingerprint()
}

// SetScore sets the numeric severity score.
func (f *Finding) SetScore(score *float64) {
	f.score = score
	f.fingerprint = f.computeFingerprint()
}

// SetReferences sets the reference URL list.
func (f *Finding) SetReferences(refs []string) {
	if refs == nil {
		refs = []string{}
	}
	f.references = refs
	f.fingerprint = f.computeFingerprint()
}

// SetRawOutput attaches the raw scanner output. Raw output does not
// participate in the fingerprint.
func (f *Finding) SetRawOutput(raw *string) {
	f.rawOutput = raw
}

// ID returns the finding ID.
func (f *Finding) ID() shared.ID { return f.id }

// CompanyID returns the owning company ID.
func (f *Finding) CompanyID() shared.ID { return f.companyID }

// AssetAddress returns the affected asset address.
func (f *Finding) AssetAddress() string { return f.assetAddress }

// AssetOS returns the asset operating system label, if known.
func (f *Finding) AssetOS() *string { return f.assetOS }

// Port returns the affected port, if any.
func (f *Finding) Port() *int { return f.port }

// Protocol returns the network protocol, if any.
func (f *Finding) Protocol() *string { return f.protocol }

// Title returns the finding title.
func (f *Finding) Title() string { return f.title }

// Identifiers returns the external vulnerability identifiers.
func (f *Finding) Identifiers() []string { return f.identifiers }

// Description returns the description text.
func (f *Finding) Description() string { return f.description }

// Synopsis returns the synopsis text.
func (f *Finding) Synopsis() string { return f.synopsis }

// Recommendation returns the remediation text.
func (f *Finding) Recommendation() string { return f.recommendation }

// RiskLevel returns the risk tier.
func (f *Finding) RiskLevel() RiskLevel { return f.riskLevel }

// Score returns the numeric severity score, if any.
func (f *Finding) Score() *float64 { return f.score }

// References returns the reference URLs.
func (f *Finding) References() []string { return f.references }

// RawOutput returns the raw scanner output, if retained.
func (f *Finding) RawOutput() *string { return f.rawOutput }

// UploadedAt returns the upload timestamp the finding was first seen with.
func (f *Finding) UploadedAt() time.Time { return f.uploadedAt }

// Fingerprint returns the content fingerprint.
func (f *Finding) Fingerprint() string { return f.fingerprint }

// CreatedAt returns the creation timestamp.
func (f *Finding) CreatedAt() time.Time { return f.createdAt }
