// Package model holds the data types shared by every InvenTag component:
// the Resource entity, network/security types, tag policy, snapshot and
// delta shapes, and the error taxonomy.
package model

import "time"

// Priority records which discovery tier produced a Resource.
type Priority string

const (
	PriorityPrimary  Priority = "primary"
	PriorityFallback Priority = "fallback"
)

// Tristate models encrypted/unknown fields that the SDK doesn't always report.
type Tristate string

const (
	TristateTrue    Tristate = "true"
	TristateFalse   Tristate = "false"
	TristateUnknown Tristate = "unknown"
)

// ComplianceStatus is the verdict ComplianceEngine assigns a Resource.
type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
	ComplianceUntagged     ComplianceStatus = "untagged"
	ComplianceExempt       ComplianceStatus = "exempt"
)

// Resource is the central entity: one AWS resource as seen by a single run.
type Resource struct {
	// Identity
	ARN       string `json:"arn,omitempty"`
	ID        string `json:"id"`
	Service   string `json:"service"`
	Type      string `json:"type"`
	Region    string `json:"region"`
	AccountID string `json:"account_id"`

	// Metadata
	Name          string            `json:"name,omitempty"`
	Tags          map[string]string `json:"tags"`
	CreatedAt     *time.Time        `json:"created_at,omitempty"`
	State         string            `json:"state,omitempty"`
	DiscoveredVia string            `json:"discovered_via"`
	Priority      Priority          `json:"priority"`

	// Enrichment
	ServiceAttributes map[string]any `json:"service_attributes,omitempty"`
	VPCID             string         `json:"vpc_id,omitempty"`
	SubnetIDs         []string       `json:"subnet_ids,omitempty"`
	SecurityGroupIDs  []string       `json:"security_group_ids,omitempty"`
	PublicAccess      bool           `json:"public_access"`
	Encrypted         Tristate       `json:"encrypted,omitempty"`

	// Quality
	Confidence       float64  `json:"confidence"`
	EnrichmentErrors []string `json:"enrichment_errors,omitempty"`

	// Compliance
	ComplianceStatus    ComplianceStatus  `json:"compliance_status,omitempty"`
	MissingRequiredTags []string          `json:"missing_required_tags,omitempty"`
	InvalidTagValues    map[string]string `json:"invalid_tag_values,omitempty"`
}

// Key returns the merge/dedup key for a resource: its ARN when present,
// else "service:region:id" per spec.md §4.3 rule 1.
func (r *Resource) Key() string {
	if r.ARN != "" {
		return r.ARN
	}
	return r.Service + ":" + r.Region + ":" + r.ID
}

// CloneTags returns a defensive copy of Tags, never nil.
func (r *Resource) CloneTags() map[string]string {
	out := make(map[string]string, len(r.Tags))
	for k, v := range r.Tags {
		out[k] = v
	}
	return out
}
