package model

// ChangeType classifies a modified field per spec.md §4.9, in priority
// order when more than one category could apply: security, network, tags,
// config.
type ChangeType string

const (
	ChangeSecurity ChangeType = "security"
	ChangeNetwork  ChangeType = "network"
	ChangeTags     ChangeType = "tags"
	ChangeConfig   ChangeType = "config"
)

// FieldChange is a single old/new pair recorded on a ModifiedResource.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ModifiedResource is one entry of Delta.Modified.
type ModifiedResource struct {
	ARN        string                 `json:"arn"`
	Changes    map[string]FieldChange `json:"changes"`
	ChangeType ChangeType             `json:"change_type"`
}

// ComplianceChange records a compliance_status transition between snapshots.
type ComplianceChange struct {
	ARN string           `json:"arn"`
	Old ComplianceStatus `json:"old"`
	New ComplianceStatus `json:"new"`
}

// DeltaSummary counts modifications per change category.
type DeltaSummary struct {
	AddedCount    int            `json:"added_count"`
	RemovedCount  int            `json:"removed_count"`
	ModifiedCount int            `json:"modified_count"`
	ByChangeType  map[string]int `json:"by_change_type"`
}

// Delta is the result of diffing two Snapshots by ARN.
type Delta struct {
	Added             []string           `json:"added"`
	Removed           []string           `json:"removed"`
	Modified          []ModifiedResource `json:"modified"`
	ComplianceChanges []ComplianceChange `json:"compliance_changes,omitempty"`
	Summary           DeltaSummary       `json:"summary"`
}
