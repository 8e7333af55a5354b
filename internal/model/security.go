package model

// RiskLevel classifies how exposed a security-group rule or group is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank gives RiskLevel a total order so SG risk can be computed as
// max(rule risk).
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// MaxRisk returns the higher-ranked of a and b.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}

// Rule is one ingress or egress entry of a SecurityGroup.
type Rule struct {
	Protocol            string    `json:"protocol"`
	PortRange           string    `json:"port_range"`
	SourceOrDestination string    `json:"source_or_destination"`
	Description         string    `json:"description,omitempty"`
	RiskAssessment      RiskLevel `json:"risk_assessment"`
}

// SecurityGroup is the security-analyzer's view of a discovered SG.
type SecurityGroup struct {
	GroupID                 string    `json:"group_id"`
	Name                    string    `json:"name,omitempty"`
	VPCID                   string    `json:"vpc_id,omitempty"`
	Inbound                 []Rule    `json:"inbound"`
	Outbound                []Rule    `json:"outbound"`
	AssociatedResourceARNs  []string  `json:"associated_resource_arns,omitempty"`
	RiskLevel               RiskLevel `json:"risk_level"`
}

// SecuritySummary is the cross-account rollup SecurityAnalyzer returns.
type SecuritySummary struct {
	Groups             []SecurityGroup  `json:"groups"`
	UnusedGroupIDs     []string         `json:"unused_group_ids,omitempty"`
	ReferenceCycles    [][]string       `json:"reference_cycles,omitempty"`
	NACLSummary        []NACL           `json:"nacl_summary,omitempty"`
	GuardDutyBySeverity map[string]int  `json:"guardduty_by_severity,omitempty"`
}

// NACL is a minimal summary of a discovered network ACL.
type NACL struct {
	NetworkACLID string `json:"network_acl_id"`
	VPCID        string `json:"vpc_id,omitempty"`
	EntryCount   int    `json:"entry_count"`
}
