package model

// VPC is the network-analyzer's view of a discovered VPC.
type VPC struct {
	VPCID                  string   `json:"vpc_id"`
	Name                   string   `json:"name,omitempty"`
	CIDR                   string   `json:"cidr"`
	TotalIPs               int64    `json:"total_ips"`
	AvailableIPs           int64    `json:"available_ips"`
	UtilizationPct         float64  `json:"utilization_pct"`
	Subnets                []Subnet `json:"subnets"`
	AssociatedResourceARNs []string `json:"associated_resource_arns,omitempty"`
}

// Subnet is the network-analyzer's view of a discovered Subnet.
type Subnet struct {
	SubnetID       string  `json:"subnet_id"`
	Name           string  `json:"name,omitempty"`
	CIDR           string  `json:"cidr"`
	AZ             string  `json:"az,omitempty"`
	TotalIPs       int64   `json:"total_ips"`
	AvailableIPs   int64   `json:"available_ips"`
	UtilizationPct float64 `json:"utilization_pct"`
}

// NetworkSummary is the cross-VPC rollup NetworkAnalyzer returns.
type NetworkSummary struct {
	VPCs                []VPC          `json:"vpcs"`
	TotalVPCs           int            `json:"total_vpcs"`
	TotalSubnets        int            `json:"total_subnets"`
	ConfigRecorderByReg map[string]bool `json:"config_recorder_by_region,omitempty"`
}
