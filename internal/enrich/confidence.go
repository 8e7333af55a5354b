package enrich

import "github.com/habhabhabs/inventag-go/internal/model"

// weights mirrors spec.md §4.4's confidence-scoring table exactly.
var weights = struct {
	id, name, arn, correctType, tags, status, createdAt, vpcInfo, sgInfo, accountID float64
}{
	id: 2.5, name: 2.0, arn: 1.5, correctType: 1.5, tags: 1.0,
	status: 0.5, createdAt: 0.5, vpcInfo: 0.5, sgInfo: 0.5, accountID: 0.5,
}

var maxWeight = weights.id + weights.name + weights.arn + weights.correctType +
	weights.tags + weights.status + weights.createdAt + weights.vpcInfo +
	weights.sgInfo + weights.accountID

// Confidence computes the [0,1] quality score spec.md §4.4 defines: the
// sum of weighted signals present on r, normalized by the maximum
// attainable weight.
func Confidence(r model.Resource) float64 {
	var sum float64
	if r.ID != "" {
		sum += weights.id
	}
	if r.Name != "" {
		sum += weights.name
	}
	if r.ARN != "" {
		sum += weights.arn
	}
	if r.Type != "" {
		sum += weights.correctType
	}
	if len(r.Tags) > 0 {
		sum += weights.tags
	}
	if r.State != "" {
		sum += weights.status
	}
	if r.CreatedAt != nil {
		sum += weights.createdAt
	}
	if r.VPCID != "" {
		sum += weights.vpcInfo
	}
	if len(r.SecurityGroupIDs) > 0 {
		sum += weights.sgInfo
	}
	if r.AccountID != "" {
		sum += weights.accountID
	}
	return sum / maxWeight
}
