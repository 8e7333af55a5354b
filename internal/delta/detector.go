// Package delta implements DeltaDetector (spec.md §4.9): diffs two
// Snapshots by primary key (arn, falling back to Resource.Key() for the
// rare arn-less resource), classifying each modified resource's dominant
// change_type and rolling up compliance-status transitions. Comparisons use
// model.CanonicalJSON so map/slice key order never produces a spurious diff.
package delta

import (
	"reflect"
	"sort"

	"github.com/habhabhabs/inventag-go/internal/model"
)

// serviceAttributeKeys lists the service_attributes keys DeltaDetector
// compares per service, per spec.md §4.9 ("selected service_attributes keys
// per service") — the subset most likely to indicate a security- or
// network-relevant configuration drift rather than cosmetic metadata.
var serviceAttributeKeys = map[string][]string{
	"S3":     {"encryption", "public_access_block", "versioning_status"},
	"RDS":    {"storage_encrypted", "vpc_security_group_ids", "multi_az"},
	"EC2":    {"instance_type", "monitoring"},
	"Lambda": {"vpc_config", "runtime"},
}

// Diff computes the delta from old to new.
func Diff(old, new []model.Resource) (model.Delta, error) {
	oldByKey := indexByKey(old)
	newByKey := indexByKey(new)

	var added, removed []string
	for k := range newByKey {
		if _, ok := oldByKey[k]; !ok {
			added = append(added, k)
		}
	}
	for k := range oldByKey {
		if _, ok := newByKey[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	var modified []model.ModifiedResource
	var complianceChanges []model.ComplianceChange
	var commonKeys []string
	for k := range oldByKey {
		if _, ok := newByKey[k]; ok {
			commonKeys = append(commonKeys, k)
		}
	}
	sort.Strings(commonKeys)

	for _, k := range commonKeys {
		o, n := oldByKey[k], newByKey[k]
		changes, err := fieldChanges(o, n)
		if err != nil {
			return model.Delta{}, err
		}
		if len(changes) > 0 {
			modified = append(modified, model.ModifiedResource{
				ARN:        k,
				Changes:    changes,
				ChangeType: classify(changes),
			})
		}
		if o.ComplianceStatus != n.ComplianceStatus {
			complianceChanges = append(complianceChanges, model.ComplianceChange{ARN: k, Old: o.ComplianceStatus, New: n.ComplianceStatus})
		}
	}

	byType := map[string]int{}
	for _, m := range modified {
		byType[string(m.ChangeType)]++
	}

	return model.Delta{
		Added:             added,
		Removed:           removed,
		Modified:          modified,
		ComplianceChanges: complianceChanges,
		Summary: model.DeltaSummary{
			AddedCount:    len(added),
			RemovedCount:  len(removed),
			ModifiedCount: len(modified),
			ByChangeType:  byType,
		},
	}, nil
}

func indexByKey(resources []model.Resource) map[string]model.Resource {
	out := make(map[string]model.Resource, len(resources))
	for _, r := range resources {
		out[primaryKey(r)] = r
	}
	return out
}

func primaryKey(r model.Resource) string {
	if r.ARN != "" {
		return r.ARN
	}
	return r.Key()
}

// fieldChanges deep-compares the fixed field set spec.md §4.9 names, via
// canonical JSON so key ordering in maps/slices never produces a spurious
// difference.
func fieldChanges(o, n model.Resource) (map[string]model.FieldChange, error) {
	changes := map[string]model.FieldChange{}

	if err := compareField(changes, "tags", o.Tags, n.Tags); err != nil {
		return nil, err
	}
	if o.State != n.State {
		changes["state"] = model.FieldChange{Old: o.State, New: n.State}
	}
	if err := compareField(changes, "security_group_ids", o.SecurityGroupIDs, n.SecurityGroupIDs); err != nil {
		return nil, err
	}
	if o.VPCID != n.VPCID {
		changes["vpc_id"] = model.FieldChange{Old: o.VPCID, New: n.VPCID}
	}
	if err := compareField(changes, "subnet_ids", o.SubnetIDs, n.SubnetIDs); err != nil {
		return nil, err
	}
	if o.Encrypted != n.Encrypted {
		changes["encrypted"] = model.FieldChange{Old: o.Encrypted, New: n.Encrypted}
	}
	if o.PublicAccess != n.PublicAccess {
		changes["public_access"] = model.FieldChange{Old: o.PublicAccess, New: n.PublicAccess}
	}

	for _, key := range serviceAttributeKeys[n.Service] {
		oVal := o.ServiceAttributes[key]
		nVal := n.ServiceAttributes[key]
		if err := compareField(changes, "service_attributes."+key, oVal, nVal); err != nil {
			return nil, err
		}
	}

	return changes, nil
}

func compareField(changes map[string]model.FieldChange, name string, oVal, nVal any) error {
	oCanon, err := model.CanonicalJSON(oVal)
	if err != nil {
		return err
	}
	nCanon, err := model.CanonicalJSON(nVal)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(oCanon, nCanon) {
		changes[name] = model.FieldChange{Old: oVal, New: nVal}
	}
	return nil
}

// classify picks the first matching category in spec.md §4.9's priority
// order: security, network, tags, config.
func classify(changes map[string]model.FieldChange) model.ChangeType {
	if _, ok := changes["security_group_ids"]; ok {
		return model.ChangeSecurity
	}
	if _, ok := changes["public_access"]; ok {
		return model.ChangeSecurity
	}
	if _, ok := changes["encrypted"]; ok {
		return model.ChangeSecurity
	}
	if _, ok := changes["vpc_id"]; ok {
		return model.ChangeNetwork
	}
	if _, ok := changes["subnet_ids"]; ok {
		return model.ChangeNetwork
	}
	if _, ok := changes["tags"]; ok {
		return model.ChangeTags
	}
	return model.ChangeConfig
}
