package discovery

import "regexp"

// managedPatterns are the AWS-managed name patterns for service-linked
// IAM roles (the aws-service-role path and AWSServiceRoleFor names).
// Handlers consult these through IsManagedName and FilterPolicy.
// ShouldExclude; default VPCs and default SGs are recognised by the
// handlers themselves, not by these patterns. Excluded resources are
// dropped from the handler's output; they are not counted, and
// Result.ExcludedCount stays 0.
var managedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^aws-service-role/`),
	regexp.MustCompile(`^AWSServiceRoleFor`),
}

// FilterPolicy controls AWS-managed-resource suppression during discovery,
// mirroring the run configuration's filtering block (spec.md §6).
type FilterPolicy struct {
	ExcludeAWSManaged bool
	IncludeDefaultVPC bool
}

// IsManagedName reports whether name matches a known AWS-managed pattern
// (used for IAM role paths and similar service-linked naming).
func IsManagedName(name string) bool {
	for _, p := range managedPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// ShouldExclude applies the filter policy to one resource's managed-ness
// signal (managed=true means the resource looks AWS-owned, e.g. a default
// VPC or a service-linked role).
func (f FilterPolicy) ShouldExclude(managed, isDefaultVPC bool) bool {
	if isDefaultVPC && !f.IncludeDefaultVPC {
		return true
	}
	if managed && f.ExcludeAWSManaged {
		return true
	}
	return false
}
