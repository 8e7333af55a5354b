// Package compliance implements ComplianceEngine (spec.md §4.7): evaluates
// a declarative TagPolicy against the enriched inventory, producing a
// per-resource verdict and a deterministic summary. Grounded on the
// teacher's rule-evaluator shape (plain functions over data, no reflection),
// generalized from a single hard-coded check into a policy-driven walk.
package compliance

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/habhabhabs/inventag-go/internal/model"
)

// Evaluate applies policy to every resource in resources, returning the
// per-resource verdicts (merged in place, same order as input) and the
// run's ComplianceSummary.
func Evaluate(resources []model.Resource, policy model.TagPolicy) ([]model.Resource, model.ComplianceSummary) {
	out := make([]model.Resource, len(resources))
	summary := model.ComplianceSummary{ExemptionReasons: map[string]int{}}
	patternCache := &patternCompiler{cache: map[string]*regexp.Regexp{}}

	for i, r := range resources {
		r := r
		summary.Total++

		if reason, matched := matchExemption(r, policy.Exemptions); matched {
			r.ComplianceStatus = model.ComplianceExempt
			r.MissingRequiredTags = nil
			r.InvalidTagValues = nil
			summary.Exempt++
			summary.ExemptionReasons[reason]++
			out[i] = r
			continue
		}

		if len(r.Tags) == 0 {
			r.ComplianceStatus = model.ComplianceUntagged
			summary.Untagged++
			out[i] = r
			continue
		}

		required := requiredTagsFor(r, policy)
		missing, invalid := checkTags(r.Tags, required, patternCache)
		r.MissingRequiredTags = missing
		r.InvalidTagValues = invalid

		if len(missing) == 0 && len(invalid) == 0 {
			r.ComplianceStatus = model.ComplianceCompliant
			summary.Compliant++
		} else {
			r.ComplianceStatus = model.ComplianceNonCompliant
			summary.NonCompliant++
		}
		out[i] = r
	}

	denom := summary.Total - summary.Exempt
	if denom > 0 {
		summary.PercentageKnown = true
		summary.Percentage = roundTo1(100 * float64(summary.Compliant) / float64(denom))
	}
	return out, summary
}

// requiredTagsFor merges the global required-tag list with any
// service_specific[service][type].additional_required_tags entries.
func requiredTagsFor(r model.Resource, policy model.TagPolicy) []model.RequiredTag {
	required := append([]model.RequiredTag{}, policy.RequiredTags...)
	if byType, ok := policy.ServiceSpecific[r.Service]; ok {
		if rule, ok := byType[r.Type]; ok {
			required = append(required, rule.AdditionalRequiredTags...)
		}
	}
	return required
}

func checkTags(tags map[string]string, required []model.RequiredTag, patterns *patternCompiler) (missing []string, invalid map[string]string) {
	invalid = map[string]string{}
	for _, rt := range required {
		value, present := tags[rt.Key]
		if !present {
			missing = append(missing, rt.Key)
			continue
		}
		if len(rt.AllowedValues) > 0 && !contains(rt.AllowedValues, value) {
			invalid[rt.Key] = fmt.Sprintf("value %q not in allowed_values %v", value, rt.AllowedValues)
			continue
		}
		if len(rt.RequiredValues) > 0 && !contains(rt.RequiredValues, value) {
			invalid[rt.Key] = fmt.Sprintf("value %q not in required_values %v", value, rt.RequiredValues)
			continue
		}
		if rt.Pattern != "" {
			re, err := patterns.compile(rt.Pattern)
			if err != nil {
				invalid[rt.Key] = fmt.Sprintf("pattern %q failed to compile: %v", rt.Pattern, err)
				continue
			}
			if !re.MatchString(value) {
				invalid[rt.Key] = fmt.Sprintf("value %q does not match pattern %q", value, rt.Pattern)
			}
		}
	}
	sort.Strings(missing)
	if len(invalid) == 0 {
		invalid = nil
	}
	return missing, invalid
}

// matchExemption returns the first matching exemption's reason, per
// spec.md §4.7 step 1: every set criterion on an Exemption must match for
// it to apply; an unset criterion imposes no constraint.
func matchExemption(r model.Resource, exemptions []model.Exemption) (reason string, matched bool) {
	for _, ex := range exemptions {
		if ex.Service != "" && ex.Service != r.Service {
			continue
		}
		if ex.Type != "" && ex.Type != r.Type {
			continue
		}
		if ex.NamePattern != "" {
			re, err := regexp.Compile(ex.NamePattern)
			if err != nil || !re.MatchString(r.Name) {
				continue
			}
		}
		if len(ex.ResourceIDs) > 0 && !contains(ex.ResourceIDs, r.ID) {
			continue
		}
		return ex.Reason, true
	}
	return "", false
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func roundTo1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}

// patternCompiler caches compiled regexes across resources within one
// Evaluate call, since the same required-tag pattern is re-checked per
// resource; safe for concurrent use even though Evaluate itself is
// single-threaded today.
type patternCompiler struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

func (p *patternCompiler) compile(pattern string) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if re, ok := p.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p.cache[pattern] = re
	return re, nil
}
