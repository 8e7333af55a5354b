package discovery

import (
	"sort"

	"github.com/habhabhabs/inventag-go/internal/model"
)

// FallbackDisplay controls which fallback-origin resources survive into
// the final inventory (spec.md §6's fallback-display contract).
type FallbackDisplay string

const (
	FallbackAuto   FallbackDisplay = "auto"
	FallbackAlways FallbackDisplay = "always"
	FallbackNever  FallbackDisplay = "never"
)

// PrimarySuccess records, per service, whether the primary tier produced
// at least one resource (spec.md §4.3 rule 3), which drives FallbackAuto.
type PrimarySuccess map[string]bool

// Merge combines primary and fallback results per spec.md §4.3's merge
// rules: index primary by Key(); for each fallback resource matching an
// existing key, merge tags only (primary wins on conflict); otherwise
// insert as priority=fallback, subject to the display policy. The result
// is returned in the stable (service, region, arn-or-id) order spec.md
// §4.3/§5 require.
func Merge(primary, fallback []model.Resource, display FallbackDisplay, success PrimarySuccess) []model.Resource {
	index := make(map[string]int, len(primary))
	merged := make([]model.Resource, len(primary))
	copy(merged, primary)
	for i := range merged {
		index[merged[i].Key()] = i
	}

	for _, fb := range fallback {
		key := fb.Key()
		if i, ok := index[key]; ok {
			merged[i] = mergeTags(merged[i], fb)
			continue
		}
		if shouldIncludeFallback(fb.Service, display, success) {
			merged = append(merged, fb)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return orderingKey(a) < orderingKey(b)
	})
	return merged
}

func orderingKey(r model.Resource) string {
	if r.ARN != "" {
		return r.ARN
	}
	return r.ID
}

func shouldIncludeFallback(service string, display FallbackDisplay, success PrimarySuccess) bool {
	switch display {
	case FallbackNever:
		return false
	case FallbackAlways:
		return true
	default: // FallbackAuto
		return !success[service]
	}
}

// mergeTags implements rule 2: primary's own fields are untouched except
// Tags, which is the union of both with primary's value taking precedence
// on duplicate keys.
func mergeTags(primary, fallback model.Resource) model.Resource {
	tags := primary.CloneTags()
	for k, v := range fallback.Tags {
		if _, exists := tags[k]; !exists {
			tags[k] = v
		}
	}
	primary.Tags = tags
	return primary
}
