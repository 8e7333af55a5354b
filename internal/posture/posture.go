// Package posture implements SPEC_FULL.md §C.4's two signals: whether AWS
// Config has an active configuration recorder per region, and the count of
// active GuardDuty findings by severity band. Both are read-only,
// account/region-scoped queries folded into PipelineRunner's analysis
// stage alongside NetworkAnalyzer and SecurityAnalyzer, which accept the
// results as plain data rather than querying for themselves.
package posture

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// ConfigRecorderActive reports whether region has at least one recording
// AWS Config configuration recorder.
func ConfigRecorderActive(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients) (bool, error) {
	gate.RegisterAllowed("ConfigService", "DescribeConfigurationRecorderStatus")
	var active bool
	err := gate.Guard(ctx, "ConfigService", "DescribeConfigurationRecorderStatus", func(ctx context.Context) error {
		out, callErr := rc.ConfigService.DescribeConfigurationRecorderStatus(ctx, &configservice.DescribeConfigurationRecorderStatusInput{})
		if callErr != nil {
			return callErr
		}
		for _, status := range out.ConfigurationRecordersStatus {
			if aws.ToBool(status.Recording) {
				active = true
				return nil
			}
		}
		return nil
	})
	return active, err
}

// severityBand buckets GuardDuty's 0.0-8.9 numeric severity into the three
// bands GuardDuty's own console uses: low [0,4), medium [4,7), high [7,9).
func severityBand(sev float64) string {
	switch {
	case sev >= 7:
		return "HIGH"
	case sev >= 4:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// maxFindingsPerDetector bounds the total findings fetched per detector
// (SPEC_FULL.md §C.4: "capped at 50 findings per detector to bound
// cost") — this is a total-retrieval cap, distinct from GetFindings' own
// 50-id-per-call limit (see chunkStrings).
const maxFindingsPerDetector = 50

// FindingsBySeverity counts active GuardDuty findings in region by severity
// band, across every detector in the region (ordinarily there is at most
// one detector per region/account), fetching at most
// maxFindingsPerDetector findings per detector.
func FindingsBySeverity(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients) (map[string]int, error) {
	gate.RegisterAllowed("GuardDuty", "ListDetectors")
	gate.RegisterAllowed("GuardDuty", "ListFindings")
	gate.RegisterAllowed("GuardDuty", "GetFindings")

	counts := map[string]int{}
	var detectorIDs []string
	err := gate.Guard(ctx, "GuardDuty", "ListDetectors", func(ctx context.Context) error {
		paginator := guardduty.NewListDetectorsPaginator(rc.GuardDuty, &guardduty.ListDetectorsInput{})
		for paginator.HasMorePages() {
			page, callErr := paginator.NextPage(ctx)
			if callErr != nil {
				return callErr
			}
			detectorIDs = append(detectorIDs, page.DetectorIds...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, detectorID := range detectorIDs {
		var findingIDs []string
		err := gate.Guard(ctx, "GuardDuty", "ListFindings", func(ctx context.Context) error {
			paginator := guardduty.NewListFindingsPaginator(rc.GuardDuty, &guardduty.ListFindingsInput{DetectorId: aws.String(detectorID)})
			for paginator.HasMorePages() && len(findingIDs) < maxFindingsPerDetector {
				page, callErr := paginator.NextPage(ctx)
				if callErr != nil {
					return callErr
				}
				findingIDs = append(findingIDs, page.FindingIds...)
			}
			findingIDs = capFindingIDs(findingIDs, maxFindingsPerDetector)
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, batch := range chunkStrings(findingIDs, 50) {
			err = gate.Guard(ctx, "GuardDuty", "GetFindings", func(ctx context.Context) error {
				out, callErr := rc.GuardDuty.GetFindings(ctx, &guardduty.GetFindingsInput{
					DetectorId: aws.String(detectorID),
					FindingIds: batch,
				})
				if callErr != nil {
					return callErr
				}
				for _, f := range out.Findings {
					counts[severityBand(aws.ToFloat64(f.Severity))]++
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return counts, nil
}

// capFindingIDs truncates ids to at most max entries, bounding the total
// GuardDuty findings fetched per detector regardless of how many pages
// ListFindings paginated through before the cap was noticed.
func capFindingIDs(ids []string, max int) []string {
	if len(ids) > max {
		return ids[:max]
	}
	return ids
}

// chunkStrings splits ids into batches of at most size, matching
// GetFindings' 50-id-per-call limit.
func chunkStrings(ids []string, size int) [][]string {
	var batches [][]string
	for len(ids) > 0 {
		if len(ids) <= size {
			return append(batches, ids)
		}
		batches = append(batches, ids[:size])
		ids = ids[size:]
	}
	return batches
}
