// Package costanalysis implements SPEC_FULL.md §C.3's CostAnalyzer
// supplement: threshold flagging only, grounded on the teacher's
// internal/cost/aws_provider.go GetCostAndUsage query shape, rewritten
// against the read-only Cost Explorer boundary this system enforces
// (no forecasting, no optimization recommendations — spec.md's Non-goal
// permits exactly this and nothing more).
package costanalysis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// CostFlag is one service whose trailing-month cost exceeded the
// configured threshold.
type CostFlag struct {
	Service        string  `json:"service"`
	MonthlyCostUSD float64 `json:"monthly_cost_usd"`
	ThresholdUSD   float64 `json:"threshold_usd"`
}

// Analyzer queries Cost Explorer for the account's trailing-month spend by
// service and flags any service over ThresholdUSD.
type Analyzer struct {
	Client       *costexplorer.Client
	ThresholdUSD float64
}

// New builds an Analyzer against client, flagging services whose monthly
// cost exceeds thresholdUSD.
func New(client *costexplorer.Client, thresholdUSD float64) *Analyzer {
	return &Analyzer{Client: client, ThresholdUSD: thresholdUSD}
}

// Analyze queries GetCostAndUsage for the trailing calendar month grouped
// by SERVICE, guarded by gate since it is an outbound AWS call like any
// other, and returns every service whose cost exceeded the threshold.
func (a *Analyzer) Analyze(ctx context.Context, gate *safety.Gate) ([]CostFlag, error) {
	start, end := trailingMonth(time.Now())

	gate.RegisterAllowed("CostExplorer", "GetCostAndUsage")
	var flags []CostFlag
	err := gate.Guard(ctx, "CostExplorer", "GetCostAndUsage", func(ctx context.Context) error {
		out, callErr := a.Client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod:  &cetypes.DateInterval{Start: aws.String(start), End: aws.String(end)},
			Granularity: cetypes.GranularityMonthly,
			Metrics:     []string{"UnblendedCost"},
			GroupBy: []cetypes.GroupDefinition{
				{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
			},
		})
		if callErr != nil {
			return &model.ErrAwsAPI{Service: "CostExplorer", Operation: "GetCostAndUsage", Cause: callErr}
		}
		for _, period := range out.ResultsByTime {
			for _, group := range period.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				amountStr := ""
				if metric, ok := group.Metrics["UnblendedCost"]; ok {
					amountStr = aws.ToString(metric.Amount)
				}
				amount, parseErr := parseAmount(amountStr)
				if parseErr != nil {
					continue
				}
				if amount > a.ThresholdUSD {
					flags = append(flags, CostFlag{
						Service:        group.Keys[0],
						MonthlyCostUSD: amount,
						ThresholdUSD:   a.ThresholdUSD,
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("costanalysis: %w", err)
	}
	return flags, nil
}

func trailingMonth(now time.Time) (start, end string) {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstOfLastMonth := firstOfThisMonth.AddDate(0, -1, 0)
	return firstOfLastMonth.Format("2006-01-02"), firstOfThisMonth.Format("2006-01-02")
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
