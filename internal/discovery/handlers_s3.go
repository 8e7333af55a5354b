package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// S3Handler discovers S3 buckets. ListBuckets is a global, partition-wide
// call (grounded on the teacher's getS3Info, internal/aws/client.go) so
// S3Handler reports Global()==true; GetBucketLocation resolves each
// bucket's actual region for stamping onto the Resource.
type S3Handler struct{}

func (S3Handler) Service() string { return "S3" }
func (S3Handler) Global() bool     { return true }
func (S3Handler) ReadOnlyOperations() []string {
	return []string{"ListBuckets", "GetBucketLocation", "GetBucketTagging"}
}

func (h S3Handler) Discover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error) {
	gate.RegisterAllowed("S3", h.ReadOnlyOperations()...)

	var buckets []model.Resource
	err := gate.Guard(ctx, "S3", "ListBuckets", func(ctx context.Context) error {
		out, callErr := rc.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
		if callErr != nil {
			return &model.ErrAwsAPI{Service: "S3", Operation: "ListBuckets", Cause: callErr}
		}
		for _, b := range out.Buckets {
			name := aws.ToString(b.Name)
			res := model.Resource{
				ID:            name,
				ARN:           "arn:aws:s3:::" + name,
				Service:       "S3",
				Type:          "Bucket",
				Region:        region,
				AccountID:     accountID,
				Name:          name,
				Tags:          map[string]string{},
				CreatedAt:     b.CreationDate,
				DiscoveredVia: "ServiceAPI:ListBuckets",
				Priority:      model.PriorityPrimary,
			}

			bucketRegion, locErr := h.resolveRegion(ctx, gate, rc, name)
			if locErr == nil && bucketRegion != "" {
				res.Region = bucketRegion
			}

			tags, tagErr := h.resolveTags(ctx, gate, rc, name)
			if tagErr == nil {
				res.Tags = tags
			} else {
				res.EnrichmentErrors = append(res.EnrichmentErrors, tagErr.Error())
			}

			buckets = append(buckets, res)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("S3 ListBuckets: %w", err)
	}
	return buckets, nil
}

func (S3Handler) resolveRegion(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, bucket string) (string, error) {
	var region string
	err := gate.Guard(ctx, "S3", "GetBucketLocation", func(ctx context.Context) error {
		out, callErr := rc.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
		if callErr != nil {
			return &model.ErrAwsAPI{Service: "S3", Operation: "GetBucketLocation", Cause: callErr}
		}
		region = string(out.LocationConstraint)
		if region == "" {
			region = "us-east-1"
		}
		return nil
	})
	return region, err
}

func (S3Handler) resolveTags(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, bucket string) (map[string]string, error) {
	tags := map[string]string{}
	err := gate.Guard(ctx, "S3", "GetBucketTagging", func(ctx context.Context) error {
		out, callErr := rc.S3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
		if callErr != nil {
			var apiErr smithy.APIError
			if errors.As(callErr, &apiErr) && apiErr.ErrorCode() == "NoSuchTagSet" {
				// Untagged bucket: not an error worth recording; an empty
				// tag set is the correct outcome.
				return nil
			}
			return &model.ErrAwsAPI{Service: "S3", Operation: "GetBucketTagging", Cause: callErr}
		}
		for _, t := range out.TagSet {
			tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
		return nil
	})
	return tags, err
}
