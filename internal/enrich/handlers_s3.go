package enrich

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// S3Handler attaches the S3 attribute contract from spec.md §4.4:
// encryption, versioning_status, public_access_block, lifecycle_rules,
// object_lock, location.
type S3Handler struct{}

func (S3Handler) Handles(service, resourceType string) bool {
	return service == "S3" && resourceType == "Bucket"
}

func (S3Handler) ReadOnlyOps() []string {
	return []string{"GetBucketEncryption", "GetBucketVersioning", "GetPublicAccessBlock", "GetBucketLifecycleConfiguration", "GetObjectLockConfiguration"}
}

func (h S3Handler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	attrs := map[string]any{}
	bucket := aws.String(r.ID)

	if err := gate.Guard(ctx, "S3", "GetBucketEncryption", func(ctx context.Context) error {
		out, callErr := rc.S3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: bucket})
		if isNotFound(callErr, "ServerSideEncryptionConfigurationNotFoundError") {
			attrs["encryption"] = nil
			r.Encrypted = model.TristateFalse
			return nil
		}
		if callErr != nil {
			return callErr
		}
		attrs["encryption"] = out.ServerSideEncryptionConfiguration
		r.Encrypted = model.TristateTrue
		return nil
	}); err != nil {
		r = recordEnrichErr(r, "S3", err)
	}

	if err := gate.Guard(ctx, "S3", "GetBucketVersioning", func(ctx context.Context) error {
		out, callErr := rc.S3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: bucket})
		if callErr != nil {
			return callErr
		}
		status := string(out.Status)
		if status == "" {
			status = "Disabled"
		}
		attrs["versioning_status"] = status
		return nil
	}); err != nil {
		r = recordEnrichErr(r, "S3", err)
	}

	if err := gate.Guard(ctx, "S3", "GetPublicAccessBlock", func(ctx context.Context) error {
		out, callErr := rc.S3.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: bucket})
		if isNotFound(callErr, "NoSuchPublicAccessBlockConfiguration") {
			attrs["public_access_block"] = nil
			r.PublicAccess = true
			return nil
		}
		if callErr != nil {
			return callErr
		}
		attrs["public_access_block"] = out.PublicAccessBlockConfiguration
		r.PublicAccess = !fullyBlocked(out.PublicAccessBlockConfiguration)
		return nil
	}); err != nil {
		r = recordEnrichErr(r, "S3", err)
	}

	if err := gate.Guard(ctx, "S3", "GetBucketLifecycleConfiguration", func(ctx context.Context) error {
		out, callErr := rc.S3.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{Bucket: bucket})
		if isNotFound(callErr, "NoSuchLifecycleConfiguration") {
			attrs["lifecycle_rules"] = []s3types.LifecycleRule{}
			return nil
		}
		if callErr != nil {
			return callErr
		}
		attrs["lifecycle_rules"] = out.Rules
		return nil
	}); err != nil {
		r = recordEnrichErr(r, "S3", err)
	}

	if err := gate.Guard(ctx, "S3", "GetObjectLockConfiguration", func(ctx context.Context) error {
		out, callErr := rc.S3.GetObjectLockConfiguration(ctx, &s3.GetObjectLockConfigurationInput{Bucket: bucket})
		if isNotFound(callErr, "ObjectLockConfigurationNotFoundError") {
			attrs["object_lock"] = false
			return nil
		}
		if callErr != nil {
			return callErr
		}
		attrs["object_lock"] = out.ObjectLockConfiguration
		return nil
	}); err != nil {
		r = recordEnrichErr(r, "S3", err)
	}

	attrs["location"] = r.Region
	r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, attrs)
	return r
}

func fullyBlocked(cfg *s3types.PublicAccessBlockConfiguration) bool {
	if cfg == nil {
		return false
	}
	return aws.ToBool(cfg.BlockPublicAcls) && aws.ToBool(cfg.BlockPublicPolicy) &&
		aws.ToBool(cfg.IgnorePublicAcls) && aws.ToBool(cfg.RestrictPublicBuckets)
}

func isNotFound(err error, code string) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}

func recordEnrichErr(r model.Resource, service string, err error) model.Resource {
	e := &model.ErrEnrichment{ARN: r.ARN, Service: service, Cause: err}
	r.EnrichmentErrors = append(r.EnrichmentErrors, e.Error())
	return r
}
