// Package awsctx implements AccountContext (spec §4.2): resolving account
// identity and per-account credentials, and listing the regions a run
// should touch.
//
// Credential resolution builds on the teacher's NewClientWithProfile
// (internal/aws/client.go) config.LoadDefaultConfig chain, but selects
// exactly one source per descriptor: a named profile, static keys, or an
// STS-assumed role layered on the default provider chain. The
// STS identity call and retry/backoff shape is grounded on the teleport
// aws_sync.go fetcher's getAccountId/getAWSOptions.
package awsctx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// CredentialSource mirrors the account descriptor's credential_source
// enum from spec.md §6.
type CredentialSource string

const (
	CredentialStatic      CredentialSource = "static"
	CredentialProfile     CredentialSource = "profile"
	CredentialAssumeRole  CredentialSource = "assume_role"
)

// Descriptor is the external account descriptor input (spec.md §6).
type Descriptor struct {
	AccountID       string
	CredentialSource CredentialSource
	Profile         string
	AssumeRoleARN   string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	RegionFilter    []string
	ServiceFilter   []string
	TagFilter       map[string]string
}

// IdentityType is the caller-identity kind resolved from STS.
type IdentityType string

const (
	IdentityUser          IdentityType = "user"
	IdentityAssumedRole   IdentityType = "assumed-role"
	IdentityFederatedUser IdentityType = "federated-user"
	IdentityUnknown       IdentityType = "unknown"
)

// AccountContext is the resolved identity plus a ready-to-use aws.Config
// for the account a pipeline run is operating against.
type AccountContext struct {
	AccountID    string
	IdentityARN  string
	IdentityType IdentityType
	Regions      []string
	AWSConfig    aws.Config
}

const maxRetries = 5

// Resolve builds an AccountContext: loads an aws.Config for the descriptor's
// credential source, calls STS GetCallerIdentity (guarded by gate, since it
// is the only outbound call Resolve makes), and filters the
// partition's region list down to d.RegionFilter when given.
func Resolve(ctx context.Context, d Descriptor, gate *safety.Gate, allRegions []string) (*AccountContext, error) {
	cfg, err := loadConfig(ctx, d)
	if err != nil {
		return nil, &model.ErrConfig{Message: fmt.Sprintf("account context: %v", err)}
	}

	gate.RegisterAllowed("STS", "GetCallerIdentity")
	client := sts.NewFromConfig(cfg)

	var identity *sts.GetCallerIdentityOutput
	err = gate.Guard(ctx, "STS", "GetCallerIdentity", func(ctx context.Context) error {
		out, callErr := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if callErr != nil {
			return &model.ErrAwsAPI{Service: "STS", Operation: "GetCallerIdentity", Cause: callErr}
		}
		identity = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving account identity: %w", err)
	}

	accountID := aws.ToString(identity.Account)
	arnStr := aws.ToString(identity.Arn)

	regions := allRegions
	if len(d.RegionFilter) > 0 {
		regions = filterRegions(allRegions, d.RegionFilter)
	}

	return &AccountContext{
		AccountID:    accountID,
		IdentityARN:  arnStr,
		IdentityType: classifyIdentity(arnStr),
		Regions:      regions,
		AWSConfig:    cfg,
	}, nil
}

// ListRegions resolves the partition's enabled region list via EC2
// DescribeRegions — the account-scoped, SDK-native source of "partition
// metadata" spec.md §4.2 calls for, rather than a hardcoded list.
func ListRegions(ctx context.Context, cfg aws.Config, gate *safety.Gate) ([]string, error) {
	gate.RegisterAllowed("EC2", "DescribeRegions")
	client := ec2.NewFromConfig(cfg)

	var regions []string
	err := gate.Guard(ctx, "EC2", "DescribeRegions", func(ctx context.Context) error {
		out, callErr := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
			AllRegions: aws.Bool(false),
		})
		if callErr != nil {
			return &model.ErrAwsAPI{Service: "EC2", Operation: "DescribeRegions", Cause: callErr}
		}
		for _, r := range out.Regions {
			regions = append(regions, aws.ToString(r.RegionName))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}
	return regions, nil
}

func loadConfig(ctx context.Context, d Descriptor) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxRetries + 1
				o.Backoff = retry.NewExponentialJitterBackoff(3 * time.Second)
			})
		}),
	}

	switch d.CredentialSource {
	case CredentialProfile:
		opts = append(opts, config.WithSharedConfigProfile(d.Profile))
	case CredentialStatic:
		opts = append(opts, config.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     d.AccessKeyID,
					SecretAccessKey: d.SecretAccessKey,
					SessionToken:    d.SessionToken,
				}, nil
			}),
		))
	case CredentialAssumeRole, "":
		// assume_role is layered on top of the default chain below, once we
		// have a base config to derive an STS client from.
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}

	if d.CredentialSource == CredentialAssumeRole && d.AssumeRoleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		provider := stscreds.NewAssumeRoleProvider(stsClient, d.AssumeRoleARN)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}

func classifyIdentity(arnStr string) IdentityType {
	switch {
	case strings.Contains(arnStr, ":assumed-role/"):
		return IdentityAssumedRole
	case strings.Contains(arnStr, ":federated-user/"):
		return IdentityFederatedUser
	case strings.Contains(arnStr, ":user/"):
		return IdentityUser
	default:
		return IdentityUnknown
	}
}

func filterRegions(all, filter []string) []string {
	allowed := make(map[string]bool, len(filter))
	for _, r := range filter {
		allowed[r] = true
	}
	out := make([]string, 0, len(filter))
	for _, r := range all {
		if allowed[r] {
			out = append(out, r)
		}
	}
	return out
}
