// Package config implements SPEC_FULL.md §A.1: loading RunConfiguration,
// AccountDescriptor and TagPolicy from a single YAML document via viper,
// the way the reference CLI's initConfig reads its own dotfile into bound
// flags — generalized here from flag-binding to a fully typed
// viper.Unmarshal target.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/habhabhabs/inventag-go/internal/awsctx"
	"github.com/habhabhabs/inventag-go/internal/discovery"
	"github.com/habhabhabs/inventag-go/internal/model"
)

// FilterConfig is the filtering block of RunConfiguration (spec.md §6).
type FilterConfig struct {
	ExcludeAWSManaged bool `yaml:"exclude_aws_managed" mapstructure:"exclude_aws_managed"`
	IncludeDefaultVPC bool `yaml:"include_default_vpc" mapstructure:"include_default_vpc"`
}

// RunConfiguration is the external run-configuration input (spec.md §6).
type RunConfiguration struct {
	MaxConcurrentAccounts int                       `yaml:"max_concurrent_accounts" mapstructure:"max_concurrent_accounts"`
	AccountDeadlineSec    int                       `yaml:"account_deadline" mapstructure:"account_deadline"`
	OperationTimeoutSec   int                       `yaml:"operation_timeout" mapstructure:"operation_timeout"`
	FallbackDisplay       discovery.FallbackDisplay `yaml:"fallback_display" mapstructure:"fallback_display"`
	EnableState           bool                      `yaml:"enable_state" mapstructure:"enable_state"`
	EnableDelta           bool                      `yaml:"enable_delta" mapstructure:"enable_delta"`
	RetentionDays         int                       `yaml:"retention_days" mapstructure:"retention_days"`
	Filtering             FilterConfig              `yaml:"filtering" mapstructure:"filtering"`
	EnableCostAnalysis    bool                      `yaml:"enable_cost_analysis" mapstructure:"enable_cost_analysis"`
	CostThresholdUSD      float64                   `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	Debug                 bool                      `yaml:"debug" mapstructure:"debug"`
	StateDir              string                    `yaml:"state_dir" mapstructure:"state_dir"`
	MaxCallsPerSecond     float64                   `yaml:"max_calls_per_second" mapstructure:"max_calls_per_second"`
	RateLimitBurst        int                       `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// AccountConfig is one entry of the accounts list: spec.md §6's account
// descriptor in a YAML-friendly shape, converted to an awsctx.Descriptor
// via ToDescriptor before credential resolution.
type AccountConfig struct {
	AccountID        string                  `yaml:"account_id" mapstructure:"account_id"`
	CredentialSource awsctx.CredentialSource `yaml:"credential_source" mapstructure:"credential_source"`
	Profile          string                  `yaml:"profile" mapstructure:"profile"`
	AssumeRoleARN    string                  `yaml:"assume_role_arn" mapstructure:"assume_role_arn"`
	AccessKeyID      string                  `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey  string                  `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken     string                  `yaml:"session_token" mapstructure:"session_token"`
	RegionFilter     []string                `yaml:"region_filter" mapstructure:"region_filter"`
	ServiceFilter    []string                `yaml:"service_filter" mapstructure:"service_filter"`
	TagFilter        map[string]string       `yaml:"tag_filter" mapstructure:"tag_filter"`
}

// ToDescriptor converts a, a YAML account entry, into the awsctx.Descriptor
// credential resolution operates on.
func (a AccountConfig) ToDescriptor() awsctx.Descriptor {
	return awsctx.Descriptor{
		AccountID:        a.AccountID,
		CredentialSource: a.CredentialSource,
		Profile:          a.Profile,
		AssumeRoleARN:    a.AssumeRoleARN,
		AccessKeyID:      a.AccessKeyID,
		SecretAccessKey:  a.SecretAccessKey,
		SessionToken:     a.SessionToken,
		RegionFilter:     a.RegionFilter,
		ServiceFilter:    a.ServiceFilter,
		TagFilter:        a.TagFilter,
	}
}

// Config is the top-level document config.Load reads.
type Config struct {
	Run       RunConfiguration `yaml:"run" mapstructure:"run"`
	Accounts  []AccountConfig  `yaml:"accounts" mapstructure:"accounts"`
	TagPolicy model.TagPolicy  `yaml:"tag_policy" mapstructure:"tag_policy"`
}

func init() {
	viper.SetDefault("run.max_concurrent_accounts", 4)
	viper.SetDefault("run.account_deadline", 1800)
	viper.SetDefault("run.operation_timeout", 20)
	viper.SetDefault("run.fallback_display", discovery.FallbackAuto)
	viper.SetDefault("run.enable_state", true)
	viper.SetDefault("run.enable_delta", true)
	viper.SetDefault("run.retention_days", 30)
	viper.SetDefault("run.filtering.exclude_aws_managed", true)
	viper.SetDefault("run.filtering.include_default_vpc", false)
	viper.SetDefault("run.state_dir", "./inventag-state")
	viper.SetDefault("run.max_calls_per_second", 0)
	viper.SetDefault("run.rate_limit_burst", 1)
}

// Load reads path (a YAML document) into a typed Config via viper, the way
// the reference CLI's initConfig reads .clanker.yaml, applying environment
// overrides and the package-init defaults above. A malformed file is a
// fatal *model.ErrConfig.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	copyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &model.ErrConfig{Message: fmt.Sprintf("config: reading %s: %v", path, err)}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &model.ErrConfig{Message: fmt.Sprintf("config: parsing %s: %v", path, err)}
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func copyDefaults(v *viper.Viper) {
	for _, key := range []string{
		"run.max_concurrent_accounts", "run.account_deadline", "run.operation_timeout",
		"run.fallback_display", "run.enable_state", "run.enable_delta", "run.retention_days",
		"run.filtering.exclude_aws_managed", "run.filtering.include_default_vpc", "run.state_dir",
		"run.max_calls_per_second", "run.rate_limit_burst",
	} {
		v.SetDefault(key, viper.Get(key))
	}
}

func validate(cfg *Config) error {
	if len(cfg.Accounts) == 0 {
		return &model.ErrConfig{Message: "config: at least one account must be configured"}
	}
	for _, a := range cfg.Accounts {
		switch a.CredentialSource {
		case awsctx.CredentialStatic, awsctx.CredentialProfile, awsctx.CredentialAssumeRole:
		default:
			return &model.ErrConfig{Message: fmt.Sprintf("config: account %s has invalid credential_source %q", a.AccountID, a.CredentialSource)}
		}
	}
	return nil
}
