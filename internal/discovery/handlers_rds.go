package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// RDSHandler discovers RDS instances, grounded on the teacher's
// getRDSInfo (internal/aws/client.go), against DescribeDBInstances
// directly instead of the teacher's CLI-shell-out path.
type RDSHandler struct{}

func (RDSHandler) Service() string { return "RDS" }
func (RDSHandler) Global() bool     { return false }
func (RDSHandler) ReadOnlyOperations() []string {
	return []string{"DescribeDBInstances", "ListTagsForResource"}
}

func (h RDSHandler) Discover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error) {
	gate.RegisterAllowed("RDS", h.ReadOnlyOperations()...)

	var resources []model.Resource
	err := gate.Guard(ctx, "RDS", "DescribeDBInstances", func(ctx context.Context) error {
		paginator := rds.NewDescribeDBInstancesPaginator(rc.RDS, &rds.DescribeDBInstancesInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "RDS", Operation: "DescribeDBInstances", Cause: err}
			}
			for _, db := range page.DBInstances {
				resources = append(resources, dbInstanceToResource(db, accountID, region))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("RDS DescribeDBInstances: %w", err)
	}
	return resources, nil
}

func dbInstanceToResource(db rdstypes.DBInstance, accountID, region string) model.Resource {
	tags := make(map[string]string, len(db.TagList))
	for _, t := range db.TagList {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	var subnetIDs []string
	var vpcID string
	if db.DBSubnetGroup != nil {
		vpcID = aws.ToString(db.DBSubnetGroup.VpcId)
		for _, s := range db.DBSubnetGroup.Subnets {
			if s.SubnetIdentifier != nil {
				subnetIDs = append(subnetIDs, aws.ToString(s.SubnetIdentifier))
			}
		}
	}
	var sgIDs []string
	for _, g := range db.VpcSecurityGroups {
		sgIDs = append(sgIDs, aws.ToString(g.VpcSecurityGroupId))
	}
	encrypted := model.TristateUnknown
	if db.StorageEncrypted != nil {
		if *db.StorageEncrypted {
			encrypted = model.TristateTrue
		} else {
			encrypted = model.TristateFalse
		}
	}
	return model.Resource{
		ID:               aws.ToString(db.DBInstanceIdentifier),
		ARN:              aws.ToString(db.DBInstanceArn),
		Service:          "RDS",
		Type:             "DBInstance",
		Region:           region,
		AccountID:        accountID,
		Name:             aws.ToString(db.DBInstanceIdentifier),
		Tags:             tags,
		State:            aws.ToString(db.DBInstanceStatus),
		DiscoveredVia:    "ServiceAPI:DescribeDBInstances",
		Priority:         model.PriorityPrimary,
		VPCID:            vpcID,
		SubnetIDs:        subnetIDs,
		SecurityGroupIDs: sgIDs,
		Encrypted:        encrypted,
		ServiceAttributes: map[string]any{
			"engine":                  aws.ToString(db.Engine),
			"engine_version":          aws.ToString(db.EngineVersion),
			"instance_class":          aws.ToString(db.DBInstanceClass),
			"multi_az":                aws.ToBool(db.MultiAZ),
			"backup_retention_period": aws.ToInt32(db.BackupRetentionPeriod),
			"db_subnet_group":         subnetGroupName(db),
		},
	}
}

func subnetGroupName(db rdstypes.DBInstance) string {
	if db.DBSubnetGroup == nil {
		return ""
	}
	return aws.ToString(db.DBSubnetGroup.DBSubnetGroupName)
}
