package enrich

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// RDSHandler re-describes one DB instance by id to attach the minimal
// attribute contract spec.md §4.4 names: engine, engine_version,
// instance_class, multi_az, storage_encrypted, backup_retention_period,
// vpc_security_group_ids, db_subnet_group.
type RDSHandler struct{}

func (RDSHandler) Handles(service, resourceType string) bool {
	return service == "RDS" && resourceType == "DBInstance"
}

func (RDSHandler) ReadOnlyOps() []string { return []string{"DescribeDBInstances"} }

func (h RDSHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "RDS", "DescribeDBInstances", func(ctx context.Context) error {
		out, callErr := rc.RDS.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
			DBInstanceIdentifier: aws.String(r.ID),
		})
		if callErr != nil {
			return callErr
		}
		if len(out.DBInstances) == 0 {
			return nil
		}
		db := out.DBInstances[0]
		var sgIDs []string
		for _, g := range db.VpcSecurityGroups {
			sgIDs = append(sgIDs, aws.ToString(g.VpcSecurityGroupId))
		}
		attrs := map[string]any{
			"engine":                  aws.ToString(db.Engine),
			"engine_version":          aws.ToString(db.EngineVersion),
			"instance_class":          aws.ToString(db.DBInstanceClass),
			"multi_az":                aws.ToBool(db.MultiAZ),
			"storage_encrypted":       aws.ToBool(db.StorageEncrypted),
			"backup_retention_period": aws.ToInt32(db.BackupRetentionPeriod),
			"vpc_security_group_ids":  sgIDs,
		}
		if db.DBSubnetGroup != nil {
			attrs["db_subnet_group"] = aws.ToString(db.DBSubnetGroup.DBSubnetGroupName)
		}
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, attrs)
		if aws.ToBool(db.StorageEncrypted) {
			r.Encrypted = model.TristateTrue
		} else {
			r.Encrypted = model.TristateFalse
		}
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "RDS", err)
	}
	return r
}
