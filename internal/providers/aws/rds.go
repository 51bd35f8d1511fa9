package awsprovider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
)

// collectDBInstances pages through all RDS database instances in region.
// The ARN is used as the resource ID because instance identifiers are only
// unique within a region.
func collectDBInstances(ctx context.Context, client common.RDSClient, region string) ([]models.Resource, error) {
	paginator := rdssvc.NewDescribeDBInstancesPaginator(client, &rdssvc.DescribeDBInstancesInput{})

	var out []models.Resource
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.WrapError(err, "DescribeDBInstances", region, models.KindDBInstance, "")
		}
		for _, db := range page.DBInstances {
			out = append(out, toDBInstance(db, region))
		}
	}
	return out, nil
}

func toDBInstance(db rdstypes.DBInstance, region string) models.Resource {
	arn := aws.ToString(db.DBInstanceArn)
	name := aws.ToString(db.DBInstanceIdentifier)
	id := arn
	if id == "" {
		id = name
	}
	res := models.Resource{
		ID:        id,
		Kind:      models.KindDBInstance,
		Provider:  models.ProviderAWS,
		Region:    region,
		CreatedAt: aws.ToTime(db.InstanceCreateTime),
		Tags:      tagsFromRDS(db.TagList),
		Attributes: map[string]any{
			models.AttrName:         name,
			models.AttrARN:          arn,
			models.AttrState:        aws.ToString(db.DBInstanceStatus),
			models.AttrEngine:       aws.ToString(db.Engine),
			models.AttrInstanceType: aws.ToString(db.DBInstanceClass),
			models.AttrEncrypted:    aws.ToBool(db.StorageEncrypted),
			"multi_az":              aws.ToBool(db.MultiAZ),
		},
	}
	if db.AllocatedStorage != nil {
		res.SizeGB = models.Float64(float64(*db.AllocatedStorage))
	}
	return res
}

// tagsFromRDS converts RDS SDK tags to a plain string map.
func tagsFromRDS(tags []rdstypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		if t.Key != nil && t.Value != nil {
			m[*t.Key] = *t.Value
		}
	}
	return m
}
