package awsprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"
	tagging "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
)

// adminPorts are the remote-administration ports the security group patch
// closes to the internet.
var adminPorts = []int32{22, 3389}

// Mutate applies action to res. A resource that no longer exists counts as
// already remediated.
func (a *Adapter) Mutate(ctx context.Context, res models.Resource, action models.Action) error {
	err := a.mutate(ctx, res, action)
	if err != nil && auditerr.IsNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) mutate(ctx context.Context, res models.Resource, action models.Action) error {
	clients, err := a.clientsFor(ctx, res)
	if err != nil {
		return err
	}

	if action == models.ActionTag {
		return a.tag(ctx, clients, res)
	}

	switch {
	case res.Kind == models.KindVolume && action == models.ActionDelete:
		_, err := clients.EC2.DeleteVolume(ctx, &ec2svc.DeleteVolumeInput{VolumeId: aws.String(res.ID)})
		return common.WrapError(err, "DeleteVolume", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindAddress && action == models.ActionDelete:
		_, err := clients.EC2.ReleaseAddress(ctx, &ec2svc.ReleaseAddressInput{AllocationId: aws.String(res.ID)})
		return common.WrapError(err, "ReleaseAddress", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindInstance && action == models.ActionStop:
		_, err := clients.EC2.StopInstances(ctx, &ec2svc.StopInstancesInput{InstanceIds: []string{res.ID}})
		return common.WrapError(err, "StopInstances", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindSecurityGroup && action == models.ActionPatch:
		perms, err := worldOpenAdminPermissions(ctx, clients.EC2, res)
		if err != nil || len(perms) == 0 {
			return err
		}
		_, err = clients.EC2.RevokeSecurityGroupIngress(ctx, &ec2svc.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(res.ID),
			IpPermissions: perms,
		})
		return common.WrapError(err, "RevokeSecurityGroupIngress", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindSnapshot && action == models.ActionDelete:
		_, err := clients.EC2.DeleteSnapshot(ctx, &ec2svc.DeleteSnapshotInput{SnapshotId: aws.String(res.ID)})
		return common.WrapError(err, "DeleteSnapshot", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindDBInstance && action == models.ActionStop:
		_, err := clients.RDS.StopDBInstance(ctx, &rdssvc.StopDBInstanceInput{DBInstanceIdentifier: aws.String(dbIdentifier(res))})
		return common.WrapError(err, "StopDBInstance", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindDBInstance && action == models.ActionDelete:
		// The manual snapshot taken by Backup replaces the final snapshot.
		_, err := clients.RDS.DeleteDBInstance(ctx, &rdssvc.DeleteDBInstanceInput{
			DBInstanceIdentifier: aws.String(dbIdentifier(res)),
			SkipFinalSnapshot:    aws.Bool(true),
		})
		return common.WrapError(err, "DeleteDBInstance", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindLoadBalancer && action == models.ActionDelete:
		_, err := clients.ELBv2.DeleteLoadBalancer(ctx, &elbv2svc.DeleteLoadBalancerInput{LoadBalancerArn: aws.String(a.arnFor(res))})
		return common.WrapError(err, "DeleteLoadBalancer", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindBucket && action == models.ActionPatch:
		_, err := clients.S3.PutPublicAccessBlock(ctx, &s3svc.PutPublicAccessBlockInput{
			Bucket: aws.String(res.ID),
			PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(true),
				BlockPublicPolicy:     aws.Bool(true),
				IgnorePublicAcls:      aws.Bool(true),
				RestrictPublicBuckets: aws.Bool(true),
			},
		})
		return common.WrapError(err, "PutPublicAccessBlock", res.Region, res.Kind, res.ID)
	}
	return providers.Unsupported(res, action)
}

// tag writes the flag tag. IAM users are tagged through IAM; everything else
// goes through the Resource Groups Tagging API by ARN.
func (a *Adapter) tag(ctx context.Context, clients *common.ClientSet, res models.Resource) error {
	if res.Kind == models.KindIAMUser {
		_, err := clients.IAM.TagUser(ctx, &iamsvc.TagUserInput{
			UserName: aws.String(res.ID),
			Tags:     []iamtypes.Tag{{Key: aws.String(models.FlagTagKey), Value: aws.String("true")}},
		})
		return common.WrapError(err, "TagUser", res.Region, res.Kind, res.ID)
	}

	arn := a.arnFor(res)
	out, err := clients.Tagging.TagResources(ctx, &tagging.TagResourcesInput{
		ResourceARNList: []string{arn},
		Tags:            map[string]string{models.FlagTagKey: "true"},
	})
	if err != nil {
		return common.WrapError(err, "TagResources", res.Region, res.Kind, res.ID)
	}
	if failure, ok := out.FailedResourcesMap[arn]; ok {
		return common.WrapError(
			fmt.Errorf("tag %s: %s %s", arn, failure.ErrorCode, aws.ToString(failure.ErrorMessage)),
			"TagResources", res.Region, res.Kind, res.ID,
		)
	}
	return nil
}

// Backup creates the reversible artifact for action and returns its
// identifier. Volumes and DB instances are snapshotted before deletion; a
// security group patch records the permissions it is about to revoke; a
// bucket patch records the previous public access block.
func (a *Adapter) Backup(ctx context.Context, res models.Resource, action models.Action) (string, error) {
	clients, err := a.clientsFor(ctx, res)
	if err != nil {
		return "", err
	}

	switch {
	case res.Kind == models.KindVolume && action == models.ActionDelete:
		out, err := clients.EC2.CreateSnapshot(ctx, &ec2svc.CreateSnapshotInput{
			VolumeId:    aws.String(res.ID),
			Description: aws.String("cloudsweep backup before deleting " + res.ID),
			TagSpecifications: []ec2types.TagSpecification{{
				ResourceType: ec2types.ResourceTypeSnapshot,
				Tags:         []ec2types.Tag{{Key: aws.String(models.FlagTagKey), Value: aws.String("backup")}},
			}},
		})
		if err != nil {
			return "", common.WrapError(err, "CreateSnapshot", res.Region, res.Kind, res.ID)
		}
		return aws.ToString(out.SnapshotId), nil

	case res.Kind == models.KindDBInstance && action == models.ActionDelete:
		name := dbIdentifier(res)
		snapID := fmt.Sprintf("cloudsweep-%s-%d", name, a.now().UTC().Unix())
		out, err := clients.RDS.CreateDBSnapshot(ctx, &rdssvc.CreateDBSnapshotInput{
			DBInstanceIdentifier: aws.String(name),
			DBSnapshotIdentifier: aws.String(snapID),
		})
		if err != nil {
			return "", common.WrapError(err, "CreateDBSnapshot", res.Region, res.Kind, res.ID)
		}
		if out.DBSnapshot != nil && out.DBSnapshot.DBSnapshotIdentifier != nil {
			return aws.ToString(out.DBSnapshot.DBSnapshotIdentifier), nil
		}
		return snapID, nil

	case res.Kind == models.KindSecurityGroup && action == models.ActionPatch:
		perms, err := worldOpenAdminPermissions(ctx, clients.EC2, res)
		if err != nil {
			return "", err
		}
		return describePermissions(res.ID, perms), nil

	case res.Kind == models.KindBucket && action == models.ActionPatch:
		out, err := clients.S3.GetPublicAccessBlock(ctx, &s3svc.GetPublicAccessBlockInput{Bucket: aws.String(res.ID)})
		if err != nil {
			if common.ClassifyError(err) == auditerr.ReasonNotFound {
				return res.ID + ":public-access-block=none", nil
			}
			return "", common.WrapError(err, "GetPublicAccessBlock", res.Region, res.Kind, res.ID)
		}
		c := out.PublicAccessBlockConfiguration
		if c == nil {
			return res.ID + ":public-access-block=none", nil
		}
		return fmt.Sprintf("%s:block_public_acls=%t,block_public_policy=%t,ignore_public_acls=%t,restrict_public_buckets=%t",
			res.ID, aws.ToBool(c.BlockPublicAcls), aws.ToBool(c.BlockPublicPolicy),
			aws.ToBool(c.IgnorePublicAcls), aws.ToBool(c.RestrictPublicBuckets)), nil
	}
	return "", nil
}

// clientsFor returns clients bound to res's region. Buckets go to their home
// region, resolved through S3 when the listing did not record it.
func (a *Adapter) clientsFor(ctx context.Context, res models.Resource) (*common.ClientSet, error) {
	region := res.Region
	if region == models.GlobalRegion {
		region = ""
	}
	if res.Kind == models.KindBucket {
		if v, ok := res.Attr(attrBucketRegion); ok {
			region, _ = v.(string)
		}
		if region == "" {
			home, err := bucketRegion(ctx, a.provider.ClientsForRegion(a.profile, "").S3, res.ID)
			if err != nil {
				return nil, err
			}
			region = home
		}
	}
	return a.provider.ClientsForRegion(a.profile, region), nil
}

// dbIdentifier returns the RDS instance identifier of res.
func dbIdentifier(res models.Resource) string {
	if v, ok := res.Attr(models.AttrName); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	// arn:aws:rds:<region>:<account>:db:<identifier>
	if i := strings.LastIndex(res.ID, ":db:"); i >= 0 {
		return res.ID[i+len(":db:"):]
	}
	return res.ID
}

// worldOpenAdminPermissions re-reads the security group and returns the
// permission subset that opens an admin port to 0.0.0.0/0 or ::/0.
func worldOpenAdminPermissions(ctx context.Context, client common.EC2Client, res models.Resource) ([]ec2types.IpPermission, error) {
	out, err := client.DescribeSecurityGroups(ctx, &ec2svc.DescribeSecurityGroupsInput{GroupIds: []string{res.ID}})
	if err != nil {
		return nil, common.WrapError(err, "DescribeSecurityGroups", res.Region, res.Kind, res.ID)
	}
	if len(out.SecurityGroups) == 0 {
		return nil, &auditerr.ProviderError{
			Provider:   models.ProviderAWS,
			Op:         "DescribeSecurityGroups",
			Region:     res.Region,
			Kind:       res.Kind,
			ResourceID: res.ID,
			Reason:     auditerr.ReasonNotFound,
			Err:        errors.New("security group not found"),
		}
	}

	var perms []ec2types.IpPermission
	for _, p := range out.SecurityGroups[0].IpPermissions {
		if !coversAdminPort(p) {
			continue
		}
		open := ec2types.IpPermission{
			IpProtocol: p.IpProtocol,
			FromPort:   p.FromPort,
			ToPort:     p.ToPort,
		}
		for _, r := range p.IpRanges {
			if aws.ToString(r.CidrIp) == "0.0.0.0/0" {
				open.IpRanges = append(open.IpRanges, ec2types.IpRange{CidrIp: r.CidrIp})
			}
		}
		for _, r := range p.Ipv6Ranges {
			if aws.ToString(r.CidrIpv6) == "::/0" {
				open.Ipv6Ranges = append(open.Ipv6Ranges, ec2types.Ipv6Range{CidrIpv6: r.CidrIpv6})
			}
		}
		if len(open.IpRanges) > 0 || len(open.Ipv6Ranges) > 0 {
			perms = append(perms, open)
		}
	}
	return perms, nil
}

func coversAdminPort(p ec2types.IpPermission) bool {
	proto := aws.ToString(p.IpProtocol)
	if proto == "-1" {
		return true
	}
	if proto != "tcp" && proto != "6" {
		return false
	}
	from, to := aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort)
	for _, port := range adminPorts {
		if port >= from && port <= to {
			return true
		}
	}
	return false
}

// describePermissions renders revoked permissions as an undo hint, e.g.
// "sg-1:tcp/22-22 from 0.0.0.0/0".
func describePermissions(groupID string, perms []ec2types.IpPermission) string {
	if len(perms) == 0 {
		return ""
	}
	var parts []string
	for _, p := range perms {
		var cidrs []string
		for _, r := range p.IpRanges {
			cidrs = append(cidrs, aws.ToString(r.CidrIp))
		}
		for _, r := range p.Ipv6Ranges {
			cidrs = append(cidrs, aws.ToString(r.CidrIpv6))
		}
		parts = append(parts, fmt.Sprintf("%s/%d-%d from %s",
			aws.ToString(p.IpProtocol), aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort), strings.Join(cidrs, ",")))
	}
	return groupID + ":" + strings.Join(parts, ";")
}
