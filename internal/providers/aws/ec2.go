package awsprovider

import (
	"context"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
)

// collectVolumes pages through every EBS volume in region.
func collectVolumes(ctx context.Context, client common.EC2Client, region string) ([]models.Resource, error) {
	paginator := ec2svc.NewDescribeVolumesPaginator(client, &ec2svc.DescribeVolumesInput{})

	var out []models.Resource
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.WrapError(err, "DescribeVolumes", region, models.KindVolume, "")
		}
		for _, v := range page.Volumes {
			out = append(out, toVolume(v, region))
		}
	}
	return out, nil
}

func toVolume(v ec2types.Volume, region string) models.Resource {
	attrs := map[string]any{
		models.AttrState:      string(v.State),
		models.AttrVolumeType: string(v.VolumeType),
		models.AttrEncrypted:  aws.ToBool(v.Encrypted),
		models.AttrAttached:   len(v.Attachments) > 0,
	}
	if len(v.Attachments) > 0 {
		attrs[models.AttrAttachedTo] = aws.ToString(v.Attachments[0].InstanceId)
	}

	res := models.Resource{
		ID:         aws.ToString(v.VolumeId),
		Kind:       models.KindVolume,
		Provider:   models.ProviderAWS,
		Region:     region,
		CreatedAt:  aws.ToTime(v.CreateTime),
		Tags:       tagsFromEC2(v.Tags),
		Attributes: attrs,
	}
	if v.Size != nil {
		res.SizeGB = models.Float64(float64(*v.Size))
	}
	return res
}

// collectAddresses returns every Elastic IP in region. DescribeAddresses is
// not paginated.
func collectAddresses(ctx context.Context, client common.EC2Client, region string) ([]models.Resource, error) {
	out, err := client.DescribeAddresses(ctx, &ec2svc.DescribeAddressesInput{})
	if err != nil {
		return nil, common.WrapError(err, "DescribeAddresses", region, models.KindAddress, "")
	}

	resources := make([]models.Resource, 0, len(out.Addresses))
	for _, addr := range out.Addresses {
		id := aws.ToString(addr.AllocationId)
		if id == "" {
			id = aws.ToString(addr.PublicIp)
		}
		attached := addr.AssociationId != nil || addr.InstanceId != nil || addr.NetworkInterfaceId != nil
		attrs := map[string]any{
			models.AttrAttached: attached,
			"public_ip":         aws.ToString(addr.PublicIp),
		}
		if addr.InstanceId != nil {
			attrs[models.AttrAttachedTo] = aws.ToString(addr.InstanceId)
		}
		resources = append(resources, models.Resource{
			ID:         id,
			Kind:       models.KindAddress,
			Provider:   models.ProviderAWS,
			Region:     region,
			Tags:       tagsFromEC2(addr.Tags),
			Attributes: attrs,
		})
	}
	return resources, nil
}

// collectInstances pages through running and stopped instances and enriches
// running ones with their average CPUUtilization over window.
//
// CloudWatch failures are non-fatal: the instance is left without an
// avg_cpu_percent attribute, which rules treat as "no data".
func collectInstances(
	ctx context.Context,
	client common.EC2Client,
	cw common.CloudWatchClient,
	region string,
	window [2]time.Time,
) ([]models.Resource, error) {
	input := &ec2svc.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"running", "stopped"},
			},
		},
	}
	paginator := ec2svc.NewDescribeInstancesPaginator(client, input)

	var out []models.Resource
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.WrapError(err, "DescribeInstances", region, models.KindInstance, "")
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				out = append(out, toInstance(inst, region))
			}
		}
	}

	if cw == nil {
		return out, nil
	}
	for i := range out {
		if out[i].Attributes[models.AttrState] != "running" {
			continue
		}
		if avg, ok := fetchAvgCPU(ctx, cw, out[i].ID, window[0], window[1]); ok {
			out[i].Attributes[models.AttrAvgCPUPercent] = avg
		}
	}
	return out, nil
}

func toInstance(inst ec2types.Instance, region string) models.Resource {
	var state string
	if inst.State != nil {
		state = string(inst.State.Name)
	}
	attrs := map[string]any{
		models.AttrState:        state,
		models.AttrInstanceType: string(inst.InstanceType),
	}
	if state == "stopped" {
		if at, ok := parseStoppedAt(aws.ToString(inst.StateTransitionReason)); ok {
			attrs[models.AttrStoppedAt] = at.Format(time.RFC3339)
		}
	}
	return models.Resource{
		ID:         aws.ToString(inst.InstanceId),
		Kind:       models.KindInstance,
		Provider:   models.ProviderAWS,
		Region:     region,
		CreatedAt:  aws.ToTime(inst.LaunchTime),
		Tags:       tagsFromEC2(inst.Tags),
		Attributes: attrs,
	}
}

// stoppedAtPattern extracts the timestamp EC2 embeds in the state transition
// reason, e.g. "User initiated (2024-01-02 15:04:05 GMT)".
var stoppedAtPattern = regexp.MustCompile(`\((\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) GMT\)`)

func parseStoppedAt(reason string) (time.Time, bool) {
	m := stoppedAtPattern.FindStringSubmatch(reason)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02 15:04:05", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// fetchAvgCPU returns the average CPUUtilization for instanceID over
// [start, end) at 1-day granularity. ok is false when the call fails or no
// datapoints exist.
func fetchAvgCPU(ctx context.Context, cw common.CloudWatchClient, instanceID string, start, end time.Time) (float64, bool) {
	out, err := cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/EC2"),
		MetricName: aws.String("CPUUtilization"),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("InstanceId"), Value: aws.String(instanceID)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil || len(out.Datapoints) == 0 {
		return 0, false
	}

	var total float64
	var count int
	for _, dp := range out.Datapoints {
		if dp.Average != nil {
			total += *dp.Average
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return total / float64(count), true
}

// collectSecurityGroups pages through security groups in region and flattens
// their ingress permissions into the ingress attribute.
func collectSecurityGroups(ctx context.Context, client common.EC2Client, region string) ([]models.Resource, error) {
	paginator := ec2svc.NewDescribeSecurityGroupsPaginator(client, &ec2svc.DescribeSecurityGroupsInput{})

	var out []models.Resource
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.WrapError(err, "DescribeSecurityGroups", region, models.KindSecurityGroup, "")
		}
		for _, sg := range page.SecurityGroups {
			out = append(out, models.Resource{
				ID:       aws.ToString(sg.GroupId),
				Kind:     models.KindSecurityGroup,
				Provider: models.ProviderAWS,
				Region:   region,
				Tags:     tagsFromEC2(sg.Tags),
				Attributes: map[string]any{
					models.AttrName:    aws.ToString(sg.GroupName),
					"vpc_id":           aws.ToString(sg.VpcId),
					models.AttrIngress: ingressFromPermissions(sg.IpPermissions),
				},
			})
		}
	}
	return out, nil
}

// ingressFromPermissions converts EC2 permissions to ingress entries.
// Protocol "-1" means all traffic and covers every port.
func ingressFromPermissions(perms []ec2types.IpPermission) []any {
	entries := make([]any, 0, len(perms))
	for _, p := range perms {
		proto := aws.ToString(p.IpProtocol)
		from, to := int(aws.ToInt32(p.FromPort)), int(aws.ToInt32(p.ToPort))
		if proto == "-1" || (p.FromPort == nil && p.ToPort == nil) {
			from, to = 0, 65535
		}
		var cidrs []string
		for _, r := range p.IpRanges {
			cidrs = append(cidrs, aws.ToString(r.CidrIp))
		}
		for _, r := range p.Ipv6Ranges {
			cidrs = append(cidrs, aws.ToString(r.CidrIpv6))
		}
		entries = append(entries, providers.IngressEntry(proto, from, to, cidrs))
	}
	return entries
}

// collectSnapshots pages through EBS snapshots owned by the account.
func collectSnapshots(ctx context.Context, client common.EC2Client, region string) ([]models.Resource, error) {
	paginator := ec2svc.NewDescribeSnapshotsPaginator(client, &ec2svc.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
	})

	var out []models.Resource
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.WrapError(err, "DescribeSnapshots", region, models.KindSnapshot, "")
		}
		for _, s := range page.Snapshots {
			res := models.Resource{
				ID:        aws.ToString(s.SnapshotId),
				Kind:      models.KindSnapshot,
				Provider:  models.ProviderAWS,
				Region:    region,
				CreatedAt: aws.ToTime(s.StartTime),
				Tags:      tagsFromEC2(s.Tags),
				Attributes: map[string]any{
					models.AttrState: string(s.State),
					"volume_id":      aws.ToString(s.VolumeId),
					"description":    aws.ToString(s.Description),
				},
			}
			if s.VolumeSize != nil {
				res.SizeGB = models.Float64(float64(*s.VolumeSize))
			}
			out = append(out, res)
		}
	}
	return out, nil
}

// tagsFromEC2 converts EC2 SDK tags to a plain string map.
func tagsFromEC2(tags []ec2types.Tag) map[string]string {
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
