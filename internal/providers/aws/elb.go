package awsprovider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
)

// collectLoadBalancers pages through all ELBv2 load balancers in region and
// counts the registered targets behind each one.
//
// Target lookups are best effort: when they fail the target_count attribute
// is omitted so LB_IDLE does not fire on missing data.
func collectLoadBalancers(ctx context.Context, client common.ELBv2Client, region string) ([]models.Resource, error) {
	paginator := elbv2svc.NewDescribeLoadBalancersPaginator(client, &elbv2svc.DescribeLoadBalancersInput{})

	var out []models.Resource
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.WrapError(err, "DescribeLoadBalancers", region, models.KindLoadBalancer, "")
		}
		for _, lb := range page.LoadBalancers {
			res := toLoadBalancer(lb, region)
			if n, ok := countTargets(ctx, client, aws.ToString(lb.LoadBalancerArn)); ok {
				res.Attributes[models.AttrTargetCount] = n
			}
			out = append(out, res)
		}
	}
	return out, nil
}

func toLoadBalancer(lb elbv2types.LoadBalancer, region string) models.Resource {
	var state string
	if lb.State != nil {
		state = string(lb.State.Code)
	}
	arn := aws.ToString(lb.LoadBalancerArn)
	return models.Resource{
		ID:        arn,
		Kind:      models.KindLoadBalancer,
		Provider:  models.ProviderAWS,
		Region:    region,
		CreatedAt: aws.ToTime(lb.CreatedTime),
		Attributes: map[string]any{
			models.AttrName:  aws.ToString(lb.LoadBalancerName),
			models.AttrARN:   arn,
			models.AttrState: state,
			"type":           string(lb.Type),
		},
	}
}

// countTargets sums the registered targets across every target group
// attached to lbARN.
func countTargets(ctx context.Context, client common.ELBv2Client, lbARN string) (int, bool) {
	paginator := elbv2svc.NewDescribeTargetGroupsPaginator(client, &elbv2svc.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(lbARN),
	})

	total := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, false
		}
		for _, tg := range page.TargetGroups {
			health, err := client.DescribeTargetHealth(ctx, &elbv2svc.DescribeTargetHealthInput{
				TargetGroupArn: tg.TargetGroupArn,
			})
			if err != nil {
				return 0, false
			}
			total += len(health.TargetHealthDescriptions)
		}
	}
	return total, true
}
