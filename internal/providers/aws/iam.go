package awsprovider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
)

// collectIAMUsers returns every IAM user with whether MFA is enabled and
// whether the user has a console login profile.
func collectIAMUsers(ctx context.Context, client common.IAMClient) ([]models.Resource, error) {
	paginator := iamsvc.NewListUsersPaginator(client, &iamsvc.ListUsersInput{})

	var users []models.Resource
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.WrapError(err, "ListUsers", models.GlobalRegion, models.KindIAMUser, "")
		}
		for _, u := range page.Users {
			userName := aws.ToString(u.UserName)
			users = append(users, models.Resource{
				ID:        userName,
				Kind:      models.KindIAMUser,
				Provider:  models.ProviderAWS,
				Region:    models.GlobalRegion,
				CreatedAt: aws.ToTime(u.CreateDate),
				Tags:      tagsFromIAM(u.Tags),
				Attributes: map[string]any{
					models.AttrARN:             aws.ToString(u.Arn),
					models.AttrMFAEnabled:      userHasMFA(ctx, client, userName),
					models.AttrHasLoginProfile: userHasLoginProfile(ctx, client, userName),
				},
			})
		}
	}
	return users, nil
}

// userHasMFA returns true when the user has at least one MFA device.
// Errors are treated as "no MFA".
func userHasMFA(ctx context.Context, client common.IAMClient, userName string) bool {
	out, err := client.ListMFADevices(ctx, &iamsvc.ListMFADevicesInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return false
	}
	return len(out.MFADevices) > 0
}

// userHasLoginProfile returns true when the user can sign in to the console.
// GetLoginProfile fails with NoSuchEntity for API-only users.
func userHasLoginProfile(ctx context.Context, client common.IAMClient, userName string) bool {
	_, err := client.GetLoginProfile(ctx, &iamsvc.GetLoginProfileInput{
		UserName: aws.String(userName),
	})
	return err == nil
}

func tagsFromIAM(tags []iamtypes.Tag) map[string]string {
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
