package awsprovider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
)

// collectBuckets lists all S3 buckets in the account and checks each
// bucket's public-access status and default encryption.
func collectBuckets(ctx context.Context, client common.S3Client) ([]models.Resource, error) {
	out, err := client.ListBuckets(ctx, &s3svc.ListBucketsInput{})
	if err != nil {
		return nil, common.WrapError(err, "ListBuckets", models.GlobalRegion, models.KindBucket, "")
	}

	buckets := make([]models.Resource, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		attrs := map[string]any{
			models.AttrARN:       "arn:aws:s3:::" + name,
			models.AttrPublic:    isBucketPublic(ctx, client, name),
			models.AttrEncrypted: isBucketEncryptionEnabled(ctx, client, name),
		}
		home := aws.ToString(b.BucketRegion)
		if home == "" {
			// Older endpoints omit BucketRegion; remediation resolves it later.
			home, _ = bucketRegion(ctx, client, name)
		}
		if home != "" {
			attrs[attrBucketRegion] = home
		}
		buckets = append(buckets, models.Resource{
			ID:         name,
			Kind:       models.KindBucket,
			Provider:   models.ProviderAWS,
			Region:     models.GlobalRegion,
			CreatedAt:  aws.ToTime(b.CreationDate),
			Attributes: attrs,
		})
	}
	return buckets, nil
}

// attrBucketRegion holds the region a bucket lives in. Buckets are listed
// under the global region, but bucket-level writes must go to their home
// region's endpoint.
const attrBucketRegion = "bucket_region"

// bucketRegion asks S3 where name lives. An empty LocationConstraint means
// us-east-1 and the legacy "EU" constraint means eu-west-1.
func bucketRegion(ctx context.Context, client common.S3Client, name string) (string, error) {
	out, err := client.GetBucketLocation(ctx, &s3svc.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		return "", common.WrapError(err, "GetBucketLocation", models.GlobalRegion, models.KindBucket, name)
	}
	switch loc := string(out.LocationConstraint); loc {
	case "":
		return "us-east-1", nil
	case "EU":
		return "eu-west-1", nil
	default:
		return loc, nil
	}
}

// isBucketPublic returns true only when GetBucketPolicyStatus reports the
// bucket's policy as public. Buckets without a policy return
// NoSuchBucketPolicy, which is treated as not public; any other error is
// also treated as not public to avoid false positives.
func isBucketPublic(ctx context.Context, client common.S3Client, name string) bool {
	out, err := client.GetBucketPolicyStatus(ctx, &s3svc.GetBucketPolicyStatusInput{
		Bucket: aws.String(name),
	})
	if err != nil || out.PolicyStatus == nil {
		return false
	}
	return aws.ToBool(out.PolicyStatus.IsPublic)
}

// isBucketEncryptionEnabled returns true when the bucket has a default
// server-side encryption configuration.
func isBucketEncryptionEnabled(ctx context.Context, client common.S3Client, name string) bool {
	_, err := client.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{
		Bucket: aws.String(name),
	})
	return err == nil
}
