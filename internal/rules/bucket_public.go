package rules

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

const bucketPublicRuleID = "BUCKET_PUBLIC"

// BucketPublicRule flags storage buckets that are readable by anyone.
type BucketPublicRule struct{ meta }

func NewBucketPublicRule() BucketPublicRule {
	return BucketPublicRule{meta{
		id:       bucketPublicRuleID,
		name:     "Public Bucket",
		target:   kinds(models.KindBucket),
		severity: models.SeverityHigh,
		action:   models.ActionPatch,
		reason:   "Bucket {{.ID}} does not block public access.",
	}}
}

func (r BucketPublicRule) Evaluate(ctx RuleContext) (bool, error) {
	public, _, err := boolAttr(ctx.Resource, models.AttrPublic)
	return public, err
}
