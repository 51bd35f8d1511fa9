package rules

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

const iamUserNoMFARuleID = "IAM_USER_NO_MFA"

// IAMUserNoMFARule flags console users without an MFA device. Users without a
// login profile (programmatic access only) cannot use MFA for sign-in and are
// skipped; a missing has_login_profile attribute counts as a console user.
type IAMUserNoMFARule struct{ meta }

func NewIAMUserNoMFARule() IAMUserNoMFARule {
	return IAMUserNoMFARule{meta{
		id:       iamUserNoMFARuleID,
		name:     "IAM User Without MFA",
		target:   kinds(models.KindIAMUser),
		severity: models.SeverityHigh,
		action:   models.ActionTag,
		reason:   "IAM user {{.ID}} can sign in to the console without MFA.",
	}}
}

func (r IAMUserNoMFARule) Evaluate(ctx RuleContext) (bool, error) {
	mfa, present, err := boolAttr(ctx.Resource, models.AttrMFAEnabled)
	if err != nil || !present || mfa {
		return false, err
	}
	login, present, err := boolAttr(ctx.Resource, models.AttrHasLoginProfile)
	if err != nil {
		return false, err
	}
	return !present || login, nil
}
