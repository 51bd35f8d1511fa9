package rules

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

const dbUnencryptedRuleID = "DB_UNENCRYPTED"

// DBUnencryptedRule flags database instances without storage encryption.
// Encryption cannot be enabled in place, so the rule only reports.
type DBUnencryptedRule struct{ meta }

func NewDBUnencryptedRule() DBUnencryptedRule {
	return DBUnencryptedRule{meta{
		id:       dbUnencryptedRuleID,
		name:     "Unencrypted Database",
		target:   kinds(models.KindDBInstance),
		severity: models.SeverityHigh,
		action:   models.ActionNone,
		reason:   `Database {{.ID}} in {{.Region}} ({{index .Attr "engine"}}) does not encrypt its storage.`,
	}}
}

func (r DBUnencryptedRule) Evaluate(ctx RuleContext) (bool, error) {
	encrypted, present, err := boolAttr(ctx.Resource, models.AttrEncrypted)
	if err != nil || !present {
		return false, err
	}
	return !encrypted, nil
}
