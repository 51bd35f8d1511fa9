package rules

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

const (
	volumeUnattachedRuleID    = "VOLUME_UNATTACHED"
	addressUnassociatedRuleID = "ADDRESS_UNASSOCIATED"

	// attachedInstanceTag is the tag older provisioning scripts stamp on a
	// volume when they attach it.
	attachedInstanceTag = "attached-instance"
)

// VolumeUnattachedRule flags block volumes that no instance uses. Adapters
// that know the attachment state set the attached attribute; resources
// without it fall back to the attached-instance tag.
type VolumeUnattachedRule struct{ meta }

func NewVolumeUnattachedRule() VolumeUnattachedRule {
	return VolumeUnattachedRule{meta{
		id:       volumeUnattachedRuleID,
		name:     "Unattached Volume",
		target:   kinds(models.KindVolume),
		severity: models.SeverityMedium,
		action:   models.ActionDelete,
		reason:   "Volume {{.ID}}{{if .HasSize}} ({{.Size}} GB){{end}} in {{.Region}} is not attached to any instance.",
	}}
}

func (r VolumeUnattachedRule) Evaluate(ctx RuleContext) (bool, error) {
	attached, present, err := boolAttr(ctx.Resource, models.AttrAttached)
	if err != nil {
		return false, err
	}
	if present {
		return !attached, nil
	}
	_, tagged := ctx.Resource.Tag(attachedInstanceTag)
	return !tagged, nil
}

// AddressUnassociatedRule flags reserved public addresses with no
// association. Reserved but idle addresses are billed by every provider.
type AddressUnassociatedRule struct{ meta }

func NewAddressUnassociatedRule() AddressUnassociatedRule {
	return AddressUnassociatedRule{meta{
		id:       addressUnassociatedRuleID,
		name:     "Unassociated Address",
		target:   kinds(models.KindAddress),
		severity: models.SeverityLow,
		action:   models.ActionDelete,
		reason:   "Address {{.ID}} in {{.Region}} is reserved but not associated with any resource.",
	}}
}

func (r AddressUnassociatedRule) Evaluate(ctx RuleContext) (bool, error) {
	attached, present, err := boolAttr(ctx.Resource, models.AttrAttached)
	if err != nil || !present {
		return false, err
	}
	return !attached, nil
}
