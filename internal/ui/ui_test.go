package ui_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/ui"
)

func finding() models.Finding {
	return models.Finding{
		RuleID:   "VOLUME_UNATTACHED",
		Severity: models.SeverityMedium,
		Action:   models.ActionDelete,
		Resource: models.Resource{ID: "vol-1", Kind: models.KindVolume, Region: "us-east-1"},
	}
}

func TestQuestion(t *testing.T) {
	assert.Equal(t, "Delete volume vol-1 in us-east-1 (VOLUME_UNATTACHED, medium)?", ui.Question(finding()))
}

func TestLineConfirmer(t *testing.T) {
	var out bytes.Buffer
	c := ui.NewLineConfirmer(strings.NewReader("y\nno\nYES\n"), &out)
	ctx := context.Background()

	for _, want := range []bool{true, false, true, false} {
		got, err := c.Confirm(ctx, finding())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 4, strings.Count(out.String(), "[y/N]"))
}

func TestLineConfirmer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := ui.NewLineConfirmer(strings.NewReader("y\n"), &bytes.Buffer{})
	ok, err := c.Confirm(ctx, finding())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestPrintRules(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	err := ui.PrintRules(&buf, []ui.RuleRow{
		{ID: "VOLUME_UNATTACHED", Pack: "cost", Name: "Unattached volume", Severity: models.SeverityMedium,
			Action: models.ActionDelete, Kinds: []models.Kind{models.KindVolume}, Enabled: true},
		{ID: "SG_OPEN_SSH", Pack: "security", Name: "Admin port open", Severity: models.SeverityCritical,
			Action: models.ActionPatch, Kinds: []models.Kind{models.KindSecurityGroup}, Enabled: false},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "VOLUME_UNATTACHED")
	assert.Contains(t, out, "security-group")
	assert.Contains(t, out, "no")
}

func TestPrintRules_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ui.PrintRules(&buf, nil))
	assert.Equal(t, "No rules registered.\n", buf.String())
}
