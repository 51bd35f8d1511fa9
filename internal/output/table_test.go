package output_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/output"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func renderToString(run *models.AuditRun, opts output.TableOptions) string {
	var buf bytes.Buffer
	output.RenderTable(&buf, run, opts)
	return buf.String()
}

func oneFinding(overrides ...func(*models.Finding)) models.Finding {
	cost := decimal.RequireFromString("10")
	r := models.Resource{
		ID:       "vol-0123456789abcdef0",
		Kind:     models.KindVolume,
		Provider: models.ProviderAWS,
		Region:   "us-east-1",
		SizeGB:   models.Float64(100),
	}
	f := models.Finding{
		ID:                   models.FindingID("VOLUME_UNATTACHED", r),
		RuleID:               "VOLUME_UNATTACHED",
		RuleName:             "Unattached volume",
		Severity:             models.SeverityMedium,
		Reason:               "Volume vol-0123456789abcdef0 (100 GB) in us-east-1 is not attached to any instance.",
		Action:               models.ActionDelete,
		Resource:             r,
		EstimatedMonthlyCost: &cost,
		DetectedAt:           time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, fn := range overrides {
		fn(&f)
	}
	return f
}

func runWith(findings ...models.Finding) *models.AuditRun {
	return &models.AuditRun{
		ID:       "run-1",
		Provider: models.ProviderAWS,
		Mode:     models.ModeReportOnly,
		Findings: findings,
	}
}

// ── columns ───────────────────────────────────────────────────────────────────

func TestRenderTable_AllColumnsPresent(t *testing.T) {
	out := renderToString(runWith(oneFinding()), output.TableOptions{})
	for _, col := range []string{"RESOURCE ID", "REGION", "KIND", "SEVERITY", "RULE", "REASON", "COST/MO", "ACTION"} {
		if !strings.Contains(out, col) {
			t.Errorf("expected column %q in output\ngot:\n%s", col, out)
		}
	}
	for _, val := range []string{"vol-0123456789abcdef0", "us-east-1", "volume", "medium", "VOLUME_UNATTACHED", "$10.00", "delete"} {
		if !strings.Contains(out, val) {
			t.Errorf("expected value %q in output\ngot:\n%s", val, out)
		}
	}
}

func TestRenderTable_UnknownCostShowsDash(t *testing.T) {
	f := oneFinding(func(f *models.Finding) { f.EstimatedMonthlyCost = nil })
	out := renderToString(runWith(f), output.TableOptions{})
	if strings.Contains(out, "$") {
		t.Errorf("unpriced finding must not show a dollar amount\ngot:\n%s", out)
	}
}

func TestRenderTable_ActionOutcomeShown(t *testing.T) {
	f := oneFinding()
	run := runWith(f)
	run.ActionResults = []models.ActionResult{{
		FindingID: f.ID,
		Action:    models.ActionDelete,
		State:     models.ActionStateApplied,
	}}
	out := renderToString(run, output.TableOptions{})
	if !strings.Contains(out, "delete:applied") {
		t.Errorf("expected action outcome in output\ngot:\n%s", out)
	}
}

// ── REASON truncation ─────────────────────────────────────────────────────────

func TestRenderTable_ReasonIsTruncatedWhenTooLong(t *testing.T) {
	long := strings.Repeat("x", 200)
	out := renderToString(runWith(oneFinding(func(f *models.Finding) { f.Reason = long })), output.TableOptions{})
	if strings.Contains(out, long) {
		t.Error("long reason must be truncated in table output")
	}
	if !strings.Contains(out, "...") {
		t.Errorf("truncated reason must end with ...\ngot:\n%s", out)
	}
}

// ── empty runs ────────────────────────────────────────────────────────────────

func TestRenderTable_EmptyFindings_PrintsNoFindings(t *testing.T) {
	out := renderToString(runWith(), output.TableOptions{})
	if !strings.Contains(out, "No findings.") {
		t.Errorf("expected 'No findings.'\ngot:\n%s", out)
	}
	if strings.Contains(out, "RESOURCE ID") {
		t.Errorf("column headers must not appear without findings\ngot:\n%s", out)
	}
}

// ── errors section ────────────────────────────────────────────────────────────

func TestRenderTable_ErrorsSectionListsRunErrors(t *testing.T) {
	run := runWith(oneFinding())
	run.Errors = []models.RunError{{
		Kind:         models.ErrorKindPartialFailure,
		Reason:       "timeout",
		Region:       "eu-west-1",
		ResourceKind: models.KindVolume,
		Message:      "list volumes: deadline exceeded",
	}}
	out := renderToString(run, output.TableOptions{})
	if !strings.Contains(out, "Errors encountered (1):") {
		t.Errorf("expected errors section\ngot:\n%s", out)
	}
	if !strings.Contains(out, "PartialFailure(timeout) region=eu-west-1") {
		t.Errorf("expected error detail\ngot:\n%s", out)
	}
}

func TestRenderTable_ErrorsSectionEvenWithoutFindings(t *testing.T) {
	run := runWith()
	run.Errors = []models.RunError{{Kind: models.ErrorKindPolicy, Message: "bad template"}}
	out := renderToString(run, output.TableOptions{})
	if !strings.Contains(out, "No findings.") || !strings.Contains(out, "Errors encountered") {
		t.Errorf("expected both 'No findings.' and the errors section\ngot:\n%s", out)
	}
}

func TestRenderTable_NoErrorsSectionForCleanRun(t *testing.T) {
	out := renderToString(runWith(oneFinding()), output.TableOptions{})
	if strings.Contains(out, "Errors encountered") {
		t.Errorf("clean run must not print an errors section\ngot:\n%s", out)
	}
}

// ── color ─────────────────────────────────────────────────────────────────────

func TestRenderTable_ColoredFalse_NoAnsiCodes(t *testing.T) {
	out := renderToString(runWith(oneFinding()), output.TableOptions{Colored: false})
	if strings.Contains(out, "\033[") {
		t.Errorf("Colored=false must not emit ANSI codes\ngot:\n%q", out)
	}
}

func TestRenderTable_ColoredTrue_HasAnsiCodes(t *testing.T) {
	out := renderToString(runWith(oneFinding()), output.TableOptions{Colored: true})
	if !strings.Contains(out, "\033[") {
		t.Errorf("Colored=true must emit ANSI codes\ngot:\n%q", out)
	}
}

// ── location label ────────────────────────────────────────────────────────────

func TestRenderTable_LocationLabel_DefaultsToRegion(t *testing.T) {
	out := renderToString(runWith(oneFinding()), output.TableOptions{})
	if !strings.Contains(out, "REGION") {
		t.Errorf("expected REGION header by default\ngot:\n%s", out)
	}
}

func TestRenderTable_LocationLabel_NamespaceForKubernetes(t *testing.T) {
	out := renderToString(runWith(oneFinding()), output.TableOptions{LocationLabel: "NAMESPACE"})
	if !strings.Contains(out, "NAMESPACE") {
		t.Errorf("expected NAMESPACE header\ngot:\n%s", out)
	}
	if strings.Contains(out, "REGION") {
		t.Errorf("REGION header must be replaced\ngot:\n%s", out)
	}
}

// ── ShortenMessage ────────────────────────────────────────────────────────────

func TestShortenMessage_ShortString_Unchanged(t *testing.T) {
	if got := output.ShortenMessage("hello", 10); got != "hello" {
		t.Errorf("got %q; want %q", got, "hello")
	}
}

func TestShortenMessage_ExactLength_Unchanged(t *testing.T) {
	if got := output.ShortenMessage("12345", 5); got != "12345" {
		t.Errorf("got %q; want %q", got, "12345")
	}
}

func TestShortenMessage_TooLong_TruncatedWithEllipsis(t *testing.T) {
	got := output.ShortenMessage("abcdefghij", 8)
	if got != "abcde..." {
		t.Errorf("got %q; want %q", got, "abcde...")
	}
}

func TestShortenMessage_VerySmallMax_DoesNotPanic(t *testing.T) {
	got := output.ShortenMessage("abcdefghij", 1)
	if got != "a..." {
		t.Errorf("got %q; want %q", got, "a...")
	}
}

func TestColorSeverity(t *testing.T) {
	if got := output.ColorSeverity(models.SeverityHigh, false); got != "high" {
		t.Errorf("got %q; want plain %q", got, "high")
	}
	if got := output.ColorSeverity(models.SeverityCritical, true); !strings.HasPrefix(got, "\033[") {
		t.Errorf("expected ANSI prefix; got %q", got)
	}
}
