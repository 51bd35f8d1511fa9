package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/fixture"
)

// countingAdapter records mutate calls and the peak number of concurrent
// calls per resource id.
type countingAdapter struct {
	providers.Adapter

	delay     time.Duration
	backupErr error
	mutateErr error
	onMutate  func(ctx context.Context)

	mu       sync.Mutex
	inFlight map[string]int
	peak     map[string]int
	mutates  int
	backups  int
	deleted  map[string]bool
}

func newCountingAdapter() *countingAdapter {
	return &countingAdapter{
		inFlight: map[string]int{},
		peak:     map[string]int{},
		deleted:  map[string]bool{},
	}
}

func (a *countingAdapter) Backup(ctx context.Context, r models.Resource, action models.Action) (string, error) {
	a.mu.Lock()
	a.backups++
	a.mu.Unlock()
	if a.backupErr != nil {
		return "", a.backupErr
	}
	if action == models.ActionDelete {
		return "snap-of-" + r.ID, nil
	}
	return "", nil
}

func (a *countingAdapter) Mutate(ctx context.Context, r models.Resource, action models.Action) error {
	a.mu.Lock()
	a.mutates++
	a.inFlight[r.ID]++
	if a.inFlight[r.ID] > a.peak[r.ID] {
		a.peak[r.ID] = a.inFlight[r.ID]
	}
	a.mu.Unlock()

	if a.onMutate != nil {
		a.onMutate(ctx)
	}
	time.Sleep(a.delay)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight[r.ID]--
	if a.mutateErr != nil {
		return a.mutateErr
	}
	// Already deleted resources succeed, like the real adapters.
	a.deleted[r.ID] = true
	return nil
}

func finding(id string, action models.Action) models.Finding {
	return models.Finding{
		ID:       "RULE/aws/us-east-1/" + id,
		RuleID:   "RULE",
		Severity: models.SeverityHigh,
		Action:   action,
		Resource: models.Resource{ID: id, Kind: models.KindVolume, Provider: models.ProviderAWS, Region: "us-east-1"},
	}
}

func TestExecute_DryRunNeverMutates(t *testing.T) {
	a := newCountingAdapter()
	ex := New(a, Options{})
	for _, sev := range []models.Severity{models.SeverityLow, models.SeverityCritical} {
		f := finding("vol-1", models.ActionDelete)
		f.Severity = sev
		res := ex.Execute(context.Background(), f, models.ModeDryRun)
		assert.Equal(t, models.ActionStateReported, res.State)
		assert.True(t, res.DryRun)
		assert.False(t, res.Attempted)
	}
	assert.Zero(t, a.mutates)
	assert.Zero(t, a.backups)
}

func TestExecute_ApplyForceDeleteTakesBackupFirst(t *testing.T) {
	a := newCountingAdapter()
	ex := New(a, Options{})
	res := ex.Execute(context.Background(), finding("vol-1", models.ActionDelete), models.ModeApplyForce)
	assert.Equal(t, models.ActionStateApplied, res.State)
	assert.True(t, res.Attempted)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "snap-of-vol-1", res.UndoReference)
	assert.Nil(t, res.Error)
	assert.Equal(t, 1, a.backups)
	assert.Equal(t, 1, a.mutates)
}

func TestExecute_ConfirmDeclinedSkips(t *testing.T) {
	a := newCountingAdapter()
	asked := 0
	ex := New(a, Options{Confirmer: ConfirmFunc(func(context.Context, models.Finding) (bool, error) {
		asked++
		return false, nil
	})})
	res := ex.Execute(context.Background(), finding("vol-1", models.ActionDelete), models.ModeApplyWithConfirm)
	assert.Equal(t, models.ActionStateSkipped, res.State)
	assert.False(t, res.Attempted)
	assert.Equal(t, 1, asked)
	assert.Zero(t, a.mutates)
}

func TestExecute_ConfirmAcceptedApplies(t *testing.T) {
	a := newCountingAdapter()
	ex := New(a, Options{Confirmer: ConfirmFunc(func(context.Context, models.Finding) (bool, error) { return true, nil })})
	res := ex.Execute(context.Background(), finding("vol-1", models.ActionTag), models.ModeApplyWithConfirm)
	assert.Equal(t, models.ActionStateApplied, res.State)
	assert.Empty(t, res.UndoReference)
}

func TestExecute_ConfirmWithoutConfirmerFails(t *testing.T) {
	res := New(newCountingAdapter(), Options{}).Execute(context.Background(), finding("vol-1", models.ActionDelete), models.ModeApplyWithConfirm)
	assert.Equal(t, models.ActionStateFailed, res.State)
	require.NotNil(t, res.Error)
	assert.Equal(t, models.ErrorKindConfig, res.Error.Kind)
}

func TestExecute_BackupFailureIsPrecheckFailed(t *testing.T) {
	a := newCountingAdapter()
	a.backupErr = errors.New("snapshot quota exceeded")
	res := New(a, Options{}).Execute(context.Background(), finding("vol-1", models.ActionDelete), models.ModeApplyForce)

	assert.Equal(t, models.ActionStateFailed, res.State)
	assert.False(t, res.Succeeded)
	require.NotNil(t, res.Error)
	assert.Equal(t, models.ErrorKindPrecheckFailed, res.Error.Kind)
	assert.Equal(t, "vol-1", res.Error.ResourceID)
	assert.Zero(t, a.mutates, "destructive call must not run after a failed backup")
}

func TestExecute_BackupNotFoundStillDeletes(t *testing.T) {
	a := newCountingAdapter()
	a.backupErr = &auditerr.ProviderError{
		Provider: models.ProviderAWS, Op: "CreateSnapshot", Region: "us-east-1",
		ResourceID: "vol-1", Reason: auditerr.ReasonNotFound, Err: errors.New("InvalidVolume.NotFound"),
	}
	res := New(a, Options{}).Execute(context.Background(), finding("vol-1", models.ActionDelete), models.ModeApplyForce)

	assert.Equal(t, models.ActionStateApplied, res.State)
	assert.True(t, res.Succeeded)
	assert.Nil(t, res.Error)
	assert.Empty(t, res.UndoReference)
	assert.Equal(t, 1, a.mutates)
}

func TestExecute_MutationFailureIsNotRetried(t *testing.T) {
	a := newCountingAdapter()
	a.mutateErr = errors.New("throttled")
	res := New(a, Options{}).Execute(context.Background(), finding("vol-1", models.ActionStop), models.ModeApplyForce)
	assert.Equal(t, models.ActionStateFailed, res.State)
	require.NotNil(t, res.Error)
	assert.Equal(t, models.ErrorKindProvider, res.Error.Kind)
	assert.Equal(t, 1, a.mutates)
}

func TestExecute_ActionNoneSkips(t *testing.T) {
	a := newCountingAdapter()
	res := New(a, Options{}).Execute(context.Background(), finding("db-1", models.ActionNone), models.ModeApplyForce)
	assert.Equal(t, models.ActionStateSkipped, res.State)
	assert.Zero(t, a.backups+a.mutates)
}

func TestExecute_InvalidMode(t *testing.T) {
	res := New(newCountingAdapter(), Options{}).Execute(context.Background(), finding("vol-1", models.ActionDelete), models.Mode("yolo"))
	assert.Equal(t, models.ActionStateFailed, res.State)
}

func TestExecuteAll_AtMostOneMutationPerResource(t *testing.T) {
	a := newCountingAdapter()
	a.delay = 5 * time.Millisecond
	ex := New(a, Options{Concurrency: 8})

	var findings []models.Finding
	for i := 0; i < 6; i++ {
		// Three distinct rules hitting vol-shared, plus unrelated volumes.
		f := finding("vol-shared", models.ActionTag)
		f.ID = f.ID + "#" + string(rune('a'+i))
		findings = append(findings, f, finding("vol-"+string(rune('a'+i)), models.ActionTag))
	}
	results := ex.ExecuteAll(context.Background(), findings, models.ModeApplyForce)

	require.Len(t, results, len(findings))
	for i, r := range results {
		assert.Equal(t, findings[i].ID, r.FindingID, "results must keep finding order")
		assert.Equal(t, models.ActionStateApplied, r.State)
	}
	assert.Equal(t, 1, a.peak["vol-shared"])
	assert.Equal(t, 12, a.mutates)
}

func TestExecute_DeleteIsIdempotent(t *testing.T) {
	fx := fixture.New(fixture.Data{Resources: []models.Resource{
		{ID: "vol-1", Kind: models.KindVolume, Region: "us-east-1"},
	}})
	ex := New(fx, Options{})
	f := finding("vol-1", models.ActionDelete)
	f.Resource.Provider = models.ProviderFixture

	first := ex.Execute(context.Background(), f, models.ModeApplyForce)
	second := ex.Execute(context.Background(), f, models.ModeApplyForce)

	assert.Equal(t, models.ActionStateApplied, first.State)
	assert.Equal(t, "fixture-snap-vol-1", first.UndoReference)
	assert.Equal(t, models.ActionStateApplied, second.State, "deleting a gone resource must succeed: %+v", second.Error)
	assert.True(t, second.Succeeded)
	assert.Nil(t, second.Error)
	assert.Empty(t, second.UndoReference)
}

func TestExecuteAll_TwoDeleteFindingsOnOneResource(t *testing.T) {
	fx := fixture.New(fixture.Data{Resources: []models.Resource{
		{ID: "vol-1", Kind: models.KindVolume, Region: "us-east-1"},
	}})
	ex := New(fx, Options{Concurrency: 4})

	a := finding("vol-1", models.ActionDelete)
	b := finding("vol-1", models.ActionDelete)
	b.ID = "OTHER_RULE/aws/us-east-1/vol-1"
	results := ex.ExecuteAll(context.Background(), []models.Finding{a, b}, models.ModeApplyForce)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.ActionStateApplied, r.State)
		assert.Nil(t, r.Error)
	}
	// Exactly one of the two took the snapshot.
	assert.NotEqual(t, results[0].UndoReference, results[1].UndoReference)
}

func TestExecute_NotFoundBackupFailsNonDestructiveAction(t *testing.T) {
	fx := fixture.New(fixture.Data{})
	ex := New(fx, Options{})
	f := finding("sg-gone", models.ActionPatch)
	f.Resource.Kind = models.KindSecurityGroup

	res := ex.Execute(context.Background(), f, models.ModeApplyForce)
	assert.Equal(t, models.ActionStateFailed, res.State)
	require.NotNil(t, res.Error)
	assert.Equal(t, models.ErrorKindPrecheckFailed, res.Error.Kind)
}

func TestExecute_CancelledRunStartsNoMutation(t *testing.T) {
	a := newCountingAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(a, Options{}).Execute(ctx, finding("vol-1", models.ActionDelete), models.ModeApplyForce)
	assert.Equal(t, models.ActionStateSkipped, res.State)
	assert.False(t, res.Attempted)
	assert.Zero(t, a.mutates)
}

func TestExecute_StartedMutationSurvivesCancellation(t *testing.T) {
	a := newCountingAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	a.onMutate = func(mctx context.Context) {
		cancel()
		sawCancel.Store(mctx.Err() != nil)
	}
	res := New(a, Options{}).Execute(ctx, finding("vol-1", models.ActionDelete), models.ModeApplyForce)
	assert.Equal(t, models.ActionStateApplied, res.State)
	assert.False(t, sawCancel.Load(), "mutation context must not be cancelled")
}

func TestExecuteAll_CancellationMidRun(t *testing.T) {
	a := newCountingAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	a.onMutate = func(context.Context) { cancel() }
	ex := New(a, Options{Concurrency: 1})

	findings := []models.Finding{
		finding("vol-1", models.ActionDelete),
		finding("vol-2", models.ActionDelete),
		finding("vol-3", models.ActionDelete),
	}
	results := ex.ExecuteAll(ctx, findings, models.ModeApplyForce)
	assert.Equal(t, models.ActionStateApplied, results[0].State)
	assert.Equal(t, models.ActionStateSkipped, results[1].State)
	assert.Equal(t, models.ActionStateSkipped, results[2].State)
	assert.Equal(t, 1, a.mutates)
}

func TestKeyedMutex_CancelWhileWaiting(t *testing.T) {
	k := newKeyedMutex()
	unlock, err := k.lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = k.lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	k.mu.Lock()
	assert.Empty(t, k.entries)
	k.mu.Unlock()
}
