package reconcile

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mward29/triviapanel/internal/game"
)

func newTestIngestor(clock clockwork.Clock) (*Ingestor, *Guard, *FormStore) {
	guard := NewGuard(clock, 800*time.Millisecond)
	forms := NewFormStore()
	return NewIngestor(guard, forms, false), guard, forms
}

func gameSnapshot(status string, countdown string, running bool, points int) game.Snapshot {
	return game.Snapshot{
		game.EntityGameStatus: {State: status, Attributes: map[string]any{}},
		game.TeamEntity(1): {State: "Team 1", Attributes: map[string]any{
			"points": points,
		}},
		game.EntityCountdown: {State: countdown, Attributes: map[string]any{
			"is_running":   running,
			"initial_time": 30,
		}},
	}
}

func TestClassifyFirstSnapshotRepaints(t *testing.T) {
	in, _, _ := newTestIngestor(clockwork.NewFakeClock())
	dec := in.Classify(nil, game.Snapshot{})
	require.True(t, dec.Repaint)
}

func TestClassifyScreenTransitionAlwaysRepaints(t *testing.T) {
	in, guard, forms := newTestIngestor(clockwork.NewFakeClock())

	// Even with an active edit and pending values, gaining the required
	// entities moves splash -> main and must repaint.
	guard.Focus("display/team-1-name")
	forms.Set(TeamKey(FieldTeamName, 1), "Foo")

	prev := game.Snapshot{}
	cur := gameSnapshot(game.StatusIdle, "30", false, 0)
	dec := in.Classify(prev, cur)
	require.True(t, dec.Repaint)
}

func TestClassifySplashSuppressedWhileEditing(t *testing.T) {
	in, guard, _ := newTestIngestor(clockwork.NewFakeClock())
	guard.Focus("display/team-1-name")

	prev := game.Snapshot{
		"sensor.home_trivia_fun_fact": {State: "old", Attributes: map[string]any{}},
	}
	cur := game.Snapshot{
		"sensor.home_trivia_fun_fact": {State: "new", Attributes: map[string]any{}},
	}
	dec := in.Classify(prev, cur)
	require.False(t, dec.Repaint, "splash repaint must hold during an active edit")
	require.Nil(t, dec.TimerPatch)
}

func TestClassifySplashSuppressedWhilePendingEdits(t *testing.T) {
	in, _, forms := newTestIngestor(clockwork.NewFakeClock())
	forms.Set(ScalarKey(FieldDifficulty), "hard")

	dec := in.Classify(game.Snapshot{}, game.Snapshot{})
	require.False(t, dec.Repaint)
}

func TestClassifySplashRepaintsWhenIdle(t *testing.T) {
	in, _, _ := newTestIngestor(clockwork.NewFakeClock())
	dec := in.Classify(game.Snapshot{}, game.Snapshot{})
	require.True(t, dec.Repaint)
}

func TestClassifyWatchListChangeRepaints(t *testing.T) {
	in, _, _ := newTestIngestor(clockwork.NewFakeClock())

	prev := gameSnapshot(game.StatusPlaying, "30", true, 0)
	cur := gameSnapshot(game.StatusPlaying, "30", true, 10)
	dec := in.Classify(prev, cur)
	require.True(t, dec.Repaint, "a points change must repaint")
}

func TestClassifyRoundAdvanceRepaints(t *testing.T) {
	in, _, _ := newTestIngestor(clockwork.NewFakeClock())

	prev := gameSnapshot(game.StatusPlaying, "30", true, 0)
	cur := gameSnapshot(game.StatusPlaying, "30", true, 0)
	cur[game.EntityGameStatus] = game.EntityState{
		State:      game.StatusPlaying,
		Attributes: map[string]any{"current_round": 2},
	}
	dec := in.Classify(prev, cur)
	require.True(t, dec.Repaint, "a round advance must repaint")
}

func TestClassifyTickOnlyChangePatchesTimer(t *testing.T) {
	in, guard, _ := newTestIngestor(clockwork.NewFakeClock())
	guard.Focus("display/answer") // an active edit must not block the patch

	prev := gameSnapshot(game.StatusPlaying, "30", true, 0)
	cur := gameSnapshot(game.StatusPlaying, "29", true, 0)
	dec := in.Classify(prev, cur)
	require.False(t, dec.Repaint, "a bare tick must not repaint")
	require.NotNil(t, dec.TimerPatch)
	require.Equal(t, 29, dec.TimerPatch.SecondsLeft)
	require.True(t, dec.TimerPatch.Running)
	require.InDelta(t, 29.0/30.0*100, dec.TimerPatch.ProgressPct, 0.01)
}

func TestClassifyRunningFlagChangeRepaints(t *testing.T) {
	in, _, _ := newTestIngestor(clockwork.NewFakeClock())

	prev := gameSnapshot(game.StatusPlaying, "30", true, 0)
	cur := gameSnapshot(game.StatusPlaying, "30", false, 0)
	dec := in.Classify(prev, cur)
	require.True(t, dec.Repaint)
}

func TestClassifyIdenticalSnapshotsSuppress(t *testing.T) {
	in, _, _ := newTestIngestor(clockwork.NewFakeClock())

	prev := gameSnapshot(game.StatusPlaying, "30", true, 0)
	cur := gameSnapshot(game.StatusPlaying, "30", true, 0)
	dec := in.Classify(prev, cur)
	require.False(t, dec.Repaint)
	require.Nil(t, dec.TimerPatch)
}

func TestBuildTimerPatchTimeUpAndWarning(t *testing.T) {
	up := gameSnapshot(game.StatusPlaying, "0", false, 0)
	patch := BuildTimerPatch(up)
	require.True(t, patch.TimeUp)
	require.False(t, patch.Warning)
	require.Zero(t, patch.ProgressPct)

	warn := gameSnapshot(game.StatusPlaying, "4", true, 0)
	patch = BuildTimerPatch(warn)
	require.False(t, patch.TimeUp)
	require.True(t, patch.Warning)
}

func TestBuildTimerPatchFallsBackToTimerLength(t *testing.T) {
	snap := game.Snapshot{
		game.EntityCountdown: {State: "10", Attributes: map[string]any{
			"is_running": true,
		}},
		game.EntityTimerLength: {State: "20", Attributes: map[string]any{}},
	}
	patch := BuildTimerPatch(snap)
	require.InDelta(t, 50.0, patch.ProgressPct, 0.01)
}
