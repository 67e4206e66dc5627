package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mward29/triviapanel/internal/game"
)

type recordedCall struct {
	Service string
	Data    map[string]any
}

// fakeDispatcher records calls and answers with a scripted error per
// service.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls []recordedCall
	fail  map[string]bool
	done  chan recordedCall
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		fail: make(map[string]bool),
		done: make(chan recordedCall, 16),
	}
}

func (d *fakeDispatcher) CallService(ctx context.Context, service string, data map[string]any) error {
	d.mu.Lock()
	call := recordedCall{Service: service, Data: data}
	d.calls = append(d.calls, call)
	failed := d.fail[service]
	d.mu.Unlock()
	d.done <- call
	if failed {
		return context.DeadlineExceeded
	}
	return nil
}

func (d *fakeDispatcher) wait(t *testing.T) recordedCall {
	t.Helper()
	select {
	case call := <-d.done:
		return call
	case <-time.After(time.Second):
		t.Fatal("no service call dispatched")
		return recordedCall{}
	}
}

type recordedSink struct {
	mu       sync.Mutex
	repaints []game.Snapshot
	patches  []TimerPatch
	flashes  []scoreFlash
}

func (s *recordedSink) Repaint(snap game.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repaints = append(s.repaints, snap)
}

func (s *recordedSink) PatchTimer(p TimerPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, p)
}

func (s *recordedSink) FlashScore(team, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, scoreFlash{team: team, points: points})
}

func (s *recordedSink) repaintCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.repaints)
}

func newTestController(clock clockwork.Clock, d Dispatcher) (*Controller, *recordedSink) {
	c := NewController(clock, d, DefaultDelays(), GuardWindow, false)
	sink := &recordedSink{}
	c.Bind(sink)
	return c, sink
}

func TestControllerEditTeamNameDebouncesAndClears(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	c, _ := newTestController(clock, d)
	defer c.Stop()

	c.EditTeamName(2, "R")
	c.EditTeamName(2, "Re")
	c.EditTeamName(2, "Red")
	require.Equal(t, "Red", c.Forms().Effective(TeamKey(FieldTeamName, 2), ""))

	clock.Advance(DefaultDelays().Text)
	call := d.wait(t)
	require.Equal(t, "update_team_name", call.Service)
	require.Equal(t, "team_2", call.Data["team_id"])
	require.Equal(t, "Red", call.Data["name"])

	// Confirmation clears the optimistic entry.
	require.Eventually(t, func() bool {
		return c.Forms().Effective(TeamKey(FieldTeamName, 2), "fallback") == "fallback"
	}, time.Second, 10*time.Millisecond)
}

func TestControllerFailedCallKeepsPendingValue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	d.fail["update_difficulty_level"] = true
	c, _ := newTestController(clock, d)
	defer c.Stop()

	c.EditDifficulty("hard")
	clock.Advance(DefaultDelays().Select)
	d.wait(t)

	// Failure must not clear the edit; the user retries by editing again.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "hard", c.Forms().Effective(ScalarKey(FieldDifficulty), "easy"))
}

func TestControllerEmptyTeamNameNeverSent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	c, _ := newTestController(clock, d)
	defer c.Stop()

	c.EditTeamName(1, "Foo")
	c.EditTeamName(1, "   ")
	clock.Advance(time.Hour)

	select {
	case call := <-d.done:
		t.Fatalf("unexpected call %q", call.Service)
	case <-time.After(50 * time.Millisecond):
	}
	// The blank edit still shadows the authoritative value.
	require.Equal(t, "   ", c.Forms().Effective(TeamKey(FieldTeamName, 1), "Team 1"))
}

func TestControllerDropdownEditArmsGuard(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	c, _ := newTestController(clock, d)
	defer c.Stop()

	c.EditTeamUser(3, "user-9")
	require.True(t, c.Guard().Editing())

	clock.Advance(GuardWindow)
	require.False(t, c.Guard().Editing())
}

func TestControllerAnswerDispatchesImmediately(t *testing.T) {
	d := newFakeDispatcher()
	c, _ := newTestController(clockwork.NewFakeClock(), d)
	defer c.Stop()

	c.SubmitAnswer(1, "b")
	call := d.wait(t)
	require.Equal(t, "update_team_answer", call.Service)
	require.Equal(t, "team_1", call.Data["team_id"])
	require.Equal(t, "b", call.Data["answer"])
}

func TestControllerOnSnapshotRepaintCoalesces(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	c, sink := newTestController(clock, d)
	defer c.Stop()

	// Two snapshots land back to back within one frame window.
	c.OnSnapshot(gameSnapshot(game.StatusPlaying, "30", true, 0))
	c.OnSnapshot(gameSnapshot(game.StatusPlaying, "30", true, 10))

	clock.Advance(DefaultDelays().Frame)
	require.Eventually(t, func() bool {
		return sink.repaintCount() == 1
	}, time.Second, 10*time.Millisecond)

	// The repaint carries the latest snapshot.
	sink.mu.Lock()
	snap := sink.repaints[0]
	sink.mu.Unlock()
	team, ok := snap.Team(1)
	require.True(t, ok)
	require.Equal(t, 10, team.Points)
}

func TestControllerOnSnapshotTimerPatchBypassesRepaint(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	c, sink := newTestController(clock, d)
	defer c.Stop()

	first := gameSnapshot(game.StatusPlaying, "30", true, 0)
	c.OnSnapshot(first)
	clock.Advance(DefaultDelays().Frame)
	require.Eventually(t, func() bool { return sink.repaintCount() == 1 }, time.Second, 10*time.Millisecond)

	c.OnSnapshot(gameSnapshot(game.StatusPlaying, "29", true, 0))

	sink.mu.Lock()
	patches := len(sink.patches)
	sink.mu.Unlock()
	require.Equal(t, 1, patches, "tick must patch the timer synchronously")
	require.Equal(t, 1, sink.repaintCount(), "tick must not schedule a repaint")
}

func TestControllerScoreFlash(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	c, sink := newTestController(clock, d)
	defer c.Stop()

	prev := game.Snapshot{
		game.EntityGameStatus: {State: game.StatusPlaying, Attributes: map[string]any{}},
		game.TeamEntity(1): {State: "Team 1", Attributes: map[string]any{
			"points": 10, "last_round_points": 0,
		}},
	}
	cur := game.Snapshot{
		game.EntityGameStatus: {State: game.StatusPlaying, Attributes: map[string]any{}},
		game.TeamEntity(1): {State: "Team 1", Attributes: map[string]any{
			"points": 30, "last_round_points": 20,
		}},
	}
	c.OnSnapshot(prev)
	c.OnSnapshot(cur)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, []scoreFlash{{team: 1, points: 20}}, sink.flashes)
}

func TestControllerStartGameFlushesSettingsThenStarts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newFakeDispatcher()
	c, _ := newTestController(clock, d)
	defer c.Stop()

	c.OnSnapshot(gameSnapshot(game.StatusIdle, "30", false, 0))
	c.EditDifficulty("hard")
	c.EditTeamCount(2)
	c.StartGame()

	services := map[string]int{}
	// Flush fires the two pending settings plus the participation updates
	// for all five teams.
	for i := 0; i < 7; i++ {
		services[d.wait(t).Service]++
	}
	require.Equal(t, 1, services["update_difficulty_level"])
	require.Equal(t, 1, services["update_team_count"])
	require.Equal(t, 5, services["update_team_participating"])

	// start_game goes out only after the grace period.
	select {
	case call := <-d.done:
		t.Fatalf("premature call %q", call.Service)
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(DefaultDelays().StartGrace)
	require.Equal(t, "start_game", d.wait(t).Service)
}
