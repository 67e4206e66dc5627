package reconcile

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mward29/triviapanel/internal/game"
)

// Dispatcher issues service calls to the host. Calls are fire-and-forget
// from the panel's point of view; the returned error only decides whether
// the matching optimistic entry is cleared.
type Dispatcher interface {
	CallService(ctx context.Context, service string, data map[string]any) error
}

// Sink receives render instructions from the controller. The panel's
// display hub implements it; what the instructions turn into visually is
// not this package's concern.
type Sink interface {
	// Repaint replaces the whole view for the given snapshot.
	Repaint(snap game.Snapshot)
	// PatchTimer updates the countdown label and progress bar in place.
	PatchTimer(patch TimerPatch)
	// FlashScore highlights a team that just scored.
	FlashScore(team, points int)
}

// Delays are the per-field-class debounce windows.
type Delays struct {
	// Select covers discrete selections (difficulty, team count,
	// participation) where the last click is almost always final.
	Select time.Duration
	// Dropdown covers selects a user is likely to flick through.
	Dropdown time.Duration
	// Text covers free-text fields typed one keystroke at a time.
	Text time.Duration
	// StartGrace is how long a game start waits after flushing pending
	// settings so they land on the host first.
	StartGrace time.Duration
	// Frame is the window within which repaint requests coalesce.
	Frame time.Duration
}

// DefaultDelays returns the stock debounce windows.
func DefaultDelays() Delays {
	return Delays{
		Select:     100 * time.Millisecond,
		Dropdown:   500 * time.Millisecond,
		Text:       800 * time.Millisecond,
		StartGrace: 800 * time.Millisecond,
		Frame:      16 * time.Millisecond,
	}
}

// GuardWindow is the default dropdown interaction lock duration.
const GuardWindow = 800 * time.Millisecond

// callTimeout bounds a single outbound service call.
const callTimeout = 10 * time.Second

// Controller owns the whole reconciliation state for one panel instance:
// the optimistic form store, the keyed debounce timers, the interaction
// guard and the last snapshot. Snapshots come in from the host client,
// interaction events come in from the displays, render instructions go out
// through the bound Sink.
type Controller struct {
	clock      clockwork.Clock
	dispatcher Dispatcher
	delays     Delays

	forms    *FormStore
	guard    *Guard
	debounce *Debouncer
	ingestor *Ingestor

	mu             sync.Mutex
	sink           Sink
	last           game.Snapshot
	repaintPending bool
}

func NewController(clock clockwork.Clock, dispatcher Dispatcher, delays Delays, guardWindow time.Duration, tabletMode bool) *Controller {
	forms := NewFormStore()
	guard := NewGuard(clock, guardWindow)
	return &Controller{
		clock:      clock,
		dispatcher: dispatcher,
		delays:     delays,
		forms:      forms,
		guard:      guard,
		debounce:   NewDebouncer(clock),
		ingestor:   NewIngestor(guard, forms, tabletMode),
	}
}

// Bind attaches the render sink. Snapshots arriving before Bind are
// recorded but produce no render instructions.
func (c *Controller) Bind(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Forms exposes the optimistic store to the view-model builder, which must
// read every form value through it.
func (c *Controller) Forms() *FormStore { return c.forms }

// Guard exposes the interaction guard to the display message router.
func (c *Controller) Guard() *Guard { return c.guard }

// Snapshot returns the most recent snapshot, or nil before the first
// delivery.
func (c *Controller) Snapshot() game.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Stop cancels all pending debounced commands.
func (c *Controller) Stop() { c.debounce.Stop() }

// OnSnapshot ingests one authoritative snapshot from the host.
func (c *Controller) OnSnapshot(cur game.Snapshot) {
	c.mu.Lock()
	prev := c.last
	c.last = cur
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		for _, f := range scoreFlashes(prev, cur) {
			sink.FlashScore(f.team, f.points)
		}
	}

	dec := c.ingestor.Classify(prev, cur)
	switch {
	case dec.Repaint:
		c.requestRepaint()
	case dec.TimerPatch != nil:
		if sink != nil {
			sink.PatchTimer(*dec.TimerPatch)
		}
	}
}

// requestRepaint coalesces repaint requests: however many invalidations
// land within one frame window, the sink repaints once, with whatever
// snapshot is current when the frame fires.
func (c *Controller) requestRepaint() {
	c.mu.Lock()
	if c.repaintPending || c.sink == nil {
		c.mu.Unlock()
		return
	}
	c.repaintPending = true
	c.mu.Unlock()

	c.clock.AfterFunc(c.delays.Frame, func() {
		c.mu.Lock()
		c.repaintPending = false
		snap := c.last
		sink := c.sink
		c.mu.Unlock()
		if sink != nil {
			sink.Repaint(snap)
		}
	})
}

type scoreFlash struct{ team, points int }

// scoreFlashes finds teams whose round points just became positive while
// their totals moved, i.e. a fresh score rather than a plain refresh.
func scoreFlashes(prev, cur game.Snapshot) []scoreFlash {
	if prev == nil || cur == nil {
		return nil
	}
	var flashes []scoreFlash
	for i := 1; i <= game.MaxTeams; i++ {
		pt, pok := prev.Team(i)
		ct, cok := cur.Team(i)
		if !pok || !cok {
			continue
		}
		if ct.LastRoundPoints > 0 && ct.LastRoundPoints != pt.LastRoundPoints && ct.Points != pt.Points {
			flashes = append(flashes, scoreFlash{team: i, points: ct.LastRoundPoints})
		}
	}
	return flashes
}

// EditDifficulty records a difficulty selection and schedules the update.
func (c *Controller) EditDifficulty(level string) {
	c.forms.Set(ScalarKey(FieldDifficulty), level)
	c.schedule(SetDifficulty{Level: level}, c.delays.Select, ScalarKey(FieldDifficulty))
}

// EditTeamCount records a team count selection and schedules the update.
func (c *Controller) EditTeamCount(count int) {
	c.forms.Set(ScalarKey(FieldTeamCount), itoa(count))
	c.schedule(SetTeamCount{Count: count}, c.delays.Select, ScalarKey(FieldTeamCount))
}

// EditTimerLength records a countdown length selection and schedules the
// update. Timer length is a dropdown, so the change arms the interaction
// guard.
func (c *Controller) EditTimerLength(seconds int) {
	c.guard.LockDropdown()
	c.forms.Set(ScalarKey(FieldTimerLength), itoa(seconds))
	c.schedule(SetTimerLength{Seconds: seconds}, c.delays.Dropdown, ScalarKey(FieldTimerLength))
}

// EditTeamName records a keystroke-level team name edit. The rename is sent
// once typing pauses; a name that trims to nothing is never sent, the
// pending value just keeps shadowing the authoritative one.
func (c *Controller) EditTeamName(team int, name string) {
	key := TeamKey(FieldTeamName, team)
	c.forms.Set(key, name)

	trimmed := strings.TrimSpace(name)
	cmd := SetTeamName{Team: team, Name: trimmed}
	if trimmed == "" {
		c.debounce.Cancel(debounceKey(cmd))
		return
	}
	c.schedule(cmd, c.delays.Text, key)
}

// EditTeamUser records a team user assignment from a dropdown. The change
// arms the interaction guard so the echo does not repaint mid-selection.
func (c *Controller) EditTeamUser(team int, userID string) {
	c.guard.LockDropdown()
	key := TeamKey(FieldTeamUser, team)
	c.forms.Set(key, userID)
	c.schedule(SetTeamUser{Team: team, UserID: userID}, c.delays.Dropdown, key)
}

// ToggleParticipating schedules a participation flag change for one team.
func (c *Controller) ToggleParticipating(team int, participating bool) {
	c.schedule(SetTeamParticipating{Team: team, Participating: participating}, c.delays.Select)
}

// SubmitAnswer sends a team's answer immediately; answers are never
// debounced.
func (c *Controller) SubmitAnswer(team int, answer string) {
	c.dispatch(SubmitAnswer{Team: team, Answer: answer})
}

// NextQuestion advances the game immediately.
func (c *Controller) NextQuestion() { c.dispatch(NextQuestion{}) }

// StopGame stops the game immediately.
func (c *Controller) StopGame() { c.dispatch(StopGame{}) }

// ResetGame resets the game immediately.
func (c *Controller) ResetGame() { c.dispatch(ResetGame{}) }

// StartGame aligns participation with the effective team count, flushes
// every pending debounced setting so the host sees the final form values,
// then starts the game after a short grace period.
func (c *Controller) StartGame() {
	snap := c.Snapshot()
	count := 0
	if status, ok := snap.Status(); ok {
		count = status.TeamCount
	}
	if v := c.forms.Effective(ScalarKey(FieldTeamCount), ""); v != "" {
		count = parseCount(v, count)
	}
	if count > 0 {
		for i := 1; i <= game.MaxTeams; i++ {
			c.schedule(SetTeamParticipating{Team: i, Participating: i <= count}, c.delays.Select)
		}
	}

	c.debounce.Flush()

	c.clock.AfterFunc(c.delays.StartGrace, func() {
		c.dispatch(StartGame{})
	})
}

// schedule arms the debounce timer for a command; on fire the command is
// dispatched and, on confirmed success, the given pending entries clear.
func (c *Controller) schedule(cmd Command, delay time.Duration, clear ...FormKey) {
	c.debounce.Schedule(debounceKey(cmd), delay, func() {
		c.dispatch(cmd, clear...)
	})
}

// dispatch issues one service call in the background. Failure keeps the
// optimistic entries so the user's edit survives for a manual retry; there
// is no automatic retry.
func (c *Controller) dispatch(cmd Command, clear ...FormKey) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		if err := c.dispatcher.CallService(ctx, cmd.Service(), cmd.Data()); err != nil {
			log.Warn().
				Err(err).
				Str("service", cmd.Service()).
				Msg("service call failed; keeping pending edit")
			return
		}
		for _, k := range clear {
			c.forms.Clear(k)
		}
	}()
}

func itoa(n int) string { return strconv.Itoa(n) }

func parseCount(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > game.MaxTeams {
		return fallback
	}
	return n
}
