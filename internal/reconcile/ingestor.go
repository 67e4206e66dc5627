package reconcile

import (
	"fmt"

	"github.com/mward29/triviapanel/internal/game"
)

// Decision is what the ingestor tells the render path to do with a new
// snapshot. Repaint false with a non-nil TimerPatch means: leave the screen
// alone but update the countdown label and progress bar in place.
type Decision struct {
	Repaint    bool
	TimerPatch *TimerPatch
}

// TimerPatch carries the narrow countdown update applied without a repaint,
// so answer buttons and focused inputs survive the one-second ticks.
type TimerPatch struct {
	SecondsLeft int     `json:"seconds_left"`
	Running     bool    `json:"running"`
	TimeUp      bool    `json:"time_up"`
	Warning     bool    `json:"warning"`
	ProgressPct float64 `json:"progress_pct"`
}

// warningThreshold is the seconds-remaining mark at which displays restyle
// the countdown.
const warningThreshold = 5

// Ingestor classifies each inbound snapshot against the previous one and
// decides whether the panel repaints. It is a pure classifier: no side
// effects, and missing entities are treated as unset, never an error.
type Ingestor struct {
	guard      *Guard
	forms      *FormStore
	tabletMode bool
}

func NewIngestor(guard *Guard, forms *FormStore, tabletMode bool) *Ingestor {
	return &Ingestor{guard: guard, forms: forms, tabletMode: tabletMode}
}

// Classify decides what to do with snapshot cur given its predecessor prev
// (nil on first delivery).
//
// Priority order: first paint and screen transitions always repaint. On the
// splash screen a repaint is suppressed while a form is being edited or
// unconfirmed edits are outstanding, because splash is all form. On the
// game screens only the watch-list of displayed fields triggers a repaint;
// a change in the countdown seconds alone yields a timer patch instead.
func (in *Ingestor) Classify(prev, cur game.Snapshot) Decision {
	if prev == nil {
		return Decision{Repaint: true}
	}

	prevScreen := SelectScreen(prev, in.tabletMode)
	curScreen := SelectScreen(cur, in.tabletMode)
	if prevScreen != curScreen {
		return Decision{Repaint: true}
	}

	if curScreen == ScreenSplash {
		if in.guard.Editing() || in.forms.HasPending() {
			return Decision{}
		}
		return Decision{Repaint: true}
	}

	if significantChange(prev, cur) {
		return Decision{Repaint: true}
	}

	if countdownTicked(prev, cur) {
		p := BuildTimerPatch(cur)
		return Decision{TimerPatch: &p}
	}

	return Decision{}
}

// watchStatusAttrs are the game-status attributes whose change repaints the
// game screens.
var watchStatusAttrs = []string{
	"difficulty_level",
	"team_count",
	"current_round",
	"game_summary",
}

// watchTeamAttrs are the team attributes whose change repaints the game
// screens.
var watchTeamAttrs = []string{
	"points",
	"participating",
	"answered",
	"answer",
	"last_round_points",
	"correct_answer_streak",
}

// significantChange reports whether anything on the game-screen watch list
// moved between the two snapshots: game status, question content, team
// standing, the countdown running flag, or any watched entity appearing or
// disappearing. Countdown seconds are deliberately excluded; they tick every
// second and get patched in place instead.
func significantChange(prev, cur game.Snapshot) bool {
	if entityChanged(prev, cur, game.EntityGameStatus, watchStatusAttrs) {
		return true
	}
	if entityChanged(prev, cur, game.EntityCurrentQuestion, []string{"question"}) {
		return true
	}
	for i := 1; i <= game.MaxTeams; i++ {
		if entityChanged(prev, cur, game.TeamEntity(i), watchTeamAttrs) {
			return true
		}
	}

	// Countdown: presence and the running flag matter, the ticking state
	// value does not.
	pc, pok := prev[game.EntityCountdown]
	cc, cok := cur[game.EntityCountdown]
	if pok != cok {
		return true
	}
	if pok && attrValue(pc.Attributes, "is_running") != attrValue(cc.Attributes, "is_running") {
		return true
	}

	return false
}

// entityChanged reports whether the entity's state value, or any of the
// listed attributes, differs between the snapshots. A nil attribute list
// compares the state value only.
func entityChanged(prev, cur game.Snapshot, entity string, attrs []string) bool {
	pe, pok := prev[entity]
	ce, cok := cur[entity]
	if pok != cok {
		return true
	}
	if !pok {
		return false
	}
	if pe.State != ce.State {
		return true
	}
	for _, a := range attrs {
		if attrValue(pe.Attributes, a) != attrValue(ce.Attributes, a) {
			return true
		}
	}
	return false
}

// attrValue normalizes an attribute for comparison. Comparing via fmt-style
// stringification keeps this total over the any-typed attribute values.
func attrValue(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	v, ok := attrs[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

func countdownTicked(prev, cur game.Snapshot) bool {
	pc, pok := prev[game.EntityCountdown]
	cc, cok := cur[game.EntityCountdown]
	return pok && cok && pc.State != cc.State
}

// BuildTimerPatch derives the in-place countdown update from a snapshot.
// Progress is measured against the countdown's own initial time, falling
// back to the configured timer length, then to 30 seconds.
func BuildTimerPatch(snap game.Snapshot) TimerPatch {
	cd, _ := snap.Countdown()

	length := cd.InitialTime
	if length <= 0 {
		if n, ok := snap.TimerLength(); ok {
			length = n
		} else {
			length = 30
		}
	}

	patch := TimerPatch{
		SecondsLeft: cd.Remaining,
		Running:     cd.Running,
		TimeUp:      cd.Remaining <= 0,
		Warning:     cd.Remaining <= warningThreshold && cd.Remaining > 0 && cd.Running,
	}
	if cd.Running && length > 0 {
		pct := float64(cd.Remaining) / float64(length) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		patch.ProgressPct = pct
	}
	return patch
}
