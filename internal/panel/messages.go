package panel

import "github.com/mward29/triviapanel/internal/reconcile"

// Frame types pushed to displays.
const (
	frameView       = "view"
	frameTimerPatch = "timer_patch"
	frameScoreFlash = "score_flash"
)

// Message types accepted from displays.
const (
	msgHello    = "hello"
	msgFocus    = "focus"
	msgBlur     = "blur"
	msgEdit     = "edit"
	msgAnswer   = "answer"
	msgAction   = "action"
	msgLanguage = "language"
)

// frame is one outbound push to a display.
type frame struct {
	Type       string                `json:"type"`
	View       *ViewModel            `json:"view,omitempty"`
	TimerPatch *reconcile.TimerPatch `json:"timer_patch,omitempty"`
	ScoreFlash *scoreFlashFrame      `json:"score_flash,omitempty"`
	Language   string                `json:"language,omitempty"`
}

type scoreFlashFrame struct {
	Team   int `json:"team"`
	Points int `json:"points"`
}

// displayMessage is one inbound interaction event from a display.
//
// hello:    identifies the display (display_id, user_id); answered with the
//           current view and the stored language preference.
// focus /
// blur:     a form control (control) gained or lost focus.
// edit:     a form field changed: field, team (per-team fields), value.
//           Dropdown-class fields also arm the interaction guard.
// answer:   a team picked an answer: team, value ("a"|"b"|"c").
// action:   a game-flow button: value in start|stop|reset|next. Admin only.
// language: the display picked a language: value is the code; persisted.
type displayMessage struct {
	Type      string `json:"type"`
	DisplayID string `json:"display_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Control   string `json:"control,omitempty"`
	Field     string `json:"field,omitempty"`
	Team      int    `json:"team,omitempty"`
	Value     string `json:"value,omitempty"`
}

// Edit field names accepted on the wire.
const (
	editDifficulty    = "difficulty"
	editTeamCount     = "team_count"
	editTeamName      = "team_name"
	editTeamUser      = "team_user"
	editTimerLength   = "timer_length"
	editParticipating = "participating"
)

// Action values accepted on the wire.
const (
	actionStart = "start"
	actionStop  = "stop"
	actionReset = "reset"
	actionNext  = "next"
)
