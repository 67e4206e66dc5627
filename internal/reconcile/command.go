package reconcile

import (
	"fmt"

	"github.com/mward29/triviapanel/internal/game"
)

// Command is one outbound host service call. The set is closed: every
// variant lives in this file and knows its own service name and payload, so
// no stringly-typed dispatch keys leak out of this package.
type Command interface {
	// Service is the host service name within the trivia domain.
	Service() string
	// Data is the service payload.
	Data() map[string]any

	isCommand()
}

type SetDifficulty struct{ Level string }

func (SetDifficulty) Service() string { return "update_difficulty_level" }
func (c SetDifficulty) Data() map[string]any {
	return map[string]any{"difficulty_level": c.Level}
}

type SetTeamCount struct{ Count int }

func (SetTeamCount) Service() string { return "update_team_count" }
func (c SetTeamCount) Data() map[string]any {
	return map[string]any{"team_count": c.Count}
}

type SetTeamName struct {
	Team int
	Name string
}

func (SetTeamName) Service() string { return "update_team_name" }
func (c SetTeamName) Data() map[string]any {
	return map[string]any{"team_id": game.TeamID(c.Team), "name": c.Name}
}

type SetTeamUser struct {
	Team   int
	UserID string // empty unassigns
}

func (SetTeamUser) Service() string { return "update_team_user_id" }
func (c SetTeamUser) Data() map[string]any {
	var user any
	if c.UserID != "" {
		user = c.UserID
	}
	return map[string]any{"team_id": game.TeamID(c.Team), "user_id": user}
}

type SetTeamParticipating struct {
	Team          int
	Participating bool
}

func (SetTeamParticipating) Service() string { return "update_team_participating" }
func (c SetTeamParticipating) Data() map[string]any {
	return map[string]any{"team_id": game.TeamID(c.Team), "participating": c.Participating}
}

type SetTimerLength struct{ Seconds int }

func (SetTimerLength) Service() string { return "update_countdown_timer_length" }
func (c SetTimerLength) Data() map[string]any {
	return map[string]any{"timer_length": c.Seconds}
}

type SubmitAnswer struct {
	Team   int
	Answer string // "a", "b" or "c"
}

func (SubmitAnswer) Service() string { return "update_team_answer" }
func (c SubmitAnswer) Data() map[string]any {
	return map[string]any{"team_id": game.TeamID(c.Team), "answer": c.Answer}
}

type NextQuestion struct{}

func (NextQuestion) Service() string { return "next_question" }
func (NextQuestion) Data() map[string]any { return map[string]any{} }

type StartGame struct{}

func (StartGame) Service() string { return "start_game" }
func (StartGame) Data() map[string]any { return map[string]any{} }

type StopGame struct{}

func (StopGame) Service() string { return "stop_game" }
func (StopGame) Data() map[string]any { return map[string]any{} }

type ResetGame struct{}

func (ResetGame) Service() string { return "reset_game" }
func (ResetGame) Data() map[string]any { return map[string]any{} }

func (SetDifficulty) isCommand()        {}
func (SetTeamCount) isCommand()         {}
func (SetTeamName) isCommand()          {}
func (SetTeamUser) isCommand()          {}
func (SetTeamParticipating) isCommand() {}
func (SetTimerLength) isCommand()       {}
func (SubmitAnswer) isCommand()         {}
func (NextQuestion) isCommand()         {}
func (StartGame) isCommand()            {}
func (StopGame) isCommand()             {}
func (ResetGame) isCommand()            {}

// debounceKey yields the per-field debounce timer identity for a command.
// Per-team commands debounce independently per team.
func debounceKey(c Command) string {
	switch c := c.(type) {
	case SetTeamName:
		return fmt.Sprintf("team_name_%d", c.Team)
	case SetTeamUser:
		return fmt.Sprintf("team_user_%d", c.Team)
	case SetTeamParticipating:
		return fmt.Sprintf("team_participating_%d", c.Team)
	default:
		return c.Service()
	}
}
