package panel

import (
	"sort"
	"strconv"

	"github.com/mward29/triviapanel/internal/game"
	"github.com/mward29/triviapanel/internal/reconcile"
)

// ViewModel is one full view of the panel, ready for a display to render.
// Form fields always carry effective values (pending local edit if one
// exists, authoritative host value otherwise), so a display never paints
// over an in-flight edit.
type ViewModel struct {
	Screen      string       `json:"screen"`
	AdminUserID string       `json:"admin_user_id,omitempty"`
	IsAdmin     bool         `json:"is_admin"`
	Setup       *SetupView   `json:"setup,omitempty"`
	Game        *GameView    `json:"game,omitempty"`
	Summary     *SummaryView `json:"summary,omitempty"`
}

// SetupView is the game configuration form (splash screen, and the
// admin-only management panel on the main screen).
type SetupView struct {
	Difficulty  string      `json:"difficulty"`
	TimerLength int         `json:"timer_length"`
	TeamCount   int         `json:"team_count"`
	Teams       []SetupTeam `json:"teams"`
}

type SetupTeam struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

// GameView is the live game: question, countdown, team standings.
type GameView struct {
	Status    string               `json:"status"`
	Round     int                  `json:"round"`
	Question  *QuestionView        `json:"question,omitempty"`
	Countdown reconcile.TimerPatch `json:"countdown"`
	Teams     []TeamView           `json:"teams"`
}

type QuestionView struct {
	Category      string `json:"category"`
	Text          string `json:"text"`
	AnswerA       string `json:"answer_a"`
	AnswerB       string `json:"answer_b"`
	AnswerC       string `json:"answer_c"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	FunFact       string `json:"fun_fact,omitempty"`
}

type TeamView struct {
	Number           int    `json:"number"`
	Name             string `json:"name"`
	UserID           string `json:"user_id,omitempty"`
	Points           int    `json:"points"`
	Answered         bool   `json:"answered"`
	Answer           string `json:"answer,omitempty"`
	Streak           int    `json:"streak"`
	LastRoundPoints  int    `json:"last_round_points"`
	LastRoundCorrect bool   `json:"last_round_correct"`
}

// SummaryView is the end-of-game podium, teams sorted by points descending.
type SummaryView struct {
	Teams     []TeamView     `json:"teams"`
	Highlight map[string]any `json:"highlight,omitempty"`
}

// BuildViewModel assembles the view for the current snapshot. Pure: reads
// the snapshot and the form store, mutates neither.
func BuildViewModel(snap game.Snapshot, forms *reconcile.FormStore, tabletMode bool) ViewModel {
	screen := reconcile.SelectScreen(snap, tabletMode)
	vm := ViewModel{
		Screen:      screen.String(),
		AdminUserID: snap.AdminUserID(),
	}

	switch screen {
	case reconcile.ScreenLoading:
	case reconcile.ScreenSplash:
		vm.Setup = buildSetup(snap, forms)
	case reconcile.ScreenSummary:
		vm.Summary = buildSummary(snap)
	case reconcile.ScreenTablet:
		vm.Game = buildGame(snap)
	default:
		vm.Game = buildGame(snap)
		vm.Setup = buildSetup(snap, forms)
	}
	return vm
}

func buildSetup(snap game.Snapshot, forms *reconcile.FormStore) *SetupView {
	status, _ := snap.Status()

	timerLen := 30
	if n, ok := snap.TimerLength(); ok {
		timerLen = n
	}

	setup := &SetupView{
		Difficulty:  forms.Effective(reconcile.ScalarKey(reconcile.FieldDifficulty), status.Difficulty),
		TimerLength: effectiveInt(forms, reconcile.FieldTimerLength, timerLen),
		TeamCount:   effectiveInt(forms, reconcile.FieldTeamCount, status.TeamCount),
	}

	for i := 1; i <= game.MaxTeams; i++ {
		team, ok := snap.Team(i)
		if !ok && i > setup.TeamCount {
			continue
		}
		setup.Teams = append(setup.Teams, SetupTeam{
			Number: i,
			Name:   forms.Effective(reconcile.TeamKey(reconcile.FieldTeamName, i), team.Name),
			UserID: forms.Effective(reconcile.TeamKey(reconcile.FieldTeamUser, i), team.UserID),
		})
	}
	return setup
}

func buildGame(snap game.Snapshot) *GameView {
	status, _ := snap.Status()
	gv := &GameView{
		Status:    status.State,
		Round:     status.CurrentRound,
		Countdown: reconcile.BuildTimerPatch(snap),
		Teams:     buildTeams(snap, false),
	}
	if q, ok := snap.Question(); ok {
		gv.Question = &QuestionView{
			Category:      q.Category,
			Text:          q.Text,
			AnswerA:       q.AnswerA,
			AnswerB:       q.AnswerB,
			AnswerC:       q.AnswerC,
			CorrectAnswer: q.CorrectAnswer,
			FunFact:       q.FunFact,
		}
	}
	return gv
}

func buildSummary(snap game.Snapshot) *SummaryView {
	status, _ := snap.Status()
	teams := buildTeams(snap, true)
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].Points > teams[j].Points
	})
	return &SummaryView{
		Teams:     teams,
		Highlight: status.Summary,
	}
}

// buildTeams collects the team entities present in the snapshot.
// participatingOnly drops non-playing teams, which is what the summary
// podium wants.
func buildTeams(snap game.Snapshot, participatingOnly bool) []TeamView {
	var teams []TeamView
	for i := 1; i <= game.MaxTeams; i++ {
		t, ok := snap.Team(i)
		if !ok {
			continue
		}
		if participatingOnly && !t.Participating {
			continue
		}
		teams = append(teams, TeamView{
			Number:           i,
			Name:             t.Name,
			UserID:           t.UserID,
			Points:           t.Points,
			Answered:         t.Answered,
			Answer:           t.Answer,
			Streak:           t.Streak,
			LastRoundPoints:  t.LastRoundPoints,
			LastRoundCorrect: t.LastRoundCorrect,
		})
	}
	return teams
}

func effectiveInt(forms *reconcile.FormStore, field reconcile.Field, fallback int) int {
	v := forms.Effective(reconcile.ScalarKey(field), "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
