package game

import "fmt"

// Entity IDs published by the trivia integration on the host.
const (
	EntityGameStatus      = "sensor.home_trivia_game_status"
	EntityCurrentQuestion = "sensor.home_trivia_current_question"
	EntityCountdown       = "sensor.home_trivia_countdown_current"
	EntityTimerLength     = "sensor.home_trivia_countdown_timer"

	// MaxTeams is the number of team entities the host exposes.
	MaxTeams = 5
)

// Game status values reported by the host.
const (
	StatusIdle    = "idle"
	StatusPlaying = "playing"
	StatusStopped = "stopped"
)

// TeamEntity returns the entity ID for team n (1-based).
func TeamEntity(n int) string {
	return fmt.Sprintf("sensor.home_trivia_team_%d", n)
}

// TeamID returns the host-side team identifier for team n, e.g. "team_2".
func TeamID(n int) string {
	return fmt.Sprintf("team_%d", n)
}

// EntityState is one host entity as delivered by the state API.
type EntityState struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Snapshot is one full read of the host's trivia entities, keyed by entity
// ID. A snapshot is immutable once built; each host refresh produces a new
// one. Absent entities and attributes are tolerated everywhere and read as
// zero values.
type Snapshot map[string]EntityState

// Status describes the overall game status entity.
type Status struct {
	State        string
	Difficulty   string
	TeamCount    int
	CurrentRound int
	Summary      map[string]any
}

// Team describes one team entity. Name is the entity state itself.
type Team struct {
	Name             string
	UserID           string
	Participating    bool
	Points           int
	Answered         bool
	Answer           string
	LastRoundAnswer  string
	LastRoundCorrect bool
	LastRoundPoints  int
	Streak           int
}

// Question describes the current-question entity attributes.
type Question struct {
	Category      string
	Text          string
	AnswerA       string
	AnswerB       string
	AnswerC       string
	CorrectAnswer string
	FunFact       string
}

// Countdown describes the live countdown entity. Remaining is the entity
// state parsed as seconds.
type Countdown struct {
	Remaining   int
	Running     bool
	InitialTime int
}

// Status returns the overall game status, reporting ok=false when the
// entity has not been created yet.
func (s Snapshot) Status() (Status, bool) {
	e, ok := s[EntityGameStatus]
	if !ok {
		return Status{}, false
	}
	return Status{
		State:        e.State,
		Difficulty:   attrString(e.Attributes, "difficulty_level"),
		TeamCount:    attrInt(e.Attributes, "team_count"),
		CurrentRound: attrInt(e.Attributes, "current_round"),
		Summary:      attrMap(e.Attributes, "game_summary"),
	}, true
}

// Team returns team n (1-based), reporting ok=false when the entity is
// absent.
func (s Snapshot) Team(n int) (Team, bool) {
	e, ok := s[TeamEntity(n)]
	if !ok {
		return Team{}, false
	}
	return Team{
		Name:             e.State,
		UserID:           attrString(e.Attributes, "user_id"),
		Participating:    attrBool(e.Attributes, "participating"),
		Points:           attrInt(e.Attributes, "points"),
		Answered:         attrBool(e.Attributes, "answered"),
		Answer:           attrString(e.Attributes, "answer"),
		LastRoundAnswer:  attrString(e.Attributes, "last_round_answer"),
		LastRoundCorrect: attrBool(e.Attributes, "last_round_correct"),
		LastRoundPoints:  attrInt(e.Attributes, "last_round_points"),
		Streak:           attrInt(e.Attributes, "correct_answer_streak"),
	}, true
}

// Question returns the current question, reporting ok=false when the entity
// is absent.
func (s Snapshot) Question() (Question, bool) {
	e, ok := s[EntityCurrentQuestion]
	if !ok {
		return Question{}, false
	}
	return Question{
		Category:      attrString(e.Attributes, "category"),
		Text:          attrString(e.Attributes, "question"),
		AnswerA:       attrString(e.Attributes, "answer_a"),
		AnswerB:       attrString(e.Attributes, "answer_b"),
		AnswerC:       attrString(e.Attributes, "answer_c"),
		CorrectAnswer: attrString(e.Attributes, "correct_answer"),
		FunFact:       attrString(e.Attributes, "fun_fact"),
	}, true
}

// Countdown returns the live countdown state, reporting ok=false when the
// entity is absent.
func (s Snapshot) Countdown() (Countdown, bool) {
	e, ok := s[EntityCountdown]
	if !ok {
		return Countdown{}, false
	}
	return Countdown{
		Remaining:   parseInt(e.State),
		Running:     attrBool(e.Attributes, "is_running"),
		InitialTime: attrInt(e.Attributes, "initial_time"),
	}, true
}

// TimerLength returns the configured countdown length in seconds, reporting
// ok=false when the entity is absent or unparseable.
func (s Snapshot) TimerLength() (int, bool) {
	e, ok := s[EntityTimerLength]
	if !ok {
		return 0, false
	}
	n := parseInt(e.State)
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// AdminUserID returns the host user that owns team 1. Admin-only controls
// are gated on this user.
func (s Snapshot) AdminUserID() string {
	t, ok := s.Team(1)
	if !ok {
		return ""
	}
	return t.UserID
}
