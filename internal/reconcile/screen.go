package reconcile

import "github.com/mward29/triviapanel/internal/game"

// Screen is one of the mutually exclusive top-level panel modes.
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenSplash
	ScreenSummary
	ScreenTablet
	ScreenMain
)

func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenSplash:
		return "splash"
	case ScreenSummary:
		return "summary"
	case ScreenTablet:
		return "tablet"
	case ScreenMain:
		return "main"
	}
	return "unknown"
}

// SelectScreen maps a snapshot to the screen the panel must show. Pure and
// deterministic; safe to call on the same snapshot any number of times.
//
// A stopped game always shows the summary, even if other entities are
// missing. Splash is shown while the minimum entities (game status and team
// 1) have not been created yet, which is the explicit signal that the game
// still needs configuring.
func SelectScreen(snap game.Snapshot, tabletMode bool) Screen {
	if snap == nil {
		return ScreenLoading
	}
	status, ok := snap.Status()
	if ok && status.State == game.StatusStopped {
		return ScreenSummary
	}
	if !ok {
		return ScreenSplash
	}
	if _, ok := snap.Team(1); !ok {
		return ScreenSplash
	}
	if tabletMode {
		return ScreenTablet
	}
	return ScreenMain
}
