package streammodels

import "time"

//GameEvent is one contiguous segment of a broadcast during which a single game was played.
//DurationSeconds is nil while the segment is still running.
type GameEvent struct {
	EventTime        time.Time `json:"event_time"`
	SecondsSinceLive int64     `json:"seconds_since_live"`
	DurationSeconds  *int64    `json:"duration_seconds,omitempty"`
	GameID           string    `json:"game_id"`
	GameName         string    `json:"game_name"`
}

//IsOpen reports whether the segment is still running.
func (g GameEvent) IsOpen() bool {
	return g.DurationSeconds == nil
}

//GameEvents is the ordered timeline of game segments for a broadcast. At most the last entry is open.
type GameEvents []GameEvent

//OpenSegment closes the running segment (if any) and starts a new one at secondsSinceLive.
func (g *GameEvents) OpenSegment(gameID, gameName string, secondsSinceLive int64, at time.Time) {
	g.CloseMostRecent(secondsSinceLive)
	*g = append(*g, GameEvent{
		EventTime:        at,
		SecondsSinceLive: secondsSinceLive,
		GameID:           gameID,
		GameName:         gameName,
	})
}

//CloseMostRecent sets the duration of the running segment, if there is one.
func (g GameEvents) CloseMostRecent(secondsSinceLive int64) {
	if len(g) == 0 {
		return
	}
	last := &g[len(g)-1]
	if !last.IsOpen() {
		return
	}
	d := secondsSinceLive - last.SecondsSinceLive
	if d < 0 {
		d = 0
	}
	last.DurationSeconds = &d
}

//CurrentGameID returns the game id of the most recent segment.
func (g GameEvents) CurrentGameID() (string, bool) {
	if len(g) == 0 {
		return "", false
	}
	return g[len(g)-1].GameID, true
}

//Reset replaces the timeline with a single open segment starting at second 0.
func (g *GameEvents) Reset(gameID, gameName string, at time.Time) {
	*g = GameEvents{{
		EventTime:        at,
		SecondsSinceLive: 0,
		GameID:           gameID,
		GameName:         gameName,
	}}
}
