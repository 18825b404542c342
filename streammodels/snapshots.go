package streammodels

import "time"

//DefaultMaxSnapshots is the number of snapshots kept per live session unless configured otherwise.
const DefaultMaxSnapshots = 50

//Snapshot is a point-in-time observation of a live stream.
type Snapshot struct {
	SnapshotTime time.Time `json:"snapshot_time"`
	GameID       string    `json:"game_id"`
	Title        string    `json:"title"`
	ViewerCount  int64     `json:"viewer_count"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

//Snapshots is the capacity-bounded, time-ordered list of snapshots for the current live session.
type Snapshots []Snapshot

//Add appends a snapshot and evicts the oldest entries while more than max are held.
func (s *Snapshots) Add(snap Snapshot, max int) {
	*s = append(*s, snap)
	s.Bound(max)
}

//Bound evicts from the front until at most max snapshots remain. A non-positive max leaves the list untouched.
func (s *Snapshots) Bound(max int) {
	if max <= 0 || len(*s) <= max {
		return
	}
	excess := len(*s) - max
	kept := make(Snapshots, max)
	copy(kept, (*s)[excess:])
	*s = kept
}

//Clear empties the list. Used exactly when a new live session starts.
func (s *Snapshots) Clear() {
	*s = Snapshots{}
}

//Last returns the most recent snapshot.
func (s Snapshots) Last() (Snapshot, bool) {
	if len(s) == 0 {
		return Snapshot{}, false
	}
	return s[len(s)-1], true
}

//HighlightFrames returns the snapshots used for the post-broadcast animation.
//The first one is usually a "starting soon" screen, so it is dropped when there is more than one.
func (s Snapshots) HighlightFrames() Snapshots {
	if len(s) > 1 {
		return s[1:]
	}
	return s
}
