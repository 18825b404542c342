package streammodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotsAddEvictsOldest(t *testing.T) {
	var snaps Snapshots
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		snaps.Add(Snapshot{SnapshotTime: base.Add(time.Duration(i) * time.Minute), ViewerCount: int64(i)}, DefaultMaxSnapshots)
	}

	require.Len(t, snaps, 50)
	assert.Equal(t, int64(10), snaps[0].ViewerCount)
	last, ok := snaps.Last()
	require.True(t, ok)
	assert.Equal(t, int64(59), last.ViewerCount)
}

func TestSnapshotsBoundAndClear(t *testing.T) {
	snaps := Snapshots{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	snaps.Bound(0)
	assert.Len(t, snaps, 3)

	snaps.Bound(2)
	require.Len(t, snaps, 2)
	assert.Equal(t, "b", snaps[0].Title)

	snaps.Clear()
	assert.Empty(t, snaps)
	_, ok := snaps.Last()
	assert.False(t, ok)
}

func TestHighlightFrames(t *testing.T) {
	assert.Len(t, Snapshots{{Title: "only"}}.HighlightFrames(), 1)
	frames := Snapshots{{Title: "soon"}, {Title: "a"}, {Title: "b"}}.HighlightFrames()
	require.Len(t, frames, 2)
	assert.Equal(t, "a", frames[0].Title)
}
