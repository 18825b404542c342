package db

import (
	"context"

	"github.com/callummance/betty/streammodels"
	"github.com/sirupsen/logrus"
)

//StreamersCategory is the category under which streamer states are stored.
const StreamersCategory string = "twitch"

//Streamers provides typed access to persisted streamer states.
type Streamers struct {
	store Store
}

//NewStreamers wraps a Store.
func NewStreamers(store Store) *Streamers {
	return &Streamers{store: store}
}

//Get returns the state for the given streamer id, or nil if it is not tracked.
func (s *Streamers) Get(ctx context.Context, id string) (*streammodels.StreamerState, error) {
	state, err := Get[streammodels.StreamerState](ctx, s.store, StreamersCategory, id)
	if err != nil {
		logrus.Warnf("Failed to get streamer %v due to error %v", id, err)
		return nil, err
	}
	return state, nil
}

//Save replaces the stored state for the streamer.
func (s *Streamers) Save(ctx context.Context, state *streammodels.StreamerState) error {
	return Set(ctx, s.store, StreamersCategory, state.ID, state)
}

//All returns every tracked streamer.
func (s *Streamers) All(ctx context.Context) ([]streammodels.StreamerState, error) {
	return GetAll[streammodels.StreamerState](ctx, s.store, StreamersCategory)
}

//Remove deletes the stored state for the streamer.
func (s *Streamers) Remove(ctx context.Context, id string) error {
	return s.store.Remove(ctx, StreamersCategory, id)
}
