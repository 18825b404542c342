package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/callummance/betty/streammodels"
	"github.com/callummance/betty/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//SweepSnapshots visits every live streamer with announcements, recording a new snapshot where the last one
//is old enough and detecting streams that ended without an offline event. Streamers are processed concurrently.
func (b *Bot) SweepSnapshots(ctx context.Context) (err error) {
	started := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "sweep_snapshots")
	defer func() {
		telemetry.ObserveSweep(time.Since(started))
		telemetry.EndSpan(span, err)
	}()

	all, err := b.Streamers.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list streamers: %w", err)
	}
	var live []streammodels.StreamerState
	for _, s := range all {
		if s.IsLive && s.HasAnnouncements() {
			live = append(live, s)
		}
	}
	telemetry.SetLiveStreamers(len(live))
	span.SetAttributes(attribute.Int("live_streamers", len(live)))
	logrus.Debugf("Snapshot sweep over %d live streamers", len(live))

	concurrency := b.opts.Engine.SweepConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range live {
		state := live[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					logrus.Errorf("Snapshot of %v panicked: %v", state.ID, r)
				}
			}()
			itemCtx := telemetry.NewCorrelation(ctx)
			if err := b.snapshotStreamer(itemCtx, &state); err != nil {
				telemetry.Logger(itemCtx).WithFields(logrus.Fields{"streamer_id": state.ID, "op": "snapshot"}).Warnf("Snapshot failed: %v", err)
			}
		}()
	}
	wg.Wait()
	return nil
}

func (b *Bot) snapshotStreamer(ctx context.Context, state *streammodels.StreamerState) error {
	now := b.now()
	if last, ok := state.Snapshots.Last(); ok && now.Sub(last.SnapshotTime) < b.opts.Engine.SnapshotInterval {
		return nil
	}
	log := telemetry.Logger(ctx).WithFields(logrus.Fields{"streamer_id": state.ID, "op": "snapshot"})

	stream, err := b.Platform.GetStream(ctx, state.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch stream: %w", err)
	}
	if stream == nil {
		log.Info("Streamer is no longer live, reconciling")
		_, err := b.Reconcile(ctx, state.ID)
		return err
	}

	//An upload failure skips this tick
	state.ThumbnailTemplateURL = stream.ThumbnailURL
	thumb, err := b.uploadThumbnail(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to upload thumbnail: %w", err)
	}
	if err := b.refreshLive(ctx, state, stream, now); err != nil {
		return err
	}
	state.Snapshots.Add(streammodels.Snapshot{
		SnapshotTime: now,
		GameID:       state.CurrentGameID,
		Title:        stream.Title,
		ViewerCount:  stream.ViewerCount,
		ThumbnailURL: thumb,
	}, b.opts.Engine.MaxSnapshots)

	if err := b.Streamers.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	telemetry.CountSnapshot()
	log.Debugf("Recorded snapshot %d", len(state.Snapshots))

	b.editAnnouncements(ctx, state, thumb, true, now)
	return nil
}
