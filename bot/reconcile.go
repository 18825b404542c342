package bot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/callummance/betty/streammodels"
	"github.com/callummance/betty/telemetry"
	"github.com/callummance/betty/twitch"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//Thumbnail sizes requested from the platform.
const (
	thumbnailWidth  = 1280
	thumbnailHeight = 720
)

//Transition is the outcome of comparing persisted state with a fresh observation.
type Transition int

const (
	//TransitionNone is an offline streamer observed offline.
	TransitionNone Transition = iota
	//TransitionWentLive is an offline streamer observed live.
	TransitionWentLive
	//TransitionUpdated is a live streamer observed still live.
	TransitionUpdated
	//TransitionWentOffline is a live streamer observed offline after the debounce window.
	TransitionWentOffline
	//TransitionDebounced is an offline observation ignored because the streamer only just went live.
	TransitionDebounced
)

func (t Transition) String() string {
	switch t {
	case TransitionWentLive:
		return "went_live"
	case TransitionUpdated:
		return "updated"
	case TransitionWentOffline:
		return "went_offline"
	case TransitionDebounced:
		return "debounced"
	default:
		return "none"
	}
}

//Decide picks the transition for a streamer given whether the platform currently reports them live.
func Decide(state *streammodels.StreamerState, live bool, now time.Time, debounce time.Duration) Transition {
	switch {
	case !state.IsLive && live:
		return TransitionWentLive
	case state.IsLive && live:
		return TransitionUpdated
	case state.IsLive && !live:
		if state.WentLiveAt != nil && now.Sub(*state.WentLiveAt) < debounce {
			return TransitionDebounced
		}
		return TransitionWentOffline
	default:
		return TransitionNone
	}
}

//Reconcile fetches the current live state of a streamer and applies the resulting transition to
//the persisted state, sending or editing announcements as needed.
func (b *Bot) Reconcile(ctx context.Context, streamerID string) (tr Transition, err error) {
	ctx, span := telemetry.StartSpan(ctx, "reconcile", attribute.String("streamer_id", streamerID))
	defer func() {
		span.SetAttributes(attribute.String("transition", tr.String()))
		telemetry.EndSpan(span, err)
		if err != nil {
			telemetry.CountReconciliation("error")
		} else {
			telemetry.CountReconciliation("ok")
		}
	}()
	log := telemetry.Logger(ctx).WithFields(logrus.Fields{"streamer_id": streamerID, "op": "reconcile"})

	user, err := b.Platform.GetUserByID(ctx, streamerID)
	if err != nil {
		return TransitionNone, fmt.Errorf("failed to look up streamer %v: %w", streamerID, err)
	}
	state, err := b.Streamers.Get(ctx, streamerID)
	if err != nil {
		return TransitionNone, err
	}
	if state == nil {
		log.Info("First sight of streamer, creating state")
		state = streammodels.NewStreamerState(streamerID)
	}
	refreshIdentity(state, user)

	stream, err := b.Platform.GetStream(ctx, streamerID)
	if err != nil {
		return TransitionNone, fmt.Errorf("failed to fetch stream for %v: %w", streamerID, err)
	}

	now := b.now()
	tr = Decide(state, stream != nil, now, b.opts.Engine.DebounceThreshold)
	log = log.WithField("transition", tr.String())
	switch tr {
	case TransitionWentLive:
		if err := b.goLive(ctx, state, stream, now); err != nil {
			return tr, err
		}
	case TransitionUpdated:
		if err := b.refreshLive(ctx, state, stream, now); err != nil {
			return tr, err
		}
		b.editAnnouncements(ctx, state, b.currentThumbnail(state), true, now)
	case TransitionWentOffline:
		b.goOffline(ctx, state, now)
	case TransitionDebounced:
		log.Infof("Ignoring offline signal %v after going live", now.Sub(*state.WentLiveAt).Round(time.Second))
	}

	state.Snapshots.Bound(b.opts.Engine.MaxSnapshots)
	if err := b.Streamers.Save(ctx, state); err != nil {
		return tr, fmt.Errorf("failed to persist state for %v: %w", streamerID, err)
	}
	if tr != TransitionNone {
		telemetry.CountTransition(tr.String())
		log.Debug("Reconciled streamer")
	}
	return tr, nil
}

func refreshIdentity(state *streammodels.StreamerState, user *twitch.User) {
	state.UserName = user.Login
	state.DisplayName = user.DisplayName
	state.Description = user.Description
	state.ProfileImageURL = user.ProfileImageURL
	state.OfflineImageURL = user.OfflineImageURL
}

//resolveGame returns the game for a stream, substituting the fallback id when the platform reports none.
//A game id the platform cannot resolve is a NotFoundError.
func (b *Bot) resolveGame(ctx context.Context, state *streammodels.StreamerState, stream *twitch.Stream) (twitch.Game, error) {
	gameID := stream.GameID
	if gameID == "" {
		gameID = b.opts.Engine.FallbackGameID
	}
	if gameID == state.CurrentGameID && state.CurrentGameName != "" {
		return twitch.Game{ID: gameID, Name: state.CurrentGameName, BoxArtURL: state.CurrentGameBoxArtURL}, nil
	}
	game, err := b.Platform.GetGame(ctx, gameID)
	if err != nil {
		return twitch.Game{}, fmt.Errorf("failed to look up game %v: %w", gameID, err)
	}
	if game == nil {
		return twitch.Game{}, &twitch.NotFoundError{What: "game " + gameID}
	}
	return *game, nil
}

func applyStream(state *streammodels.StreamerState, stream *twitch.Stream, game twitch.Game, now time.Time) {
	state.IsLive = true
	state.WentOfflineAt = nil
	if !stream.StartedAt.IsZero() {
		startedAt := stream.StartedAt.UTC()
		state.WentLiveAt = &startedAt
	} else if state.WentLiveAt == nil {
		state.WentLiveAt = &now
	}
	state.ThumbnailTemplateURL = stream.ThumbnailURL
	state.CurrentTitle = stream.Title
	state.CurrentViewerCount = stream.ViewerCount
	state.CurrentGameID = game.ID
	state.CurrentGameName = game.Name
	state.CurrentGameBoxArtURL = game.BoxArtURL
}

func (b *Bot) goLive(ctx context.Context, state *streammodels.StreamerState, stream *twitch.Stream, now time.Time) error {
	game, err := b.resolveGame(ctx, state, stream)
	if err != nil {
		return err
	}
	applyStream(state, stream, game, now)
	state.Games.Reset(game.ID, game.Name, now)
	b.refreshVOD(ctx, state, now)

	thumb, err := b.uploadThumbnail(ctx, state)
	if err != nil {
		logrus.Warnf("Failed to upload thumbnail for %v, linking the platform image directly: %v", state.ID, err)
	}
	state.Snapshots.Clear()
	state.Snapshots.Add(streammodels.Snapshot{
		SnapshotTime: now,
		GameID:       game.ID,
		Title:        stream.Title,
		ViewerCount:  stream.ViewerCount,
		ThumbnailURL: thumb,
	}, b.opts.Engine.MaxSnapshots)

	if b.Messenger == nil {
		return nil
	}
	for i := range state.Announcements {
		a := &state.Announcements[i]
		msg := RenderAnnouncement(state, a.AnnouncementText, thumb, true, now)
		id, err := b.Messenger.SendMessage(ctx, a.ChannelID, msg)
		if err != nil {
			logrus.Errorf("Failed to send live announcement for %v to channel %v: %v", state.ID, a.ChannelID, err)
			a.LastMessageID = ""
			continue
		}
		a.LastMessageID = id
	}
	return nil
}

//refreshLive updates the live fields of an already live streamer, opening a new game segment when the game changed.
func (b *Bot) refreshLive(ctx context.Context, state *streammodels.StreamerState, stream *twitch.Stream, now time.Time) error {
	game, err := b.resolveGame(ctx, state, stream)
	if err != nil {
		return err
	}
	applyStream(state, stream, game, now)
	if current, ok := state.Games.CurrentGameID(); !ok || current != game.ID {
		state.Games.OpenSegment(game.ID, game.Name, state.SecondsSinceLive(now), now)
	}
	b.refreshVOD(ctx, state, now)
	return nil
}

func (b *Bot) goOffline(ctx context.Context, state *streammodels.StreamerState, now time.Time) {
	state.IsLive = false
	state.WentOfflineAt = &now
	state.CurrentViewerCount = 0
	state.Games.CloseMostRecent(state.SecondsSinceLive(now))
	b.refreshVOD(ctx, state, now)

	sent := false
	for _, a := range state.Announcements {
		if a.HasSentMessage() {
			sent = true
			break
		}
	}
	if !sent {
		return
	}
	b.editAnnouncements(ctx, state, b.highlight(ctx, state), false, now)
}

//refreshVOD links the most recent stored broadcast if it is recent enough. Lookup failures keep the previous link.
func (b *Bot) refreshVOD(ctx context.Context, state *streammodels.StreamerState, now time.Time) {
	video, err := b.Platform.GetLatestArchive(ctx, state.ID)
	if err != nil {
		logrus.Warnf("Failed to look up VOD for %v: %v", state.ID, err)
		return
	}
	if video == nil || now.Sub(video.CreatedAt) > b.opts.Engine.VODMaxAge {
		state.LinkToVOD = nil
		return
	}
	link := twitch.VideoURL(video.ID)
	state.LinkToVOD = &link
}

//uploadThumbnail rehosts a cache-busted copy of the current stream thumbnail.
//On failure the cache-busted platform URL is returned along with the error.
func (b *Bot) uploadThumbnail(ctx context.Context, state *streammodels.StreamerState) (string, error) {
	raw := twitch.ThumbnailURL(state.ThumbnailTemplateURL, thumbnailWidth, thumbnailHeight) + "?random=" + uuid.NewString()
	if b.Images == nil {
		return raw, nil
	}
	hosted, err := b.Images.UploadFromURL(ctx, raw, state.UserName)
	if err != nil {
		return raw, err
	}
	return hosted, nil
}

func (b *Bot) currentThumbnail(state *streammodels.StreamerState) string {
	if last, ok := state.Snapshots.Last(); ok {
		return last.ThumbnailURL
	}
	return twitch.ThumbnailURL(state.ThumbnailTemplateURL, thumbnailWidth, thumbnailHeight)
}

//highlight builds and uploads the post-broadcast animation, falling back to the last thumbnail or the offline image.
func (b *Bot) highlight(ctx context.Context, state *streammodels.StreamerState) string {
	fallback := state.OfflineImageURL
	if last, ok := state.Snapshots.Last(); ok {
		fallback = last.ThumbnailURL
	}
	frames := state.Snapshots.HighlightFrames()
	if b.Animator == nil || b.Images == nil || len(frames) == 0 {
		return fallback
	}
	urls := make([]string, 0, len(frames))
	for _, s := range frames {
		urls = append(urls, s.ThumbnailURL)
	}
	path, err := b.Animator.Compose(ctx, urls)
	if err != nil {
		logrus.Warnf("Failed to build highlight for %v: %v", state.ID, err)
		return fallback
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			logrus.Debugf("Failed to remove %v: %v", path, err)
		}
	}()
	hosted, err := b.Images.UploadFile(ctx, path, state.UserName+"-highlight")
	if err != nil {
		logrus.Warnf("Failed to upload highlight for %v: %v", state.ID, err)
		return fallback
	}
	return hosted
}

//editAnnouncements rewrites every announcement that already has a message. Destinations that never got one are skipped.
func (b *Bot) editAnnouncements(ctx context.Context, state *streammodels.StreamerState, image string, online bool, now time.Time) {
	if b.Messenger == nil {
		return
	}
	for _, a := range state.Announcements {
		if !a.HasSentMessage() {
			continue
		}
		exists, err := b.Messenger.MessageExists(ctx, a.ChannelID, a.LastMessageID)
		if err != nil {
			logrus.Warnf("Failed to fetch announcement %v in channel %v: %v", a.LastMessageID, a.ChannelID, err)
			continue
		}
		if !exists {
			logrus.Warnf("Announcement %v in channel %v no longer exists, skipping", a.LastMessageID, a.ChannelID)
			continue
		}
		msg := RenderAnnouncement(state, a.AnnouncementText, image, online, now)
		if err := b.Messenger.EditMessage(ctx, a.ChannelID, a.LastMessageID, msg); err != nil {
			logrus.Errorf("Failed to edit announcement %v in channel %v: %v", a.LastMessageID, a.ChannelID, err)
		}
	}
}
