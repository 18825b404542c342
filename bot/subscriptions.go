package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/callummance/betty/telemetry"
	"github.com/callummance/betty/twitch"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//trackedSubscriptionTypes are the event types every announced streamer needs.
var trackedSubscriptionTypes = []string{twitch.SubscriptionStreamOnline, twitch.SubscriptionStreamOffline}

//SubscriptionReport summarizes one subscription pass.
type SubscriptionReport struct {
	Created   int
	Deleted   int
	Unchanged int
}

type subscriptionKey struct {
	broadcasterID string
	subType       string
}

//VerifySubscriptions makes the platform's event subscriptions match the set of streamers with announcements.
//It never touches streamer state, and a second run without changes in between makes no calls besides listing.
func (b *Bot) VerifySubscriptions(ctx context.Context) (report SubscriptionReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "verify_subscriptions")
	defer func() {
		span.SetAttributes(
			attribute.Int("created", report.Created),
			attribute.Int("deleted", report.Deleted),
		)
		telemetry.EndSpan(span, err)
	}()

	streamers, err := b.Streamers.All(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list streamers: %w", err)
	}
	desired := make(map[string]string)
	for _, s := range streamers {
		if s.HasAnnouncements() {
			desired[s.ID] = s.UserName
		}
	}

	subs, err := b.Subscriptions.ListSubscriptions(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	existing := make(map[subscriptionKey][]twitch.Subscription)
	for _, sub := range subs {
		k := subscriptionKey{broadcasterID: sub.Condition.BroadcasterUserID, subType: sub.Type}
		existing[k] = append(existing[k], sub)
	}

	var errs []error
	deleteSub := func(sub twitch.Subscription, reason string) {
		logrus.Infof("Deleting %v subscription %v for %v: %v", sub.Type, sub.ID, sub.Condition.BroadcasterUserID, reason)
		if err := b.Subscriptions.DeleteSubscription(ctx, sub.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %v: %w", sub.ID, err))
			return
		}
		report.Deleted++
		telemetry.CountSubscriptionChange("delete")
	}

	for id, login := range desired {
		callback := twitch.CallbackURL(b.opts.CallbackURL, id, login)
		for _, subType := range trackedSubscriptionTypes {
			kept := false
			for _, sub := range existing[subscriptionKey{broadcasterID: id, subType: subType}] {
				switch {
				case kept:
					deleteSub(sub, "duplicate")
				case sub.Transport.Callback != callback:
					deleteSub(sub, "callback mismatch")
				case !sub.Healthy():
					deleteSub(sub, "status "+sub.Status)
				default:
					kept = true
				}
			}
			if kept {
				report.Unchanged++
				continue
			}
			logrus.Infof("Creating %v subscription for %v", subType, id)
			if _, err := b.Subscriptions.CreateSubscription(ctx, subType, id, callback, b.opts.WebhookSecret); err != nil {
				errs = append(errs, fmt.Errorf("create %v for %v: %w", subType, id, err))
				continue
			}
			report.Created++
			telemetry.CountSubscriptionChange("create")
		}
	}

	if b.opts.PruneSubscriptions {
		for _, sub := range subs {
			if _, wanted := desired[sub.Condition.BroadcasterUserID]; wanted {
				continue
			}
			if sub.CallbackHasPrefix(b.opts.CallbackURL) {
				deleteSub(sub, "streamer no longer announced")
			}
		}
	}

	logrus.Infof("Subscription pass complete: %d created, %d deleted, %d unchanged", report.Created, report.Deleted, report.Unchanged)
	return report, errors.Join(errs...)
}
