// Package repository implements the Repository RPC: one handler per
// broker queue, each wrapping an internal/pgrepo operation,
// replying over the caller's reply-to queue for request/reply traffic
// and firing a StatusNotification side-effect when SetStatus commits.
package repository

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/metrics"
	"github.com/iqnews/newsfeed/internal/models"
	"github.com/iqnews/newsfeed/internal/pgrepo"
	"github.com/iqnews/newsfeed/internal/pipeerr"
)

// Store is the subset of pgrepo.Repo the Repository RPC exercises.
type Store interface {
	CreateUser(userID int64, username string) (models.User, error)
	GetUser(userID int64) (models.User, error)
	UpdatePreferences(userID int64, preferences string) error
	UpdateAntipathy(userID int64, antipathy string) error
	SetStatus(userID int64, pro bool) error
	SubscribeFeed(userID int64, feedURL string) (models.Feed, error)
	UnsubscribeFeed(userID int64, feedURL string) error
	ListSubscriptionURLs(userID int64) ([]string, error)
}

// Publisher emits events onto the broker, used here for the fire-and-forget
// reply half of request/reply queues and the StatusNotification side-effect.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload interface{}, correlationID, replyTo string) error
}

// Service wires every Repository RPC handler to a Store.
type Service struct {
	store     Store
	publisher Publisher
}

// New builds a Service.
func New(store Store, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

func (s *Service) reply(ctx context.Context, replyTo, correlationID string, payload interface{}) error {
	if replyTo == "" {
		return nil
	}
	return s.publisher.Publish(ctx, replyTo, payload, correlationID, "")
}

// HandleCreateUser handles user.create.
func (s *Service) HandleCreateUser(ctx context.Context, body []byte) error {
	req, err := events.DecodeCreateUser(body)
	if err != nil {
		return pipeerr.Malformedf("decode create user: %w", err)
	}
	if _, err := s.store.CreateUser(req.UserID, req.Username); err != nil {
		return pipeerr.Transientf("create user: %w", err)
	}
	metrics.IncrementUsersCreated()
	return nil
}

// HandleProfileRequest handles user.profile.request (request/reply).
func (s *Service) HandleProfileRequest(ctx context.Context, body []byte, replyTo string) error {
	req, err := events.DecodeProfileRequest(body)
	if err != nil {
		return pipeerr.Malformedf("decode profile request: %w", err)
	}

	user, err := s.store.GetUser(req.UserID)
	if err != nil {
		reply := events.ProfileReply{Status: events.StatusError, Message: "user not found"}
		return s.reply(ctx, replyTo, req.CorrelationID, reply)
	}

	reply := events.ProfileReply{
		Status: events.StatusSuccess,
		Data: &events.ProfileData{
			UserID:      user.ID,
			Username:    user.Username,
			IsPro:       user.Pro,
			Preferences: user.Preferences,
			Antipathies: user.Antipathies,
		},
	}
	return s.reply(ctx, replyTo, req.CorrelationID, reply)
}

// HandlePreferencesUpdate handles user.preferences.update.
func (s *Service) HandlePreferencesUpdate(ctx context.Context, body []byte) error {
	req, err := events.DecodePreferencesUpdate(body)
	if err != nil {
		return pipeerr.Malformedf("decode preferences update: %w", err)
	}
	if err := s.store.UpdatePreferences(req.UserID, req.Preferences); err != nil {
		if err == pgrepo.ErrNotFound {
			log.WithField("user_id", req.UserID).Info("preferences update: user not found, treating as success")
			return nil
		}
		return pipeerr.Transientf("update preferences: %w", err)
	}
	return nil
}

// HandleAntipathyUpdate handles user.antipathy.update.
func (s *Service) HandleAntipathyUpdate(ctx context.Context, body []byte) error {
	req, err := events.DecodeAntipathyUpdate(body)
	if err != nil {
		return pipeerr.Malformedf("decode antipathy update: %w", err)
	}
	if err := s.store.UpdateAntipathy(req.UserID, req.Antipathy); err != nil {
		if err == pgrepo.ErrNotFound {
			log.WithField("user_id", req.UserID).Info("antipathy update: user not found, treating as success")
			return nil
		}
		return pipeerr.Transientf("update antipathy: %w", err)
	}
	return nil
}

// HandleSetStatus handles user.set_status.id and user.set_status.username.
// On success it fires a StatusNotification onto the affected user's
// delivery path.
func (s *Service) HandleSetStatus(ctx context.Context, body []byte) error {
	req, err := events.DecodeSetStatus(body)
	if err != nil {
		return pipeerr.Malformedf("decode set status: %w", err)
	}
	if err := s.store.SetStatus(req.UserID, req.Status == events.StatusPro); err != nil {
		if err == pgrepo.ErrNotFound {
			log.WithField("user_id", req.UserID).Info("set status: user not found, treating as success")
			return nil
		}
		return pipeerr.Transientf("set status: %w", err)
	}

	notification := events.StatusNotification{UserID: req.UserID, Status: req.Status, CorrelationID: req.CorrelationID}
	if err := s.publisher.Publish(ctx, events.QueueUserStatusNotification, notification, req.CorrelationID, ""); err != nil {
		log.WithError(err).WithField("user_id", req.UserID).Warn("failed to publish status notification")
	}
	return nil
}

// HandleFeedSubscribe handles rss.feed.subscribe.
func (s *Service) HandleFeedSubscribe(ctx context.Context, body []byte) error {
	req, err := events.DecodeFeedSubscribe(body)
	if err != nil {
		return pipeerr.Malformedf("decode feed subscribe: %w", err)
	}
	if _, err := s.store.SubscribeFeed(req.UserID, req.FeedURL); err != nil {
		return pipeerr.Transientf("subscribe feed: %w", err)
	}
	metrics.IncrementFeedsAdded()
	return nil
}

// HandleFeedUnsubscribe handles rss.feed.unsubscribe.
func (s *Service) HandleFeedUnsubscribe(ctx context.Context, body []byte) error {
	req, err := events.DecodeFeedUnsubscribe(body)
	if err != nil {
		return pipeerr.Malformedf("decode feed unsubscribe: %w", err)
	}
	if err := s.store.UnsubscribeFeed(req.UserID, req.FeedURL); err != nil {
		return pipeerr.Transientf("unsubscribe feed: %w", err)
	}
	return nil
}

// HandleSubscriptionsRequest handles user.rss.subscriptions (request/reply).
func (s *Service) HandleSubscriptionsRequest(ctx context.Context, body []byte, replyTo string) error {
	req, err := events.DecodeSubscriptionsRequest(body)
	if err != nil {
		return pipeerr.Malformedf("decode subscriptions request: %w", err)
	}
	urls, err := s.store.ListSubscriptionURLs(req.UserID)
	if err != nil {
		return pipeerr.Transientf("list subscriptions: %w", err)
	}
	return s.reply(ctx, replyTo, req.CorrelationID, events.SubscriptionsReply{URLs: urls})
}
