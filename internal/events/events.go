// Package events defines the typed JSON payloads carried on every queue,
// each with required fields validated on decode rather than treated as
// an open map.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrMalformedInput is returned when a payload is missing a required field.
type ErrMalformedInput struct {
	Queue string
	Field string
}

func (e *ErrMalformedInput) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Queue, e.Field)
}

// CreateUser is published on user.create.
type CreateUser struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeCreateUser(b []byte) (CreateUser, error) {
	var m CreateUser
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"user.create", "user_id"}
	}
	if m.Username == "" {
		return m, &ErrMalformedInput{"user.create", "username"}
	}
	return m, nil
}

// ProfileRequest is the request half of user.profile.request.
type ProfileRequest struct {
	UserID        int64  `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeProfileRequest(b []byte) (ProfileRequest, error) {
	var m ProfileRequest
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"user.profile.request", "user_id"}
	}
	return m, nil
}

// ProfileStatus enumerates the reply status for ProfileReply.
type ProfileStatus string

const (
	StatusSuccess ProfileStatus = "success"
	StatusError   ProfileStatus = "error"
)

// ProfileData is the payload returned on a successful ProfileReply.
type ProfileData struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	IsPro       bool   `json:"is_pro"`
	Preferences string `json:"preferences"`
	Antipathies string `json:"antipathies"`
}

// ProfileReply is the reply half of user.profile.request.
type ProfileReply struct {
	Status  ProfileStatus `json:"status"`
	Data    *ProfileData  `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

// PreferencesUpdate is published on user.preferences.update.
type PreferencesUpdate struct {
	UserID        int64  `json:"user_id"`
	Preferences   string `json:"preferences"`
	CorrelationID string `json:"correlation_id"`
}

func DecodePreferencesUpdate(b []byte) (PreferencesUpdate, error) {
	var m PreferencesUpdate
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"user.preferences.update", "user_id"}
	}
	return m, nil
}

// AntipathyUpdate is published on user.antipathy.update.
type AntipathyUpdate struct {
	UserID        int64  `json:"user_id"`
	Antipathy     string `json:"antipathy"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeAntipathyUpdate(b []byte) (AntipathyUpdate, error) {
	var m AntipathyUpdate
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"user.antipathy.update", "user_id"}
	}
	return m, nil
}

// Status enumerates the pro/free status used by SetStatus and StatusNotification.
type Status string

const (
	StatusPro  Status = "pro"
	StatusFree Status = "free"
)

// SetStatus is published on user.set_status.id or user.set_status.username.
type SetStatus struct {
	UserID        int64  `json:"user_id"`
	Status        Status `json:"status"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeSetStatus(b []byte) (SetStatus, error) {
	var m SetStatus
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"user.set_status", "user_id"}
	}
	if m.Status != StatusPro && m.Status != StatusFree {
		return m, &ErrMalformedInput{"user.set_status", "status"}
	}
	return m, nil
}

// StatusNotification is published on user.status.notification.
type StatusNotification struct {
	UserID        int64  `json:"user_id"`
	Status        Status `json:"status"`
	CorrelationID string `json:"correlation_id"`
}

// FeedSubscribe is published on rss.feed.subscribe.
type FeedSubscribe struct {
	UserID        int64  `json:"user_id"`
	FeedURL       string `json:"feed_url"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeFeedSubscribe(b []byte) (FeedSubscribe, error) {
	var m FeedSubscribe
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"rss.feed.subscribe", "user_id"}
	}
	if m.FeedURL == "" {
		return m, &ErrMalformedInput{"rss.feed.subscribe", "feed_url"}
	}
	return m, nil
}

// FeedUnsubscribe is published on rss.feed.unsubscribe.
type FeedUnsubscribe struct {
	UserID        int64  `json:"user_id"`
	FeedURL       string `json:"feed_url"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeFeedUnsubscribe(b []byte) (FeedUnsubscribe, error) {
	var m FeedUnsubscribe
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"rss.feed.unsubscribe", "user_id"}
	}
	if m.FeedURL == "" {
		return m, &ErrMalformedInput{"rss.feed.unsubscribe", "feed_url"}
	}
	return m, nil
}

// SubscriptionsRequest is the request half of user.rss.subscriptions.
type SubscriptionsRequest struct {
	UserID        int64  `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeSubscriptionsRequest(b []byte) (SubscriptionsRequest, error) {
	var m SubscriptionsRequest
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"user.rss.subscriptions", "user_id"}
	}
	return m, nil
}

// SubscriptionsReply is the reply half of user.rss.subscriptions.
type SubscriptionsReply struct {
	URLs []string `json:"urls"`
}

// NewPost is published by the Feed Poller onto rss.new_posts.
type NewPost struct {
	PublishedAt     time.Time `json:"published_at"`
	FeedURL         string    `json:"feed_url"`
	PostTitle       string    `json:"post_title"`
	PostLink        string    `json:"post_link"`
	PostContent     string    `json:"post_content"`
	FeedSubscribers []int64   `json:"feed_subscribers"`
	CorrelationID   string    `json:"correlation_id"`
}

func DecodeNewPost(b []byte) (NewPost, error) {
	var m NewPost
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.FeedURL == "" {
		return m, &ErrMalformedInput{"rss.new_posts", "feed_url"}
	}
	if m.PublishedAt.IsZero() {
		return m, &ErrMalformedInput{"rss.new_posts", "published_at"}
	}
	return m, nil
}

// RelevantPost is published by the Relevance Scorer onto rss.relevant_posts.
type RelevantPost struct {
	FeedURL       string `json:"feed_url"`
	PostTitle     string `json:"post_title"`
	PostLink      string `json:"post_link"`
	PostContent   string `json:"post_content"`
	UserID        int64  `json:"user_id"`
	Preferences   string `json:"preferences"`
	Rank          int    `json:"rank"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeRelevantPost(b []byte) (RelevantPost, error) {
	var m RelevantPost
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"rss.relevant_posts", "user_id"}
	}
	if m.PostLink == "" {
		return m, &ErrMalformedInput{"rss.relevant_posts", "post_link"}
	}
	return m, nil
}

// ReadyPost is published by the Summary Writer onto rss.ready_posts.
type ReadyPost struct {
	UserID        int64  `json:"user_id"`
	News          string `json:"news"`
	PostURL       string `json:"post_url"`
	FeedURL       string `json:"feed_url"`
	Rank          int    `json:"rank"`
	CorrelationID string `json:"correlation_id"`
}

func DecodeReadyPost(b []byte) (ReadyPost, error) {
	var m ReadyPost
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.UserID == 0 {
		return m, &ErrMalformedInput{"rss.ready_posts", "user_id"}
	}
	if m.News == "" {
		return m, &ErrMalformedInput{"rss.ready_posts", "news"}
	}
	return m, nil
}

// Queue names, routed on the default exchange.
const (
	QueueUserCreate              = "user.create"
	QueueUserProfileRequest      = "user.profile.request"
	QueueUserPreferencesUpdate   = "user.preferences.update"
	QueueUserAntipathyUpdate     = "user.antipathy.update"
	QueueUserSetStatusByID       = "user.set_status.id"
	QueueUserSetStatusByUsername = "user.set_status.username"
	QueueUserStatusNotification  = "user.status.notification"
	QueueFeedSubscribe           = "rss.feed.subscribe"
	QueueFeedUnsubscribe         = "rss.feed.unsubscribe"
	QueueUserSubscriptions       = "user.rss.subscriptions"
	QueueNewPosts                = "rss.new_posts"
	QueueRelevantPosts           = "rss.relevant_posts"
	QueueReadyPosts              = "rss.ready_posts"
)
