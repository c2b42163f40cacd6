// Package models holds the repository's domain types: Feed, Post, User
// and Subscription.
package models

import "time"

// Feed is a polled RSS/Atom source. Identity is a UUID; URL is unique.
// LastPostDate is the deduplication watermark: the maximum PublishedAt of
// any Post ever emitted from this feed.
type Feed struct {
	ID           string
	URL          string
	CreatedAt    time.Time
	LastPostDate time.Time
}

// Post is one feed entry, immutable once created.
type Post struct {
	ID          string
	FeedID      string
	Title       string
	Content     string
	Link        string
	PublishedAt time.Time
}

// User is an external subscriber, identified by a numeric external ID
// supplied by the front-end.
type User struct {
	ID          int64
	Username    string
	CreatedAt   time.Time
	Pro         bool
	Preferences string
	Antipathies string
}

// Subscription ties one User to one Feed. At most one row may exist per
// (UserID, FeedID) pair.
type Subscription struct {
	ID        string
	UserID    int64
	FeedID    string
	CreatedAt time.Time
}
