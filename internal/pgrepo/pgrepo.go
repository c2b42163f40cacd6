// Package pgrepo is the Repository RPC's backing store: a thin
// database/sql layer over either Postgres (lib/pq, production) or
// sqlite3 (mattn/go-sqlite3, local/dev/test), selected by a database
// type string.
package pgrepo

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iqnews/newsfeed/internal/models"
)

// ErrNotFound is returned when a lookup by ID/URL finds no row.
var ErrNotFound = errors.New("pgrepo: not found")

// Repo is the Repository RPC's store.
type Repo struct {
	db *sql.DB
}

// Open opens databaseType ("postgres" or "sqlite3") at databaseURL and
// ensures the schema exists.
func Open(databaseType, databaseURL string) (*Repo, error) {
	db, err := sql.Open(databaseType, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	if databaseType == "sqlite3" {
		// Fix for "database is locked" errors, same as database/db.go.
		db.SetMaxOpenConns(1)
	}
	return &Repo{db: db}, nil
}

// Close closes the underlying database pool.
func (r *Repo) Close() error { return r.db.Close() }

func runTransaction(db *sql.DB, fn func(txn *sql.Tx) error) (err error) {
	txn, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			txn.Rollback()
			panic(p)
		} else if err != nil {
			txn.Rollback()
		} else {
			err = txn.Commit()
		}
	}()
	err = fn(txn)
	return err
}

// CreateUser is idempotent on user ID: if the user already exists, the
// existing row is returned untouched.
func (r *Repo) CreateUser(userID int64, username string) (models.User, error) {
	var user models.User
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		existing, err := selectUserTxn(txn, userID)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		now := time.Now()
		if _, err := txn.Exec(
			`INSERT INTO users (user_id, username, is_pro, preferences, antipathies, created_at_ms) VALUES ($1, $2, 0, '', '', $3)`,
			userID, username, now.UnixMilli(),
		); err != nil {
			return err
		}
		user = models.User{ID: userID, Username: username, CreatedAt: now}
		return nil
	})
	return user, err
}

// GetUser loads a user profile by ID, returning ErrNotFound if absent.
func (r *Repo) GetUser(userID int64) (models.User, error) {
	var user models.User
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		u, err := selectUserTxn(txn, userID)
		user = u
		return err
	})
	return user, err
}

func selectUserTxn(txn *sql.Tx, userID int64) (models.User, error) {
	var u models.User
	var createdMs int64
	var isPro int
	err := txn.QueryRow(
		`SELECT user_id, username, is_pro, preferences, antipathies, created_at_ms FROM users WHERE user_id = $1`,
		userID,
	).Scan(&u.ID, &u.Username, &isPro, &u.Preferences, &u.Antipathies, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Pro = isPro != 0
	u.CreatedAt = time.UnixMilli(createdMs)
	return u, nil
}

// UpdatePreferences overwrites a user's preferences text. Returns
// ErrNotFound if the user doesn't exist.
func (r *Repo) UpdatePreferences(userID int64, preferences string) error {
	return runTransaction(r.db, func(txn *sql.Tx) error {
		res, err := txn.Exec(`UPDATE users SET preferences = $1 WHERE user_id = $2`, preferences, userID)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// UpdateAntipathy overwrites a user's antipathies text.
func (r *Repo) UpdateAntipathy(userID int64, antipathy string) error {
	return runTransaction(r.db, func(txn *sql.Tx) error {
		res, err := txn.Exec(`UPDATE users SET antipathies = $1 WHERE user_id = $2`, antipathy, userID)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// SetStatus is idempotent on (user, status): setting the same status
// twice is a no-op that still reports success.
func (r *Repo) SetStatus(userID int64, pro bool) error {
	return runTransaction(r.db, func(txn *sql.Tx) error {
		isPro := 0
		if pro {
			isPro = 1
		}
		res, err := txn.Exec(`UPDATE users SET is_pro = $1 WHERE user_id = $2`, isPro, userID)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// getOrCreateFeedTxn finds a feed by URL or creates one, returning its row.
func getOrCreateFeedTxn(txn *sql.Tx, url string) (models.Feed, error) {
	feed, err := selectFeedByURLTxn(txn, url)
	if err == nil {
		return feed, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return feed, err
	}
	feed = models.Feed{ID: uuid.NewString(), URL: url, CreatedAt: time.Now()}
	_, err = txn.Exec(
		`INSERT INTO rss_feeds (feed_id, url, created_at_ms, last_post_date_ms) VALUES ($1, $2, $3, 0)`,
		feed.ID, feed.URL, feed.CreatedAt.UnixMilli(),
	)
	return feed, err
}

func selectFeedByURLTxn(txn *sql.Tx, url string) (models.Feed, error) {
	return selectFeedTxn(txn, `SELECT feed_id, url, created_at_ms, last_post_date_ms FROM rss_feeds WHERE url = $1`, url)
}

// EnsureFeed returns the feed row for url, creating it if absent. Used
// by the optional seed-feed bootstrap to pre-populate feeds with no
// subscriber yet attached.
func (r *Repo) EnsureFeed(url string) (models.Feed, error) {
	var feed models.Feed
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		f, err := getOrCreateFeedTxn(txn, url)
		feed = f
		return err
	})
	return feed, err
}

// SelectFeedByID loads a feed by its primary key.
func (r *Repo) SelectFeedByID(feedID string) (models.Feed, error) {
	var feed models.Feed
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		f, err := selectFeedTxn(txn, `SELECT feed_id, url, created_at_ms, last_post_date_ms FROM rss_feeds WHERE feed_id = $1`, feedID)
		feed = f
		return err
	})
	return feed, err
}

func selectFeedTxn(txn *sql.Tx, query string, arg interface{}) (models.Feed, error) {
	var f models.Feed
	var createdMs, lastPostMs int64
	err := txn.QueryRow(query, arg).Scan(&f.ID, &f.URL, &createdMs, &lastPostMs)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	f.CreatedAt = time.UnixMilli(createdMs)
	if lastPostMs > 0 {
		f.LastPostDate = time.UnixMilli(lastPostMs)
	}
	return f, nil
}

// ListFeeds returns every known feed, for the Feed Poller's per-tick listing.
func (r *Repo) ListFeeds() ([]models.Feed, error) {
	var feeds []models.Feed
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		rows, err := txn.Query(`SELECT feed_id, url, created_at_ms, last_post_date_ms FROM rss_feeds`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var f models.Feed
			var createdMs, lastPostMs int64
			if err := rows.Scan(&f.ID, &f.URL, &createdMs, &lastPostMs); err != nil {
				return err
			}
			f.CreatedAt = time.UnixMilli(createdMs)
			if lastPostMs > 0 {
				f.LastPostDate = time.UnixMilli(lastPostMs)
			}
			feeds = append(feeds, f)
		}
		return rows.Err()
	})
	return feeds, err
}

// SubscribeFeed is idempotent on (user, feed): subscribing an
// already-subscribed pair is a no-op. The feed row is created on first
// subscription.
func (r *Repo) SubscribeFeed(userID int64, feedURL string) (models.Feed, error) {
	var feed models.Feed
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		f, err := getOrCreateFeedTxn(txn, feedURL)
		if err != nil {
			return err
		}
		feed = f

		var existing string
		err = txn.QueryRow(`SELECT subscription_id FROM subscriptions WHERE user_id = $1 AND feed_id = $2`, userID, feed.ID).Scan(&existing)
		if err == nil {
			return nil // already subscribed: no-op
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = txn.Exec(
			`INSERT INTO subscriptions (subscription_id, user_id, feed_id, created_at_ms) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), userID, feed.ID, time.Now().UnixMilli(),
		)
		return err
	})
	return feed, err
}

// UnsubscribeFeed is idempotent; unsubscribing an absent pair is a
// no-op. If the feed has zero remaining subscribers afterwards, the feed
// row is deleted in the same transaction.
func (r *Repo) UnsubscribeFeed(userID int64, feedURL string) error {
	return runTransaction(r.db, func(txn *sql.Tx) error {
		feed, err := selectFeedByURLTxn(txn, feedURL)
		if errors.Is(err, ErrNotFound) {
			return nil // feed never existed: no-op
		}
		if err != nil {
			return err
		}

		if _, err := txn.Exec(`DELETE FROM subscriptions WHERE user_id = $1 AND feed_id = $2`, userID, feed.ID); err != nil {
			return err
		}

		var remaining int
		if err := txn.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE feed_id = $1`, feed.ID).Scan(&remaining); err != nil {
			return err
		}
		if remaining == 0 {
			if _, err := txn.Exec(`DELETE FROM rss_feeds WHERE feed_id = $1`, feed.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountSubscribers counts subscribers of a feed keyed by its primary key
// rather than its URL, since the URL is not guaranteed stable.
func (r *Repo) CountSubscribers(feedID string) (int, error) {
	var n int
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		return txn.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE feed_id = $1`, feedID).Scan(&n)
	})
	return n, err
}

// ListSubscriberIDs returns every user ID subscribed to feedID.
func (r *Repo) ListSubscriberIDs(feedID string) ([]int64, error) {
	var ids []int64
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		rows, err := txn.Query(`SELECT user_id FROM subscriptions WHERE feed_id = $1`, feedID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// ListSubscriptionURLs returns the feed URLs a user is subscribed to.
func (r *Repo) ListSubscriptionURLs(userID int64) ([]string, error) {
	var urls []string
	err := runTransaction(r.db, func(txn *sql.Tx) error {
		rows, err := txn.Query(
			`SELECT f.url FROM subscriptions s JOIN rss_feeds f ON f.feed_id = s.feed_id WHERE s.user_id = $1`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var u string
			if err := rows.Scan(&u); err != nil {
				return err
			}
			urls = append(urls, u)
		}
		return rows.Err()
	})
	return urls, err
}

// InsertPosts inserts newPosts and advances feed.LastPostDate to the
// maximum published time among them, in a single transaction. The
// watermark never moves backward: a replayed insert is a no-op against it.
func (r *Repo) InsertPosts(feedID string, newPosts []models.Post) error {
	if len(newPosts) == 0 {
		return nil
	}
	return runTransaction(r.db, func(txn *sql.Tx) error {
		var maxPublished time.Time
		for _, p := range newPosts {
			if _, err := txn.Exec(
				`INSERT INTO rss_posts (post_id, feed_id, title, content, link, published_at_ms) VALUES ($1, $2, $3, $4, $5, $6)`,
				p.ID, feedID, p.Title, p.Content, p.Link, p.PublishedAt.UnixMilli(),
			); err != nil {
				return err
			}
			if p.PublishedAt.After(maxPublished) {
				maxPublished = p.PublishedAt
			}
		}
		var currentMs int64
		if err := txn.QueryRow(`SELECT last_post_date_ms FROM rss_feeds WHERE feed_id = $1`, feedID).Scan(&currentMs); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if maxPublished.UnixMilli() <= currentMs {
			return nil
		}
		_, err := txn.Exec(`UPDATE rss_feeds SET last_post_date_ms = $1 WHERE feed_id = $2`, maxPublished.UnixMilli(), feedID)
		return err
	})
}
