package pgrepo

// schemaSQL creates the four tables backing the repository, in an
// inline CREATE-TABLE-IF-NOT-EXISTS style.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	username TEXT NOT NULL,
	is_pro BOOLEAN NOT NULL DEFAULT 0,
	preferences TEXT NOT NULL DEFAULT '',
	antipathies TEXT NOT NULL DEFAULT '',
	created_at_ms BIGINT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_idx ON users(username);

CREATE TABLE IF NOT EXISTS rss_feeds (
	feed_id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	created_at_ms BIGINT NOT NULL,
	last_post_date_ms BIGINT NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS rss_feeds_url_idx ON rss_feeds(url);

CREATE TABLE IF NOT EXISTS rss_posts (
	post_id TEXT PRIMARY KEY,
	feed_id TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	link TEXT NOT NULL,
	published_at_ms BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
	subscription_id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	feed_id TEXT NOT NULL,
	created_at_ms BIGINT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_user_feed_idx ON subscriptions(user_id, feed_id);
`
