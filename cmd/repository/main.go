// Command repository runs the Repository RPC stage: one broker dispatcher
// handler per queue, backed by internal/pgrepo.
package main

import (
	"context"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/iqnews/newsfeed/internal/broker"
	"github.com/iqnews/newsfeed/internal/config"
	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/httpapi"
	"github.com/iqnews/newsfeed/internal/logging"
	"github.com/iqnews/newsfeed/internal/pgrepo"
	"github.com/iqnews/newsfeed/internal/repository"
)

const stage = "repository"

// seedFeed is one entry of the optional SEED_FEEDS_FILE bootstrap list.
type seedFeed struct {
	URL string `yaml:"url"`
}

// seedFeeds inserts the feeds listed in path if the feed table is
// currently empty, giving a fresh deployment a handful of curated
// starter feeds instead of an empty catalog.
func seedFeeds(repo *pgrepo.Repo, path string) {
	existing, err := repo.ListFeeds()
	if err != nil {
		log.WithError(err).Warn("repository: failed to check existing feeds before seeding")
		return
	}
	if len(existing) > 0 {
		return
	}

	contents, err := ioutil.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("seed_feeds_file", path).Warn("repository: failed to read seed feeds file")
		return
	}
	var seeds []seedFeed
	if err := yaml.Unmarshal(contents, &seeds); err != nil {
		log.WithError(err).WithField("seed_feeds_file", path).Warn("repository: failed to parse seed feeds file")
		return
	}
	for _, s := range seeds {
		if _, err := repo.EnsureFeed(s.URL); err != nil {
			log.WithError(err).WithField("feed_url", s.URL).Warn("repository: failed to seed feed")
		}
	}
	log.WithField("count", len(seeds)).Info("repository: seeded feeds from file")
}

func main() {
	common := config.LoadCommon()
	logging.Setup(stage, common.LogDir)

	brokerURL, err := config.RequireString("BROKER_URL")
	if err != nil {
		log.WithError(err).Panic("repository: missing configuration")
	}
	databaseType, err := config.RequireString("DATABASE_TYPE")
	if err != nil {
		log.WithError(err).Panic("repository: missing configuration")
	}
	databaseURL, err := config.RequireString("DATABASE_URL")
	if err != nil {
		log.WithError(err).Panic("repository: missing configuration")
	}

	repo, err := pgrepo.Open(databaseType, databaseURL)
	if err != nil {
		log.WithError(err).Panic("repository: failed to open database")
	}
	defer repo.Close()

	if seedFile := os.Getenv("SEED_FEEDS_FILE"); seedFile != "" {
		seedFeeds(repo, seedFile)
	}

	conn, err := broker.Dial(brokerURL)
	if err != nil {
		log.WithError(err).Panic("repository: failed to dial broker")
	}
	defer conn.Close()

	svc := repository.New(repo, conn)

	dispatcher := broker.NewDispatcher(conn, stage)
	dispatcher.On(events.QueueUserCreate, true, func(d broker.Delivery) error {
		return svc.HandleCreateUser(context.Background(), d.Body)
	})
	dispatcher.On(events.QueueUserProfileRequest, true, func(d broker.Delivery) error {
		return svc.HandleProfileRequest(context.Background(), d.Body, d.ReplyTo)
	})
	dispatcher.On(events.QueueUserPreferencesUpdate, true, func(d broker.Delivery) error {
		return svc.HandlePreferencesUpdate(context.Background(), d.Body)
	})
	dispatcher.On(events.QueueUserAntipathyUpdate, true, func(d broker.Delivery) error {
		return svc.HandleAntipathyUpdate(context.Background(), d.Body)
	})
	dispatcher.On(events.QueueUserSetStatusByID, true, func(d broker.Delivery) error {
		return svc.HandleSetStatus(context.Background(), d.Body)
	})
	// Both set-status queues carry the same {user_id, status, correlation_id}
	// payload; the "by username" variant is the front-end's routing
	// choice, not a different repository operation.
	dispatcher.On(events.QueueUserSetStatusByUsername, true, func(d broker.Delivery) error {
		return svc.HandleSetStatus(context.Background(), d.Body)
	})
	dispatcher.On(events.QueueFeedSubscribe, true, func(d broker.Delivery) error {
		return svc.HandleFeedSubscribe(context.Background(), d.Body)
	})
	dispatcher.On(events.QueueFeedUnsubscribe, true, func(d broker.Delivery) error {
		return svc.HandleFeedUnsubscribe(context.Background(), d.Body)
	})
	dispatcher.On(events.QueueUserSubscriptions, true, func(d broker.Delivery) error {
		return svc.HandleSubscriptionsRequest(context.Background(), d.Body, d.ReplyTo)
	})

	stop := make(chan struct{})
	go func() {
		if err := dispatcher.Run(stop); err != nil {
			log.WithError(err).Panic("repository: dispatcher failed")
		}
	}()

	router := httpapi.NewRouter(stage, nil)
	server := &http.Server{Addr: common.BindAddress, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("repository: http server stopped")
		}
	}()

	log.WithField("bind_address", common.BindAddress).Info("repository started")
	waitForShutdown()
	close(stop)
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}
