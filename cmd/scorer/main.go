// Command scorer runs the Relevance Scorer stage: scores each new post
// against every subscriber's stored preferences and forwards the ones
// worth summarizing.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iqnews/newsfeed/internal/broker"
	"github.com/iqnews/newsfeed/internal/config"
	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/httpapi"
	"github.com/iqnews/newsfeed/internal/logging"
	"github.com/iqnews/newsfeed/internal/modelclient"
	"github.com/iqnews/newsfeed/internal/pgrepo"
	"github.com/iqnews/newsfeed/internal/ratelimit"
	"github.com/iqnews/newsfeed/internal/scorer"
)

const stage = "scorer"

type profileReader struct {
	repo *pgrepo.Repo
}

func (p profileReader) GetProfile(_ context.Context, userID int64) (string, string, error) {
	user, err := p.repo.GetUser(userID)
	if err != nil {
		return "", "", err
	}
	return user.Preferences, user.Antipathies, nil
}

func main() {
	common := config.LoadCommon()
	logging.Setup(stage, common.LogDir)

	brokerURL, err := config.RequireString("BROKER_URL")
	if err != nil {
		log.WithError(err).Panic("scorer: missing configuration")
	}
	databaseType, err := config.RequireString("DATABASE_TYPE")
	if err != nil {
		log.WithError(err).Panic("scorer: missing configuration")
	}
	databaseURL, err := config.RequireString("DATABASE_URL")
	if err != nil {
		log.WithError(err).Panic("scorer: missing configuration")
	}
	modelEndpoint, err := config.RequireString("SCORING_MODEL_ENDPOINT")
	if err != nil {
		log.WithError(err).Panic("scorer: missing configuration")
	}
	modelKey := os.Getenv("SCORING_MODEL_API_KEY")

	threshold := config.IntOrDefault("RELEVANCE_THRESHOLD", 65)
	rps := config.FloatOrDefault("SCORING_MODEL_RPS", 5)
	maxAge := config.DurationOrDefault("SCORER_MAX_POST_AGE", 0)

	repo, err := pgrepo.Open(databaseType, databaseURL)
	if err != nil {
		log.WithError(err).Panic("scorer: failed to open database")
	}
	defer repo.Close()

	conn, err := broker.Dial(brokerURL)
	if err != nil {
		log.WithError(err).Panic("scorer: failed to dial broker")
	}
	defer conn.Close()

	model := modelclient.New(modelEndpoint, modelKey, 30*time.Second)
	limiter := ratelimit.New(rps)

	svc := scorer.New(profileReader{repo: repo}, conn, model, limiter, threshold, maxAge)

	dispatcher := broker.NewDispatcher(conn, stage)
	dispatcher.On(events.QueueNewPosts, true, func(d broker.Delivery) error {
		return svc.HandleNewPost(context.Background(), d.Body)
	})

	stop := make(chan struct{})
	go func() {
		if err := dispatcher.Run(stop); err != nil {
			log.WithError(err).Panic("scorer: dispatcher failed")
		}
	}()

	router := httpapi.NewRouter(stage, nil)
	server := &http.Server{Addr: common.BindAddress, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("scorer: http server stopped")
		}
	}()

	log.WithField("bind_address", common.BindAddress).Info("scorer started")
	waitForShutdown()
	close(stop)
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}
