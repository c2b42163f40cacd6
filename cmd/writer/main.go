// Command writer runs the Summary Writer stage: turns a relevant post
// into a short per-user summary via the writing model.
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
	"github.com/iqnews/newsfeed/internal/ratelimit"
	"github.com/iqnews/newsfeed/internal/writer"
)

const stage = "writer"

func main() {
	common := config.LoadCommon()
	logging.Setup(stage, common.LogDir)

	brokerURL, err := config.RequireString("BROKER_URL")
	if err != nil {
		log.WithError(err).Panic("writer: missing configuration")
	}
	modelEndpoint, err := config.RequireString("WRITING_MODEL_ENDPOINT")
	if err != nil {
		log.WithError(err).Panic("writer: missing configuration")
	}
	modelKey := os.Getenv("WRITING_MODEL_API_KEY")
	rps := config.FloatOrDefault("WRITING_MODEL_RPS", 3)

	conn, err := broker.Dial(brokerURL)
	if err != nil {
		log.WithError(err).Panic("writer: failed to dial broker")
	}
	defer conn.Close()

	model := modelclient.New(modelEndpoint, modelKey, 30*time.Second)
	limiter := ratelimit.New(rps)
	svc := writer.New(conn, model, limiter)

	dispatcher := broker.NewDispatcher(conn, stage)
	dispatcher.On(events.QueueRelevantPosts, true, func(d broker.Delivery) error {
		return svc.HandleRelevantPost(context.Background(), d.Body)
	})

	stop := make(chan struct{})
	go func() {
		if err := dispatcher.Run(stop); err != nil {
			log.WithError(err).Panic("writer: dispatcher failed")
		}
	}()

	router := httpapi.NewRouter(stage, nil)
	server := &http.Server{Addr: common.BindAddress, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("writer: http server stopped")
		}
	}()

	log.WithField("bind_address", common.BindAddress).Info("writer started")
	waitForShutdown()
	close(stop)
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}
