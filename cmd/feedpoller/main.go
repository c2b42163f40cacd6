// Command feedpoller runs the Feed Poller stage: fetches every registered
// feed on a timer, emitting the entries newer than its stored watermark.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iqnews/newsfeed/internal/broker"
	"github.com/iqnews/newsfeed/internal/config"
	"github.com/iqnews/newsfeed/internal/extractor"
	"github.com/iqnews/newsfeed/internal/feedreader"
	"github.com/iqnews/newsfeed/internal/httpapi"
	"github.com/iqnews/newsfeed/internal/logging"
	"github.com/iqnews/newsfeed/internal/pgrepo"
	"github.com/iqnews/newsfeed/internal/poller"
)

const stage = "feedpoller"

func main() {
	common := config.LoadCommon()
	logging.Setup(stage, common.LogDir)

	brokerURL, err := config.RequireString("BROKER_URL")
	if err != nil {
		log.WithError(err).Panic("feedpoller: missing configuration")
	}
	databaseType, err := config.RequireString("DATABASE_TYPE")
	if err != nil {
		log.WithError(err).Panic("feedpoller: missing configuration")
	}
	databaseURL, err := config.RequireString("DATABASE_URL")
	if err != nil {
		log.WithError(err).Panic("feedpoller: missing configuration")
	}

	tickInterval := config.DurationOrDefault("POLL_INTERVAL", time.Minute)
	fanOut := config.IntOrDefault("POLL_FAN_OUT", 5)

	repo, err := pgrepo.Open(databaseType, databaseURL)
	if err != nil {
		log.WithError(err).Panic("feedpoller: failed to open database")
	}
	defer repo.Close()

	conn, err := broker.Dial(brokerURL)
	if err != nil {
		log.WithError(err).Panic("feedpoller: failed to dial broker")
	}
	defer conn.Close()

	p := poller.New(repo, conn, feedreader.New(), extractor.New(), tickInterval, fanOut)

	stop := make(chan struct{})
	go p.Run(stop)

	router := httpapi.NewRouter(stage, nil)
	server := &http.Server{Addr: common.BindAddress, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("feedpoller: http server stopped")
		}
	}()

	log.WithField("bind_address", common.BindAddress).Info("feedpoller started")
	waitForShutdown()
	close(stop)
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}
