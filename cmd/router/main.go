// Command router runs the Delivery Router stage: paces finished digest
// entries out to each user's own delivery endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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
	"github.com/iqnews/newsfeed/internal/mailbox"
	"github.com/iqnews/newsfeed/internal/router"
)

const stage = "router"

// httpSend posts the delivery to the front-end's webhook. The front-end
// itself is just a consumer of delivery messages and owns no logic here.
func httpSend(endpoint string, client *http.Client) mailbox.Sender {
	return func(ctx context.Context, m mailbox.Message) error {
		body, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal delivery: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build delivery request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("deliver to front-end: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("front-end delivery endpoint returned status %d", resp.StatusCode)
		}
		return nil
	}
}

func main() {
	common := config.LoadCommon()
	logging.Setup(stage, common.LogDir)

	brokerURL, err := config.RequireString("BROKER_URL")
	if err != nil {
		log.WithError(err).Panic("router: missing configuration")
	}
	deliveryEndpoint, err := config.RequireString("DELIVERY_ENDPOINT")
	if err != nil {
		log.WithError(err).Panic("router: missing configuration")
	}
	pacing := config.DurationOrDefault("USER_PACING_INTERVAL", 3*time.Minute)

	conn, err := broker.Dial(brokerURL)
	if err != nil {
		log.WithError(err).Panic("router: failed to dial broker")
	}
	defer conn.Close()

	send := httpSend(deliveryEndpoint, &http.Client{Timeout: 10 * time.Second})
	svc := router.New(send, pacing)
	defer svc.Shutdown(30 * time.Second)

	dispatcher := broker.NewDispatcher(conn, stage)
	// Auto-ack: an occasional duplicate delivery on this hot path is
	// harmless, and the pacing goroutine downstream already serializes
	// sends per user.
	dispatcher.On(events.QueueReadyPosts, false, func(d broker.Delivery) error {
		return svc.HandleReadyPost(context.Background(), d.Body)
	})

	stop := make(chan struct{})
	go func() {
		if err := dispatcher.Run(stop); err != nil {
			log.WithError(err).Panic("router: dispatcher failed")
		}
	}()

	apiRouter := httpapi.NewRouter(stage, nil)
	server := &http.Server{Addr: common.BindAddress, Handler: apiRouter}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("router: http server stopped")
		}
	}()

	log.WithField("bind_address", common.BindAddress).Info("router started")
	waitForShutdown()
	close(stop)
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}
