// Package httpapi builds the small HTTP surface every stage exposes:
// /metrics (prometheus) and /healthz. The JSON handler wrapper is the
// teacher's server.MakeJSONAPI pattern (server/server.go), generalized
// to a plain function type since this pipeline has no auth/CORS concerns.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// JSONHandler responds to a request with a JSON-encodable value, or an error.
type JSONHandler func(r *http.Request) (interface{}, error)

// wrap adapts a JSONHandler into an httprouter.Handle.
func wrap(stage string, h JSONHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		res, err := h(r)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			log.WithFields(log.Fields{"stage": stage, "err": err}).Error("request failed")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

// NewRouter builds the standard httprouter for a stage: /healthz always,
// /metrics via promhttp, plus any additional JSON routes supplied.
func NewRouter(stage string, extra map[string]JSONHandler) *httprouter.Router {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.GET("/healthz", wrap(stage, func(r *http.Request) (interface{}, error) {
		return map[string]string{"status": "ok", "stage": stage}, nil
	}))
	for path, handler := range extra {
		router.GET(path, wrap(stage, handler))
	}
	return router
}
