/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/massenz/slf4go/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/statemachine"
	"github.com/massenz/state-service/storage"
)

const (
	StateEndpoint   = "/state"
	ChartEndpoint   = "/chart"
	HealthEndpoint  = "/health"
	MetricsEndpoint = "/metrics"
)

// Predictor returns the predicted state for each row of features, using the model `name`.
type Predictor interface {
	Predict(name string, rows [][]float64) ([]string, error)
}

var (
	// Release carries the version of the binary, as set by the build script
	// See: https://blog.alexellis.io/inject-build-time-vars-golang/
	Release string

	shouldTrace bool
	logger      = log.NewLog("server")

	machine   *statemachine.Machine
	store     storage.ChartStore
	predictor Predictor
)

func trace(endpoint string) func() {
	if !shouldTrace {
		return func() {}
	}
	start := time.Now()
	logger.Trace("Handling: [%s]\n", endpoint)
	return func() { logger.Trace("%s took %s\n", endpoint, time.Since(start)) }
}

func defaultContent(w http.ResponseWriter) {
	w.Header().Add(ContentType, ApplicationJson)
}

// statusFor maps the API errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, api.NotFoundError):
		return http.StatusNotFound
	case errors.Is(err, api.MalformedChartError):
		return http.StatusBadRequest
	case errors.Is(err, api.InvalidOperationError):
		return http.StatusConflict
	case errors.Is(err, api.NotBuiltError):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func EnableTracing() {
	shouldTrace = true
	logger.Level = log.TRACE
}

func SetLogLevel(level log.LogLevel) {
	logger.Level = level
}

// NewRouter returns a gorilla/mux Router for the server routes; exposed so
// that handlers are testable.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(HealthEndpoint, HealthHandler).Methods("GET")
	r.HandleFunc(StateEndpoint, GetStateHandler).Methods("GET")
	r.HandleFunc(StateEndpoint, UpdateStateHandler).Methods("PUT")
	r.HandleFunc(StateEndpoint, PredictHandler).Methods("POST")
	r.HandleFunc(ChartEndpoint, GetChartHandler).Methods("GET")
	r.Handle(MetricsEndpoint, promhttp.Handler()).Methods("GET")
	return r
}

func NewHTTPServer(addr string, logLevel log.LogLevel) *http.Server {
	logger.Level = logLevel
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func SetMachine(m *statemachine.Machine) {
	machine = m
}

func SetStore(s storage.ChartStore) {
	store = s
}

func SetPredictor(p Predictor) {
	predictor = p
}
