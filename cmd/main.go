/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/massenz/slf4go/logging"
	g "google.golang.org/grpc"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/grpc"
	"github.com/massenz/state-service/predictor"
	"github.com/massenz/state-service/pubsub"
	"github.com/massenz/state-service/server"
	"github.com/massenz/state-service/statemachine"
	"github.com/massenz/state-service/storage"
)

const (
	// notificationsBuffer is how many transitions can be waiting to be published
	// before they start being dropped.
	notificationsBuffer = 100
	shutdownTimeout     = 5 * time.Second
)

var (
	logger = log.NewLog("state-service")

	machine  *statemachine.Machine
	store    storage.ChartStore
	registry *predictor.Registry
	pub      *pubsub.SqsPublisher
	wg       sync.WaitGroup

	// notificationsCh carries the transitions to the SQS Publisher; it is only
	// used if a -notifications queue is defined.
	notificationsCh chan api.TransitionEvent = nil
)

func main() {
	var awsEndpoint = flag.String("endpoint-url", "",
		"HTTP URL for AWS SQS to connect to; usually best left undefined, "+
			"unless required for local testing purposes (LocalStack uses http://localhost:4566)")
	var allowMissing = flag.Bool("allow-missing", false,
		"If set, a missing chart file is replaced by a chart with a single terminal state")
	var chartName = flag.String("chart", storage.DefaultChartName,
		"The name of the chart, used as the key when storing it in Redis")
	var configDir = flag.String("config", "",
		"Directory containing the JSON configurations for the predictive models")
	var debug = flag.Bool("debug", false,
		"Verbose logs; better to avoid on Production services")
	var grpcPort = flag.Int("grpc-port", 7398, "The port for the gRPC health Server")
	var host = flag.String("host", "0.0.0.0", "The interface the HTTP server binds to")
	var noTls = flag.Bool("insecure", false, "If set, TLS will be disabled (NOT recommended)")
	var machinePath = flag.String("machine", "",
		"Path to the YAML (or JSON, if named *.json) chart for the state machine")
	var maxRetries = flag.Int("max-retries", storage.DefaultMaxRetries,
		"Max number of attempts for a recoverable error to be retried against the Redis cluster")
	var modelsDir = flag.String("models", "", "Directory containing the models' artifacts")
	var notificationsTopic = flag.String("notifications", "",
		"(optional) The name of the topic to publish transitions to; if not "+
			"specified, no transitions will be published")
	var port = flag.Int("port", 7399, "The port for the HTTP server")
	var redisUrl = flag.String("redis", "", "The host:port for the Redis instance "+
		"storing the chart; if not set, the chart is stored in the -machine file")
	var timeout = flag.Duration("timeout", storage.DefaultTimeout,
		"Timeout for Redis (as a Duration string, e.g. 1s, 20ms, etc.)")
	var trace = flag.Bool("trace", false,
		"Extremely verbose logs for every API request and timer; it may impact"+
			" performance, do not use in production or on heavily loaded systems (will override the -debug option)")
	flag.Parse()

	logger.Info("starting State Machine Server, Rel. %s", server.Release)

	fileStore := storage.NewFileStore(*machinePath, *allowMissing)
	if *redisUrl == "" {
		logger.Info("storing chart in %s", fileStore.Path())
		store = fileStore
	} else {
		logger.Info("connecting to Redis server at %s (timeout: %s, max retries: %d)",
			*redisUrl, *timeout, *maxRetries)
		redisStore := storage.NewRedisStore(*redisUrl, *chartName, storage.DefaultRedisDb,
			*timeout, *maxRetries)
		if *machinePath != "" || *allowMissing {
			seeded, err := storage.Seed(redisStore, fileStore)
			if err != nil {
				log.RootLog.Fatal(fmt.Errorf("cannot seed Redis with chart %s: %w", *machinePath, err))
			}
			if seeded {
				logger.Info("Redis chart %s seeded from %s", *chartName, *machinePath)
			}
		}
		store = redisStore
	}

	if *notificationsTopic != "" {
		logger.Info("publishing transitions to SQS topic %s", *notificationsTopic)
		notificationsCh = make(chan api.TransitionEvent, notificationsBuffer)
		var err error
		pub, err = pubsub.NewSqsPublisher(notificationsCh, awsEndpoint)
		if err != nil {
			log.RootLog.Fatal(fmt.Errorf("cannot create a valid SQS Publisher: %w", err))
		}
	}

	var err error
	machine, err = statemachine.NewMachine(&statemachine.Config{
		Store:         store,
		Notifications: notificationsCh,
	})
	if err != nil {
		log.RootLog.Fatal(err)
	}
	registry, err = predictor.NewRegistry(*configDir, *modelsDir, nil)
	if err != nil {
		log.RootLog.Fatal(err)
	}
	logger.Info("loaded %d models from %q", len(registry.Models()), *configDir)

	// Levels must be set before any of the services starts its own goroutines.
	setLogLevel(*debug, *trace)

	if pub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pub.Publish(*notificationsTopic); err != nil {
				logger.Error("SQS Publisher exited: %v", err)
			}
		}()
	}
	if err = machine.Build(); err != nil {
		log.RootLog.Fatal(fmt.Errorf("cannot build the state machine: %w", err))
	}

	server.SetMachine(machine)
	server.SetStore(store)
	server.SetPredictor(registry)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	logger.Info("HTTP server starting on %s", addr)
	srv := server.NewHTTPServer(addr, logger.Level)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.RootLog.Fatal(fmt.Errorf("HTTP server exited with error: %w", err))
		}
		logger.Info("HTTP server exited")
	}()

	logger.Info("gRPC server starting on port %d", *grpcPort)
	gsrv := startGrpcServer(*grpcPort, *noTls)

	logger.Info("state machine server ready, current state: %v", currentStateName())
	RunUntilStopped(srv, gsrv)
	logger.Info("...done. Goodbye.")
}

func currentStateName() string {
	state, err := machine.CurrentState()
	if err != nil {
		return err.Error()
	}
	return state.Name
}

func RunUntilStopped(srv *http.Server, gsrv *g.Server) {
	// Trap Ctrl-C and SIGTERM (Docker/Kubernetes) to shutdown gracefully
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until a signal is received.
	_ = <-c
	logger.Info("shutting down services...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server did not shut down cleanly: %v", err)
	}
	gsrv.GracefulStop()

	machine.Close()
	if err := machine.Save(); err != nil {
		logger.Error("cannot save the state machine: %v", err)
	}
	if notificationsCh != nil {
		close(notificationsCh)
	}
	logger.Info("waiting for services to exit...")
	wg.Wait()
}

// setLogLevel sets the logging level of all the services depending on -debug / -trace.
// If both are set, then -trace takes priority.
func setLogLevel(debug bool, trace bool) {
	var level log.LogLevel = log.INFO
	if debug && !trace {
		logger.Info("verbose logging enabled")
		level = log.DEBUG
	} else if trace {
		logger.Info("trace logging enabled")
		level = log.TRACE
	}
	loggables := []log.Loggable{machine, store, registry}
	if pub != nil {
		loggables = append(loggables, pub)
	}
	for _, l := range loggables {
		l.SetLogLevel(level)
	}
	server.SetLogLevel(level)
	if trace {
		server.EnableTracing()
	}
	logger.Level = level
}

// startGrpcServer will start a new gRPC server, bound to the local `port`, serving
// the health of the state machine.
func startGrpcServer(port int, disableTls bool) *g.Server {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.RootLog.Fatal(err)
	}
	grpcServer, err := grpc.NewGrpcServer(&grpc.Config{
		Machine:    machine,
		Store:      store,
		Logger:     logger,
		TlsEnabled: !disableTls,
	})
	if err != nil {
		log.RootLog.Fatal(fmt.Errorf("failed to create gRPC server: %w", err))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcServer.Serve(l); err != nil {
			log.RootLog.Fatal(fmt.Errorf("gRPC server exited with error: %w", err))
		}
		logger.Info("gRPC server exited")
	}()
	return grpcServer
}
