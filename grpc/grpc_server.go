/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package grpc

import (
	"context"
	"time"

	"github.com/massenz/slf4go/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/massenz/state-service/internal/config"
	"github.com/massenz/state-service/storage"
)

const (
	// ServiceName is the name under which the state machine health is reported;
	// the empty name reports the health of the server as a whole, which is the same.
	ServiceName = "statemachine"

	DefaultWatchInterval = time.Second
)

// Readiness is implemented by the statemachine.Machine.
type Readiness interface {
	IsBuilt() bool
}

type Config struct {
	Machine    Readiness
	Store      storage.ChartStore
	Logger     *logging.Log
	TlsEnabled bool
	// TlsCerts is the directory with the key material; if empty, it is
	// config.TlsConfigDir().
	TlsCerts      string
	WatchInterval time.Duration
}

var _ grpc_health_v1.HealthServer = (*healthServer)(nil)

type healthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	*Config
}

func newHealthServer(config *Config) *healthServer {
	srv := &healthServer{Config: config}
	if srv.Logger == nil {
		srv.Logger = logging.NewLog("grpc")
	}
	if srv.WatchInterval <= 0 {
		srv.WatchInterval = DefaultWatchInterval
	}
	return srv
}

func (s *healthServer) servingStatus(service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	if service != "" && service != ServiceName {
		return grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN,
			status.Errorf(codes.NotFound, "unknown service %q", service)
	}
	if s.Machine == nil || !s.Machine.IsBuilt() {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING, nil
	}
	if s.Store != nil {
		if err := s.Store.Health(); err != nil {
			s.Logger.Error("chart store is unhealthy: %v", err)
			return grpc_health_v1.HealthCheckResponse_NOT_SERVING, nil
		}
	}
	return grpc_health_v1.HealthCheckResponse_SERVING, nil
}

func (s *healthServer) Check(ctx context.Context,
	request *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	s.Logger.Trace("health check for %q", request.Service)
	st, err := s.servingStatus(request.Service)
	if err != nil {
		return nil, err
	}
	return &grpc_health_v1.HealthCheckResponse{Status: st}, nil
}

// Watch sends the serving status right away, and then every time it changes, until
// the client goes away.
func (s *healthServer) Watch(request *grpc_health_v1.HealthCheckRequest,
	stream grpc_health_v1.Health_WatchServer) error {
	ticker := time.NewTicker(s.WatchInterval)
	defer ticker.Stop()

	last := grpc_health_v1.HealthCheckResponse_UNKNOWN
	for {
		// An unknown service is not an error when watching.
		st, _ := s.servingStatus(request.Service)
		if st != last {
			s.Logger.Debug("service %q is now %s", request.Service, st)
			if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: st}); err != nil {
				return err
			}
			last = st
		}
		select {
		case <-stream.Context().Done():
			return status.Error(codes.Canceled, "stream has ended")
		case <-ticker.C:
		}
	}
}

// NewGrpcServer creates a gRPC server exposing the standard health service, which
// reports SERVING once the state machine has been built and its store is reachable.
func NewGrpcServer(cfg *Config) (*grpc.Server, error) {
	var opts []grpc.ServerOption
	if cfg.TlsEnabled {
		creds, err := config.ServerCredentials(cfg.TlsCerts)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}
	gsrv := grpc.NewServer(opts...)
	grpc_health_v1.RegisterHealthServer(gsrv, newHealthServer(cfg))
	return gsrv, nil
}
