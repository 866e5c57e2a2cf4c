/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package grpc_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	g "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/massenz/state-service/grpc"
	"github.com/massenz/state-service/internal/config"
	internals "github.com/massenz/state-service/internal/testing"
	"github.com/massenz/state-service/storage"
)

var _ = Describe("the gRPC Server", func() {
	var (
		ready  *readiness
		store  *sickStore
		server *g.Server
		client grpc_health_v1.HealthClient
		cc     *g.ClientConn
		ctx    context.Context
		cancel context.CancelFunc
	)
	check := func(service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
		}
		return resp.Status, nil
	}

	BeforeEach(func() {
		ready = &readiness{}
		store = &sickStore{InMemoryStore: storage.NewInMemoryStore("grpc-test")}
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})
	AfterEach(func() {
		cancel()
		if cc != nil {
			Expect(cc.Close()).To(Succeed())
			cc = nil
		}
		server.Stop()
	})

	When("not using TLS", func() {
		var address string
		BeforeEach(func() {
			server, address = startServer(&grpc.Config{
				Machine:       ready,
				Store:         store,
				WatchInterval: 10 * time.Millisecond,
			})
			client, cc = NewClient(address, nil)
		})
		It("is not serving until the machine is built", func() {
			Expect(check("")).To(Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING))
			ready.built.Store(true)
			Expect(check("")).To(Equal(grpc_health_v1.HealthCheckResponse_SERVING))
			Expect(check(grpc.ServiceName)).To(Equal(grpc_health_v1.HealthCheckResponse_SERVING))
		})
		It("is not serving if the store is unhealthy", func() {
			ready.built.Store(true)
			store.sick.Store(true)
			Expect(check(grpc.ServiceName)).To(Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING))
		})
		It("does not know other services", func() {
			_, err := check("orders")
			AssertStatusCode(codes.NotFound, err)
		})
		It("streams status changes", func() {
			stream, err := client.Watch(ctx, &grpc_health_v1.HealthCheckRequest{})
			Expect(err).ToNot(HaveOccurred())
			resp, err := stream.Recv()
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING))

			ready.built.Store(true)
			resp, err = stream.Recv()
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(grpc_health_v1.HealthCheckResponse_SERVING))
		})
	})

	When("using TLS", func() {
		var dir string
		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "certs")
			Expect(err).ToNot(HaveOccurred())
			Expect(internals.GenerateCerts(dir)).To(Succeed())
			ready.built.Store(true)
		})
		AfterEach(func() {
			Expect(os.RemoveAll(dir)).To(Succeed())
		})
		It("should connect using TLS", func() {
			var address string
			server, address = startServer(&grpc.Config{
				Machine:    ready,
				TlsEnabled: true,
				TlsCerts:   dir,
			})
			client, cc = NewClient(address, config.ClientCredentials(dir))
			Expect(check("")).To(Equal(grpc_health_v1.HealthCheckResponse_SERVING))
		})
		It("fails to start without certificates", func() {
			_, err := grpc.NewGrpcServer(&grpc.Config{
				Machine:    ready,
				TlsEnabled: true,
				TlsCerts:   os.TempDir(),
			})
			Expect(err).To(HaveOccurred())
			server = g.NewServer()
		})
	})
})
