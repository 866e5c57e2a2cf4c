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
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/massenz/state-service/internal/config"
)

// Most basic binary to run health checks on the server.
// Used to assert readiness of the container/pod in Docker/Kubernetes.
func main() {
	var address = flag.String("host", "localhost:7398",
		"The address (host:port) for the gRPC server")
	var timeout = flag.Duration("timeout", 200*time.Millisecond,
		"timeout expressed as a duration string (e.g., 200ms, 1s, etc.)")
	var noTLS = flag.Bool("insecure", false, "disables TLS")
	var service = flag.String("service", "", "the name of the service to check")
	flag.Parse()

	var creds credentials.TransportCredentials
	if *noTLS {
		creds = insecure.NewCredentials()
	} else {
		creds = config.ClientCredentials("")
	}

	cc, err := grpc.Dial(*address, grpc.WithTransportCredentials(creds))
	if err != nil {
		log.Fatalf("cannot open connection to %s: %v", *address, err)
	}
	defer cc.Close()

	client := grpc_health_v1.NewHealthClient(cc)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: *service})
	if err != nil {
		log.Fatal("cannot connect to server: ", err)
	}
	fmt.Println(resp.Status)
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}
