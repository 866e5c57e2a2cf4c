/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	localstackImage    = "localstack/localstack:3.2"
	localstackEdgePort = "4566/tcp"
	redisImage         = "redis:6"
	redisPort          = "6379/tcp"
	Region             = "us-west-2"

	stopTimeout = 2 * time.Second
)

// Container is an internal wrapper around the `testcontainers.Container` carrying also
// the `Address` (which could be a URI) to which the Server can be reached at.
type Container struct {
	testcontainers.Container
	Address string
}

// NewLocalstackContainer starts a LocalStack container, with only SQS enabled;
// its `Address` is the endpoint URL to use for the AWS client.
func NewLocalstackContainer(ctx context.Context) (*Container, error) {
	return start(ctx, testcontainers.ContainerRequest{
		Image:        localstackImage,
		ExposedPorts: []string{localstackEdgePort},
		WaitingFor:   wait.ForLog("Ready."),
		Env: map[string]string{
			"AWS_REGION": Region,
			"SERVICES":   "sqs",
		},
	}, localstackEdgePort, "http://")
}

// NewRedisContainer starts a Redis server; its `Address` is in the `host:port` form.
func NewRedisContainer(ctx context.Context) (*Container, error) {
	return start(ctx, testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{redisPort},
		WaitingFor:   wait.ForLog("* Ready to accept connections"),
	}, redisPort, "")
}

// Stop is safe to call on a nil Container, which is what tests are left with
// when no container runtime is available.
func (c *Container) Stop(ctx context.Context) error {
	if c == nil {
		return nil
	}
	timeout := stopTimeout
	return c.Container.Stop(ctx, &timeout)
}

func start(ctx context.Context, req testcontainers.ContainerRequest, port nat.Port,
	scheme string) (*Container, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		return nil, err
	}
	address := fmt.Sprintf("%s%s:%s", scheme, host, mappedPort.Port())
	return &Container{Container: container, Address: address}, nil
}
