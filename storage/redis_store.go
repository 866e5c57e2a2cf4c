/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	slf4go "github.com/massenz/slf4go/logging"

	"github.com/massenz/state-service/api"
)

const (
	DefaultRedisPort = "6379"
	DefaultRedisDb   = 0
)

// RedisStore keeps the Chart, encoded as YAML, under a single Redis key.
type RedisStore struct {
	logger     *slf4go.Log
	client     *redis.Client
	key        string
	Timeout    time.Duration
	MaxRetries int
}

func NewRedisStoreWithDefaults(address string, name string) *RedisStore {
	return NewRedisStore(address, name, DefaultRedisDb, DefaultTimeout, DefaultMaxRetries)
}

func NewRedisStore(address string, name string, db int, timeout time.Duration,
	maxRetries int) *RedisStore {

	logger := slf4go.NewLog(fmt.Sprintf("redis://%s/%d", address, db))
	var tlsConfig *tls.Config
	if os.Getenv("REDIS_TLS") != "" {
		logger.Info("Using TLS for Redis connection")
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &RedisStore{
		logger: logger,
		client: redis.NewClient(&redis.Options{
			TLSConfig: tlsConfig,
			Addr:      address,
			DB:        db, // 0 means default DB
		}),
		key:        NewKeyForChart(name),
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
}

// SetLogLevel for RedisStore implements the Loggable interface
func (csm *RedisStore) SetLogLevel(level slf4go.LogLevel) {
	csm.logger.Level = level
}

func (csm *RedisStore) GetChart() (*api.Chart, error) {
	data, err := csm.get(csm.key)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", api.NotFoundError, csm.key)
	} else if err != nil {
		csm.logger.Error("Error retrieving chart `%s`: %s", csm.key, err.Error())
		return nil, err
	}
	return decode(data, YAML)
}

func (csm *RedisStore) PutChart(chart *api.Chart) error {
	data, err := encode(chart, YAML)
	if err != nil {
		csm.logger.Error("cannot encode chart: %v", err)
		return err
	}
	return csm.put(csm.key, data, NeverExpire)
}

func (csm *RedisStore) get(key string) ([]byte, error) {
	var data []byte
	err := csm.withRetries("get", key, func(ctx context.Context) (err error) {
		data, err = csm.client.Get(ctx, key).Bytes()
		return err
	})
	return data, err
}

func (csm *RedisStore) put(key string, data []byte, ttl time.Duration) error {
	return csm.withRetries("set", key, func(ctx context.Context) error {
		return csm.client.Set(ctx, key, data, ttl).Err()
	})
}

// withRetries runs `op` with the store's Timeout; only a timeout is worth another
// attempt, up to MaxRetries in total.
func (csm *RedisStore) withRetries(name, key string, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		csm.logger.Trace("%s `%s` (attempt %d of %d)", name, key, attempt, csm.MaxRetries)
		ctx, cancel := context.WithTimeout(context.Background(), csm.Timeout)
		err := op(ctx)
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		cancel()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.Nil):
			csm.logger.Debug("key `%s` not found", key)
			return err
		case !timedOut:
			csm.logger.Error("%s `%s` failed: %v", name, key, err)
			return err
		case attempt >= csm.MaxRetries:
			csm.logger.Error("%s `%s` timed out, giving up after %d attempts", name, key, attempt)
			return err
		}
		csm.logger.Warn("%s `%s` timed out, retrying", name, key)
		csm.wait()
	}
}

func (csm *RedisStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), csm.Timeout)
	defer cancel()

	_, err := csm.client.Ping(ctx).Result()
	if err != nil {
		csm.logger.Error("Error pinging redis: %s", err.Error())
		return fmt.Errorf("Redis health check failed: %w", err)
	}
	return nil
}

// wait is a helper function that sleeps for a random amount of time between 0 and half second.
// Poor man's backoff.
func (csm *RedisStore) wait() {
	waitForMsec := rand.Intn(500)
	time.Sleep(time.Duration(waitForMsec) * time.Millisecond)
}
