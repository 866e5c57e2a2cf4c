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
	"fmt"
	"sync"

	slf4go "github.com/massenz/slf4go/logging"

	"github.com/massenz/state-service/api"
)

// InMemoryStore keeps the encoded Chart in memory, so that callers never share
// the stored document with the store.
type InMemoryStore struct {
	logger       *slf4go.Log
	mux          sync.RWMutex
	key          string
	backingStore map[string][]byte
}

func NewInMemoryStore(name string) *InMemoryStore {
	return &InMemoryStore{
		backingStore: make(map[string][]byte),
		key:          NewKeyForChart(name),
		logger:       slf4go.NewLog("InMemoryStore"),
	}
}

func (csm *InMemoryStore) GetChart() (*api.Chart, error) {
	csm.mux.RLock()
	defer csm.mux.RUnlock()

	data, ok := csm.backingStore[csm.key]
	csm.logger.Trace("key %s - Found: %t", csm.key, ok)
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.NotFoundError, csm.key)
	}
	return decode(data, YAML)
}

func (csm *InMemoryStore) PutChart(chart *api.Chart) error {
	data, err := encode(chart, YAML)
	if err != nil {
		csm.logger.Error("cannot encode chart: %v", err)
		return err
	}
	csm.mux.Lock()
	defer csm.mux.Unlock()
	csm.logger.Trace("Storing key %s, current state: %s", csm.key, chart.CurrentState)
	csm.backingStore[csm.key] = data
	return nil
}

func (csm *InMemoryStore) SetLogLevel(level slf4go.LogLevel) {
	csm.logger.Level = level
}

func (csm *InMemoryStore) Health() error {
	return nil
}
