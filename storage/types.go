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
	"time"

	log "github.com/massenz/slf4go/logging"

	"github.com/massenz/state-service/api"
)

const (
	NeverExpire       = 0
	DefaultMaxRetries = 3
	DefaultTimeout    = 200 * time.Millisecond
)

var IllegalStoreError = fmt.Errorf("error storing invalid data")

// ChartStore reads and writes the single Chart document that backs a Machine.
//
// Implementations must report a missing document as an `api.NotFoundError` and one
// that cannot be decoded as an `api.MalformedChartError`, wrapped so that callers
// can use `errors.Is`.
type ChartStore interface {
	log.Loggable

	// GetChart returns the stored Chart, in full.
	GetChart() (*api.Chart, error)

	// PutChart overwrites the stored Chart, in full.
	PutChart(chart *api.Chart) error

	Health() error
}
