/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Total number of confirmed and saved transitions, by from_state and to_state",
	}, []string{"from_state", "to_state"})

	// updatesTotal counts updates by trigger (manual or deadline) and outcome
	// (transitioned, noop or error).
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_updates_total",
		Help: "Total number of state updates, by trigger and outcome",
	}, []string{"trigger", "outcome"})

	saveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_save_duration_seconds",
		Help:    "Duration of chart saves, by outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"outcome"})
)
