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
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/storage"
)

const (
	// DefaultSlack is added to a deadline when arming its timer, as a Timed state only
	// transitions once the deadline has strictly passed.
	DefaultSlack = 50 * time.Millisecond

	// DefaultRetryInterval is how long the Machine waits before trying again a
	// deadline-driven update which failed (typically, because the chart could not be saved).
	DefaultRetryInterval = 5 * time.Second

	manualTrigger   = "manual"
	deadlineTrigger = "deadline"
)

// Config carries the collaborators of a Machine; only the Store is required.
type Config struct {
	Store storage.ChartStore

	// Clock is used both by the States (to evaluate deadlines) and to arm timers;
	// defaults to the real clock.
	Clock clockwork.Clock

	// Notifications, if not nil, receives a TransitionEvent for every confirmed
	// and saved transition. Sends never block: if the channel is full the event is dropped.
	Notifications chan<- api.TransitionEvent

	RetryInterval time.Duration
	Slack         time.Duration
}
