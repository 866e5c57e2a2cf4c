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

	"github.com/massenz/state-service/api"
)

// The methods in this file must be called with `m.mu` held.

// arm schedules the deadline-driven update of the Timed `state`, replacing any
// timer previously armed.
func (m *Machine) arm(state *api.State) {
	deadline, err := state.TransitionTime()
	if err != nil {
		m.logger.Error("cannot arm timer: %v", err)
		return
	}
	delay := deadline.Sub(m.clock.Now()) + m.slack
	if delay < 0 {
		delay = 0
	}
	m.logger.Debug("%s will transition at %s (in %s)", state.Name,
		deadline.Format(api.DateFormat), delay)
	m.armAfter(delay)
}

func (m *Machine) armAfter(delay time.Duration) {
	m.cancelTimer()
	generation := m.generation
	m.timer = m.clock.AfterFunc(delay, func() {
		m.onDeadline(generation)
	})
}

// cancelTimer stops the pending timer; a callback which was already running
// will find its generation to be stale and do nothing.
func (m *Machine) cancelTimer() {
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) onDeadline(generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		m.logger.Trace("discarding stale timer callback (%d, current: %d)",
			generation, m.generation)
		return
	}
	m.timer = nil

	state, err := m.currentState()
	if err != nil || !state.IsAsync() {
		m.logger.Debug("timer fired, but the current state is no longer timed")
		return
	}
	if !state.CanTransition() {
		// fired early, with respect to the State's clock
		m.arm(state)
		return
	}
	ok, err := m.update(deadlineTrigger, false)
	if err != nil || !ok {
		m.logger.Error("deadline update of %s failed (%v), retrying in %s",
			state.Name, err, m.retryInterval)
		m.armAfter(m.retryInterval)
	}
}
