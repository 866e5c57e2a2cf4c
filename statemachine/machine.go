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
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/massenz/slf4go/logging"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/storage"
)

// Machine is the transition engine: it owns the States built from a Chart, tracks
// which one is current, and persists the Chart after every confirmed transition.
//
// When the current State is Timed, the Machine keeps exactly one timer armed,
// which updates the State once its deadline has passed.
type Machine struct {
	logger *log.Log
	store  storage.ChartStore
	clock  clockwork.Clock

	notifications chan<- api.TransitionEvent
	retryInterval time.Duration
	slack         time.Duration

	// mu serializes everything that may mutate a State: updates (manual or
	// deadline-driven), saves, builds and the timer itself.
	mu         sync.Mutex
	timer      clockwork.Timer
	generation uint64

	// stateMu guards the state table and the current state name; it is the only
	// lock taken by DidEnterState, which runs while `mu` is held.
	stateMu sync.RWMutex
	states  map[string]*api.State
	order   []string
	current string
	built   bool
}

func NewMachine(config *Config) (*Machine, error) {
	if config == nil || config.Store == nil {
		return nil, fmt.Errorf("a ChartStore must be configured")
	}
	m := &Machine{
		logger:        log.NewLog("statemachine"),
		store:         config.Store,
		clock:         config.Clock,
		notifications: config.Notifications,
		retryInterval: config.RetryInterval,
		slack:         config.Slack,
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.retryInterval <= 0 {
		m.retryInterval = DefaultRetryInterval
	}
	if m.slack <= 0 {
		m.slack = DefaultSlack
	}
	return m, nil
}

// SetLogLevel for Machine implements the Loggable interface
func (m *Machine) SetLogLevel(level log.LogLevel) {
	m.logger.Level = level
}

// Build reads the Chart from the store and creates its States; it is a no-op if the
// Machine has already been built.
//
// If the Chart cannot be read or is invalid, the Machine is left without any State.
func (m *Machine) Build() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsBuilt() {
		m.logger.Debug("machine already built, skipping")
		return nil
	}
	return m.build()
}

// Rebuild discards all the States (and any pending timer) and builds the Machine
// again from the stored Chart.
func (m *Machine) Rebuild() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimer()
	m.stateMu.Lock()
	m.states = nil
	m.order = nil
	m.current = ""
	m.built = false
	m.stateMu.Unlock()
	return m.build()
}

func (m *Machine) build() error {
	chart, err := m.store.GetChart()
	if err != nil {
		m.logger.Error("cannot read chart: %v", err)
		return err
	}
	if err = chart.CheckValid(); err != nil {
		m.logger.Error("invalid chart: %v", err)
		return err
	}
	states := make(map[string]*api.State, len(chart.States))
	order := make([]string, 0, len(chart.States))
	for _, def := range chart.States {
		state, err := api.NewState(def, m.clock)
		if err != nil {
			return err
		}
		state.SetDelegate(m)
		states[state.Name] = state
		order = append(order, state.Name)
	}

	m.stateMu.Lock()
	m.states = states
	m.order = order
	m.current = chart.CurrentState
	m.built = true
	m.stateMu.Unlock()

	current := states[chart.CurrentState]
	m.logger.Info("machine built with %d states, current: %s", len(order), current)
	if current.IsAsync() {
		m.arm(current)
	}
	return nil
}

func (m *Machine) IsBuilt() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.built
}

// StateNames lists the names of the Machine's states, in Chart order.
func (m *Machine) StateNames() []string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

func (m *Machine) IsCurrentState(name string) bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.built && m.current == name
}

// DidEnd is true once the current state is Terminal.
func (m *Machine) DidEnd() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.built && m.states[m.current].IsTerminal()
}

// IsAsync is true if the current state is Timed.
func (m *Machine) IsAsync() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.built && m.states[m.current].IsAsync()
}

// CurrentState returns a copy of the current State.
func (m *Machine) CurrentState() (*api.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.currentState()
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

func (m *Machine) currentState() (*api.State, error) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if !m.built {
		return nil, api.NotBuiltError
	}
	return m.states[m.current], nil
}

// Update updates the current state; if this causes a transition, the Chart is saved
// before returning true.
//
// Not reaching the transition condition is not an error, and nothing is saved.
func (m *Machine) Update() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(manualTrigger, false)
}

// UpdateIf updates the current state only if its name is `name`, so that a caller
// which has observed `name` as current cannot update its successor instead.
func (m *Machine) UpdateIf(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.IsCurrentState(name) {
		return false, fmt.Errorf("%w: %s is not the current state", api.InvalidOperationError, name)
	}
	return m.update(manualTrigger, false)
}

// UpdateAndSave is UpdateIf, but it also saves the Chart when there is no transition,
// so that accumulators are persisted; if that save fails, the update is undone.
func (m *Machine) UpdateAndSave(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.IsCurrentState(name) {
		return false, fmt.Errorf("%w: %s is not the current state", api.InvalidOperationError, name)
	}
	return m.update(manualTrigger, true)
}

func (m *Machine) update(trigger string, saveAlways bool) (bool, error) {
	state, err := m.currentState()
	if err != nil {
		return false, err
	}
	snapshot := state.Clone()
	m.logger.Debug("updating %s (%s)", state, trigger)
	ok, err := state.Update()
	if err != nil {
		updatesTotal.WithLabelValues(trigger, "error").Inc()
		m.logger.Debug("update of %s failed: %v", state.Name, err)
		return false, err
	}
	if !ok {
		if saveAlways {
			if err = m.save(); err != nil {
				updatesTotal.WithLabelValues(trigger, "error").Inc()
				m.logger.Error("cannot save the update of %s, rolling back: %v", snapshot.Name, err)
				m.rollback(snapshot)
				return false, err
			}
		}
		updatesTotal.WithLabelValues(trigger, "noop").Inc()
		return false, nil
	}
	if err = m.save(); err != nil {
		updatesTotal.WithLabelValues(trigger, "error").Inc()
		m.logger.Error("cannot save the transition from %s, rolling back: %v", snapshot.Name, err)
		m.rollback(snapshot)
		return false, err
	}
	updatesTotal.WithLabelValues(trigger, "transitioned").Inc()
	m.afterTransition(snapshot.Name)
	return true, nil
}

// rollback restores the exited state (as it was before the update) and makes it
// current again.
func (m *Machine) rollback(snapshot *api.State) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.states[snapshot.Name] = snapshot
	m.current = snapshot.Name
}

func (m *Machine) afterTransition(from string) {
	current, _ := m.currentState()
	transitionsTotal.WithLabelValues(from, current.Name).Inc()
	m.logger.Info("transitioned: %s -> %s", from, current.Name)

	m.cancelTimer()
	if current.IsAsync() {
		m.arm(current)
	}
	m.notify(api.NewTransitionEvent(from, current.Name, m.clock.Now()))
}

func (m *Machine) notify(evt *api.TransitionEvent) {
	if m.notifications == nil {
		return
	}
	select {
	case m.notifications <- *evt:
		m.logger.Trace("sent notification %s", evt.EventId)
	default:
		m.logger.Warn("notifications channel full, dropping event %s", evt)
	}
}

// DidEnterState implements api.Delegate: it stores back the exited State and makes
// `newStateName` current.
//
// A confirmation is refused unless it comes from the State the Machine holds as
// current: copies returned by CurrentState cannot move the Machine.
func (m *Machine) DidEnterState(old *api.State, newStateName string) bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if !m.built || old == nil || old != m.states[m.current] {
		m.logger.Warn("refusing transition to %s from a state which is not current (%q)",
			newStateName, m.current)
		return false
	}
	if _, found := m.states[newStateName]; !found {
		m.logger.Error("refusing transition %s -> %s: unknown state", old.Name, newStateName)
		return false
	}
	m.states[old.Name] = old
	m.current = newStateName
	return true
}

// Chart returns the document that Save would write.
func (m *Machine) Chart() (*api.Chart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chart()
}

func (m *Machine) chart() (*api.Chart, error) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if !m.built {
		return nil, api.NotBuiltError
	}
	chart := &api.Chart{
		CurrentState: m.current,
		States:       make([]api.StateDefinition, 0, len(m.order)),
	}
	for _, name := range m.order {
		chart.States = append(chart.States, m.states[name].Definition())
	}
	return chart, nil
}

// Save writes the whole Chart to the store, overwriting what was there.
func (m *Machine) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save()
}

func (m *Machine) save() error {
	chart, err := m.chart()
	if err != nil {
		return err
	}
	start := m.clock.Now()
	err = m.store.PutChart(chart)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	saveDuration.WithLabelValues(outcome).Observe(m.clock.Since(start).Seconds())
	if err == nil {
		m.logger.Debug("chart saved, current state: %s", chart.CurrentState)
	}
	return err
}

// Close cancels the pending timer, if any; the Machine can still be updated manually.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimer()
}
