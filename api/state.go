/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package api

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is a single named node of a Chart, which knows the one condition under which
// it advances to its target.
//
// A State is not safe for concurrent use: its owner (see `statemachine.Machine`)
// serializes every call that may mutate it.
type State struct {
	Name string

	kind      Kind
	current   *Counter
	target    string
	threshold Counter
	deadline  Deadline

	entered  bool
	delegate Delegate
	clock    clockwork.Clock
}

// NewState builds a State from its persisted definition; the State reads the
// time from `clock` when evaluating a deadline.
func NewState(def StateDefinition, clock clockwork.Clock) (*State, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: state definitions must have a name", MalformedChartError)
	}
	kind, err := def.kind()
	if err != nil {
		return nil, fmt.Errorf("state %s: %w", def.Name, err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	state := &State{
		Name:  def.Name,
		kind:  kind,
		clock: clock,
	}
	if kind == Terminal {
		return state, nil
	}
	if def.Target == nil || def.Target.Name == "" {
		return nil, fmt.Errorf("%w: state %s has no target", MalformedChartError, def.Name)
	}
	state.target = def.Target.Name

	switch kind {
	case Counted:
		if def.Current == nil {
			return nil, fmt.Errorf("%w: counted state %s has no current value",
				MalformedChartError, def.Name)
		}
		value, err := intValue(def.Current.Value)
		if err != nil {
			return nil, fmt.Errorf("state %s (current): %w", def.Name, err)
		}
		state.current = &Counter{Key: def.Current.Key, Value: value}
		target, err := intValue(def.Target.When.Value)
		if err != nil {
			return nil, fmt.Errorf("state %s (target): %w", def.Name, err)
		}
		state.threshold = Counter{Key: def.Target.When.Key, Value: target}
	case Timed:
		when, err := timeValue(def.Target.When.Value)
		if err != nil {
			return nil, fmt.Errorf("state %s (target): %w", def.Name, err)
		}
		state.deadline = Deadline{Key: def.Target.When.Key, Value: when}
	}
	return state, nil
}

func (s *State) Kind() Kind {
	return s.kind
}

func (s *State) IsTerminal() bool {
	return s.kind == Terminal
}

// IsAsync is true for Timed states, which are updated by the clock rather than
// by an external caller.
func (s *State) IsAsync() bool {
	return s.kind == Timed
}

// Entered reports whether the last call to Transition moved the chart into this
// State's target. It is never persisted.
func (s *State) Entered() bool {
	return s.entered
}

// Target is the name of the State this one transitions to; empty for Terminal states.
func (s *State) Target() string {
	return s.target
}

// Current returns the accumulator of a Counted state; any other kind has none.
func (s *State) Current() (Counter, error) {
	if s.kind != Counted || s.current == nil {
		return Counter{}, fmt.Errorf("%w: %s state %s has no current value",
			InvalidOperationError, s.kind, s.Name)
	}
	return *s.current, nil
}

// Threshold returns the value a Counted state's accumulator must reach.
func (s *State) Threshold() (Counter, error) {
	if s.kind != Counted {
		return Counter{}, fmt.Errorf("%w: %s state %s has no target count",
			InvalidOperationError, s.kind, s.Name)
	}
	return s.threshold, nil
}

// Deadline returns the instant after which a Timed state transitions.
func (s *State) Deadline() (Deadline, error) {
	if s.kind != Timed {
		return Deadline{}, fmt.Errorf("%w: %s state %s has no deadline",
			InvalidOperationError, s.kind, s.Name)
	}
	return s.deadline, nil
}

// TransitionTime is a convenience accessor for the deadline instant of a Timed state.
func (s *State) TransitionTime() (time.Time, error) {
	d, err := s.Deadline()
	return d.Value, err
}

func (s *State) SetDelegate(delegate Delegate) {
	s.delegate = delegate
}

func (s *State) Delegate() (Delegate, error) {
	if s.delegate == nil {
		return nil, fmt.Errorf("%w: %s", NoDelegateError, s.Name)
	}
	return s.delegate, nil
}

func (s *State) SetClock(clock clockwork.Clock) {
	s.clock = clock
}

// Update applies the State's action and then attempts the transition.
//
// A Counted state increments its accumulator: not having reached the target yet
// is a normal no-op. A Timed state is only meaningfully updated once its deadline
// has passed, so an early call is an InvalidOperationError, as is updating a Terminal state.
func (s *State) Update() (bool, error) {
	switch s.kind {
	case Counted:
		s.current.Value++
		ok, err := s.Transition()
		if err != nil {
			s.current.Value--
			return false, err
		}
		return ok, nil
	case Timed:
		if !s.CanTransition() {
			return false, fmt.Errorf("%w: state %s cannot transition before %s",
				InvalidOperationError, s.Name, s.deadline.Value.Format(DateFormat))
		}
		return s.Transition()
	}
	return false, fmt.Errorf("%w: %s is a terminal state", InvalidOperationError, s.Name)
}

// Transition asks the Delegate to confirm the move to the target, only if the
// condition is met; it is safe to call repeatedly.
func (s *State) Transition() (bool, error) {
	s.entered = false
	if !s.CanTransition() {
		return false, nil
	}
	delegate, err := s.Delegate()
	if err != nil {
		return false, err
	}
	s.entered = delegate.DidEnterState(s, s.target)
	return s.entered, nil
}

// CanTransition evaluates the transition condition: exact equality for Counted
// states, a strictly passed deadline (read from the clock now) for Timed ones.
func (s *State) CanTransition() bool {
	switch s.kind {
	case Counted:
		return s.current.Value == s.threshold.Value
	case Timed:
		return s.clock.Now().After(s.deadline.Value)
	}
	return false
}

// Clone returns a copy of this State that shares no mutable data with it.
func (s *State) Clone() *State {
	clone := *s
	if s.current != nil {
		c := *s.current
		clone.current = &c
	}
	return &clone
}

// Definition converts the State back to its persisted form.
func (s *State) Definition() StateDefinition {
	if s.kind == Terminal {
		return StateDefinition{Name: s.Name}
	}
	def := StateDefinition{
		Name: s.Name,
		Kind: s.kind.String(),
		Target: &TargetDefinition{
			Name: s.target,
		},
	}
	switch s.kind {
	case Counted:
		def.Current = &Condition{Key: s.current.Key, Value: s.current.Value}
		def.Target.When = Condition{Key: s.threshold.Key, Value: s.threshold.Value}
	case Timed:
		def.Target.When = Condition{
			Key:   s.deadline.Key,
			Value: s.deadline.Value.Format(DateFormat),
		}
	}
	return def
}

func (s *State) String() string {
	switch s.kind {
	case Counted:
		return fmt.Sprintf("%s[%s %d/%d -> %s]", s.Name, s.kind, s.current.Value,
			s.threshold.Value, s.target)
	case Timed:
		return fmt.Sprintf("%s[%s %s -> %s]", s.Name, s.kind,
			s.deadline.Value.Format(DateFormat), s.target)
	}
	return fmt.Sprintf("%s[%s]", s.Name, s.kind)
}
