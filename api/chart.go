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
	"math"
	"time"
)

// Condition is a labelled value: an integer for Counted states, a timestamp
// (in DateFormat) for Timed ones.
type Condition struct {
	Key   string      `yaml:"key" json:"key"`
	Value interface{} `yaml:"value" json:"value"`
}

type TargetDefinition struct {
	Name string    `yaml:"name" json:"name"`
	When Condition `yaml:"when" json:"when"`
}

// StateDefinition is the persisted form of a State.
//
// `Func` is the legacy spelling of `Kind` (`increment` or `time`); a definition
// with neither is a Terminal state.
type StateDefinition struct {
	Name    string            `yaml:"name" json:"name"`
	Kind    string            `yaml:"kind,omitempty" json:"kind,omitempty"`
	Func    string            `yaml:"func,omitempty" json:"func,omitempty"`
	Current *Condition        `yaml:"current,omitempty" json:"current,omitempty"`
	Target  *TargetDefinition `yaml:"target,omitempty" json:"target,omitempty"`
}

func (d *StateDefinition) kind() (Kind, error) {
	if d.Kind != "" {
		return ParseKind(d.Kind)
	}
	return ParseKind(d.Func)
}

// Chart is the document that describes all the states and which one is current;
// the same schema is read at startup and written after every transition.
type Chart struct {
	CurrentState string            `yaml:"current_state" json:"current_state"`
	States       []StateDefinition `yaml:"states" json:"states"`
}

// NoStateChart is the chart used when none has been configured: a single
// terminal state, which is also current.
func NoStateChart() *Chart {
	return &Chart{
		CurrentState: NoStateName,
		States:       []StateDefinition{{Name: NoStateName}},
	}
}

// HasState checks that `name` is one of the Chart's states.
func (c *Chart) HasState(name string) bool {
	for _, s := range c.States {
		if s.Name == name {
			return true
		}
	}
	return false
}

// CheckValid verifies that the chart can be used to build a machine: at least one state,
// unique names, a current state that exists, well-formed definitions and targets which
// name existing states.
//
// All failures are reported as a MalformedChartError.
func (c *Chart) CheckValid() error {
	if c == nil {
		return fmt.Errorf("%w: empty chart", MalformedChartError)
	}
	if len(c.States) == 0 {
		return fmt.Errorf("%w: a chart must have at least one state", MalformedChartError)
	}
	if c.CurrentState == "" {
		return fmt.Errorf("%w: the current state must be non-empty", MalformedChartError)
	}
	names := make(map[string]bool, len(c.States))
	for _, def := range c.States {
		if names[def.Name] {
			return fmt.Errorf("%w: duplicate state %q", MalformedChartError, def.Name)
		}
		names[def.Name] = true
	}
	if !names[c.CurrentState] {
		return fmt.Errorf("%w: current state %q is not one of the chart's states",
			MalformedChartError, c.CurrentState)
	}
	for _, def := range c.States {
		state, err := NewState(def, nil)
		if err != nil {
			Logger.Error("invalid state definition: %v", err)
			return err
		}
		if !state.IsTerminal() && !names[state.Target()] {
			return fmt.Errorf("%w: state %s targets unknown state %q",
				MalformedChartError, def.Name, state.Target())
		}
	}
	return nil
}

func intValue(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows", MalformedChartError, v)
		}
		return int64(v), nil
	case float64:
		// JSON documents decode all numbers as float64
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %v is not an integer", MalformedChartError, v)
		}
		return int64(v), nil
	}
	return 0, fmt.Errorf("%w: %v (%T) is not an integer", MalformedChartError, value, value)
}

func timeValue(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case string:
		t, err := time.ParseInLocation(DateFormat, v, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q is not a valid time (%s)",
				MalformedChartError, v, DateFormat)
		}
		return t, nil
	case time.Time:
		return v.Local().Truncate(time.Second), nil
	}
	return time.Time{}, fmt.Errorf("%w: %v (%T) is not a timestamp", MalformedChartError,
		value, value)
}
