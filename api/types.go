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
	"strings"
	"time"

	log "github.com/massenz/slf4go/logging"
)

const (
	// DateFormat is the layout used to persist a timed state's deadline.
	DateFormat = "2006-01-02T15:04:05"

	// NoStateName names the single terminal state of a synthesized, empty chart.
	NoStateName = "no_state"
)

var (
	NotFoundError         = fmt.Errorf("chart not found")
	MalformedChartError   = fmt.Errorf("chart is malformed")
	InvalidOperationError = fmt.Errorf("invalid operation")
	NoDelegateError       = fmt.Errorf("state has no delegate")
	NotBuiltError         = fmt.Errorf("the state machine has not been built")

	// Logger is made accessible so that its `Level` can be changed
	// or can be sent to a `NullLog` during testing.
	Logger = log.NewLog("api")
)

// Kind is the closed set of transition kinds a State can have.
type Kind int

const (
	// Terminal states carry no transition data and cannot be updated.
	Terminal Kind = iota
	// Counted states advance once their accumulator equals the target value.
	Counted
	// Timed states advance once the wall clock is past the target instant.
	Timed
)

const (
	countedName = "counted"
	timedName   = "timed"

	// legacy action names, still accepted when reading a chart
	incrementAction = "increment"
	timeAction      = "time"
)

func (k Kind) String() string {
	switch k {
	case Counted:
		return countedName
	case Timed:
		return timedName
	default:
		return "terminal"
	}
}

// ParseKind maps the persisted kind (or legacy `func` action) to a Kind; an empty
// value denotes a Terminal state.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return Terminal, nil
	case countedName, incrementAction:
		return Counted, nil
	case timedName, timeAction:
		return Timed, nil
	}
	return Terminal, fmt.Errorf("%w: unknown state kind %q", MalformedChartError, value)
}

// Counter is the labelled integer that a Counted state accumulates and compares.
// The key is only a label: values are compared, keys never are.
type Counter struct {
	Key   string
	Value int64
}

// Deadline is the labelled instant a Timed state waits for.
type Deadline struct {
	Key   string
	Value time.Time
}

// Delegate confirms and commits the transitions requested by a State.
//
// A State never changes "the current state" itself: it asks its Delegate, which
// is the single authority over which state is current.
type Delegate interface {
	// DidEnterState is called exactly once per successful transition, with the State
	// being exited and the name of the State being entered; it returns true
	// if the move was committed.
	DidEnterState(old *State, newStateName string) bool
}
