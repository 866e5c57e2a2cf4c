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
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransitionEvent is the notification emitted every time a transition is confirmed
// and persisted.
type TransitionEvent struct {
	EventId   string    `json:"event_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransitionEvent(from, to string, timestamp time.Time) *TransitionEvent {
	return &TransitionEvent{
		EventId:   uuid.NewString(),
		From:      from,
		To:        to,
		Timestamp: timestamp,
	}
}

func (e *TransitionEvent) String() string {
	s, err := json.Marshal(*e)
	if err != nil {
		return err.Error()
	}
	return string(s)
}
