/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package server

const (
	ContentType     = "Content-Type"
	ApplicationJson = "application/json"
	StateParam      = "state"
)

// MessageResponse is returned when a more appropriate response is not available.
type MessageResponse struct {
	Msg   interface{} `json:"message,omitempty"`
	Error string      `json:"error,omitempty"`
}

// StateResponse confirms which is the current state.
type StateResponse struct {
	State string `json:"state"`
}

// UpdateResponse is returned after a state has been updated via a PUT; `Current` is
// the name of the current state after the update.
type UpdateResponse struct {
	State        string `json:"state"`
	Transitioned bool   `json:"transitioned"`
	Current      string `json:"current"`
}

// PredictRequest carries one row of features for each prediction requested from
// the model `Name`.
type PredictRequest struct {
	Name   string      `json:"name"`
	Values [][]float64 `json:"values"`
}

// PredictResponse lists the predicted states, one for each row of the request.
type PredictResponse struct {
	States []string `json:"state"`
}
