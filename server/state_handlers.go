/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func machineReady(w http.ResponseWriter) bool {
	if machine == nil || !machine.IsBuilt() {
		http.Error(w, "state machine not built", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func stateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get(StateParam)
	if name == "" {
		http.Error(w, fmt.Sprintf("missing %q query parameter", StateParam), http.StatusBadRequest)
		return "", false
	}
	return name, true
}

// GetStateHandler succeeds only if the `state` query parameter names the current state.
func GetStateHandler(w http.ResponseWriter, r *http.Request) {
	defer trace(r.RequestURI)()
	defaultContent(w)

	name, ok := stateParam(w, r)
	if !ok || !machineReady(w) {
		return
	}
	if !machine.IsCurrentState(name) {
		http.Error(w, fmt.Sprintf("%s is not the current state", name), http.StatusNotAcceptable)
		return
	}
	err := json.NewEncoder(w).Encode(StateResponse{State: name})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// UpdateStateHandler updates the current state, which must be the one named by the
// `state` query parameter, and saves the chart.
//
// Timed states update themselves when their deadline passes, and cannot be updated
// from here.
func UpdateStateHandler(w http.ResponseWriter, r *http.Request) {
	defer trace(r.RequestURI)()
	defaultContent(w)

	name, ok := stateParam(w, r)
	if !ok || !machineReady(w) {
		return
	}
	if machine.DidEnd() {
		http.Error(w, "the state machine has reached a terminal state", http.StatusConflict)
		return
	}
	if machine.IsAsync() {
		http.Error(w, "the current state is timed and cannot be updated", http.StatusConflict)
		return
	}
	if !machine.IsCurrentState(name) {
		http.Error(w, fmt.Sprintf("%s is not the current state", name), http.StatusNotAcceptable)
		return
	}
	// counters must survive a restart, even without a transition
	transitioned, err := machine.UpdateAndSave(name)
	if err != nil {
		logger.Error("cannot update %s: %v", name, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	current, err := machine.CurrentState()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	logger.Debug("updated %s, current state: %s", name, current.Name)
	err = json.NewEncoder(w).Encode(UpdateResponse{
		State:        name,
		Transitioned: transitioned,
		Current:      current.Name,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// PredictHandler returns the states predicted by the model named in the request.
func PredictHandler(w http.ResponseWriter, r *http.Request) {
	defer trace(r.RequestURI)()
	defaultContent(w)

	var request PredictRequest
	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if request.Name == "" {
		http.Error(w, "the name of the model must be specified", http.StatusBadRequest)
		return
	}
	if predictor == nil {
		http.Error(w, "no models have been configured", http.StatusNotImplemented)
		return
	}
	states, err := predictor.Predict(request.Name, request.Values)
	if err != nil {
		logger.Error("prediction with model %s failed: %v", request.Name, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	err = json.NewEncoder(w).Encode(PredictResponse{States: states})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetChartHandler returns the chart, as it would be saved.
func GetChartHandler(w http.ResponseWriter, r *http.Request) {
	defer trace(r.RequestURI)()
	defaultContent(w)

	if !machineReady(w) {
		return
	}
	chart, err := machine.Chart()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	err = json.NewEncoder(w).Encode(chart)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
