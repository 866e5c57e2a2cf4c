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
	"net/http"
)

// NOTE: We make the handlers "exportable" so they can be tested, do NOT call directly.

// HealthHandler reports UP once the machine has been built and its store is reachable.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	// Standard preamble for all handlers, sets tracing (if enabled) and default content type.
	defer trace(r.RequestURI)()
	defaultContent(w)

	res := MessageResponse{Msg: "UP"}
	status := http.StatusOK
	if machine == nil || !machine.IsBuilt() {
		res = MessageResponse{Error: "state machine not built"}
		status = http.StatusServiceUnavailable
	} else if store != nil {
		if err := store.Health(); err != nil {
			logger.Error("chart store is unhealthy: %v", err)
			res = MessageResponse{Error: err.Error()}
			status = http.StatusServiceUnavailable
		}
	}
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
