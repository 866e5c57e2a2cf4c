/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/server"
)

const DefaultTimeout = 5 * time.Second

// CliClient talks to the HTTP control surface of the state machine server.
type CliClient struct {
	baseUrl string
	http    *http.Client
}

// NewClient connects to the server at `address`, which can be either a `host:port`
// or a full URL.
func NewClient(address string, timeout time.Duration) *CliClient {
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CliClient{
		baseUrl: strings.TrimSuffix(address, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *CliClient) stateUrl(name string) string {
	return fmt.Sprintf("%s%s?%s=%s", c.baseUrl, server.StateEndpoint, server.StateParam,
		url.QueryEscape(name))
}

// do sends the request and decodes the JSON response in `result`, if not nil.
//
// Error statuses are mapped back onto the API errors.
func (c *CliClient) do(method, target string, body interface{}, result interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set(server.ContentType, server.ApplicationJson)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, errorFor(resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if result != nil {
		if err = json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("cannot decode the response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func errorFor(status int, msg string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", api.NotFoundError, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", api.MalformedChartError, msg)
	case http.StatusConflict, http.StatusNotAcceptable:
		return fmt.Errorf("%w: %s", api.InvalidOperationError, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", api.NotBuiltError, msg)
	}
	return fmt.Errorf("server error (%d): %s", status, msg)
}

// Health returns nil if the server is UP.
func (c *CliClient) Health() error {
	var res server.MessageResponse
	_, err := c.do(http.MethodGet, c.baseUrl+server.HealthEndpoint, nil, &res)
	return err
}

// IsCurrent is true if `name` is the current state.
func (c *CliClient) IsCurrent(name string) (bool, error) {
	var res server.StateResponse
	status, err := c.do(http.MethodGet, c.stateUrl(name), nil, &res)
	if status == http.StatusNotAcceptable {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.State == name, nil
}

// Update updates the state `name`, which must be the current one.
func (c *CliClient) Update(name string) (*server.UpdateResponse, error) {
	var res server.UpdateResponse
	if _, err := c.do(http.MethodPut, c.stateUrl(name), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Predict returns the states predicted by `model`, one for each of the `rows`.
func (c *CliClient) Predict(model string, rows [][]float64) ([]string, error) {
	var res server.PredictResponse
	_, err := c.do(http.MethodPost, c.baseUrl+server.StateEndpoint,
		server.PredictRequest{Name: model, Values: rows}, &res)
	if err != nil {
		return nil, err
	}
	return res.States, nil
}

func (c *CliClient) Chart() (*api.Chart, error) {
	var chart api.Chart
	if _, err := c.do(http.MethodGet, c.baseUrl+server.ChartEndpoint, nil, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}
