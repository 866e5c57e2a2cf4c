/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/massenz/state-service/api"
)

// Format is the encoding of a stored Chart document.
type Format int

const (
	YAML Format = iota
	JSON
)

// FormatFor infers the Format from the file extension; anything other than
// `.json` is assumed to be YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

func (f Format) String() string {
	if f == JSON {
		return "json"
	}
	return "yaml"
}

func encode(chart *api.Chart, format Format) ([]byte, error) {
	if chart == nil {
		return nil, IllegalStoreError
	}
	if format == JSON {
		return json.MarshalIndent(chart, "", "  ")
	}
	return yaml.Marshal(chart)
}

func decode(data []byte, format Format) (*api.Chart, error) {
	var chart api.Chart
	var err error
	if format == JSON {
		err = json.Unmarshal(data, &chart)
	} else {
		err = yaml.Unmarshal(data, &chart)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode %s: %v", api.MalformedChartError, format, err)
	}
	return &chart, nil
}
