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
	"strings"
)

const (
	KeyPrefixIDSeparator = "#"
	DefaultChartName     = "default"
)

// Here we keep all the key definitions for the Redis collections.

// NewKeyForChart charts#<name>
func NewKeyForChart(name string) string {
	if name == "" {
		name = DefaultChartName
	}
	return strings.Join([]string{"charts", name}, KeyPrefixIDSeparator)
}

