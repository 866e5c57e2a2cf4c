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
	"errors"

	"github.com/massenz/state-service/api"
)

// Seed copies the Chart from `src` into `dst`, only if `dst` does not have one yet;
// it returns true if the Chart was copied.
func Seed(dst, src ChartStore) (bool, error) {
	_, err := dst.GetChart()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, api.NotFoundError) {
		return false, err
	}
	chart, err := src.GetChart()
	if err != nil {
		return false, err
	}
	if err = chart.CheckValid(); err != nil {
		return false, err
	}
	return true, dst.PutChart(chart)
}
