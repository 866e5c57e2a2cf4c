/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/massenz/state-service/api"
)

// Node is either a split (`feature <= threshold` goes `left`, otherwise `right`)
// or, if it has a Class, a leaf.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Class     *int    `json:"class,omitempty"`
}

// DecisionTree is a Classifier stored as a flat list of Nodes, the first being the root.
type DecisionTree struct {
	Nodes []Node `json:"nodes"`
}

// LoadDecisionTree is the Loader for JSON-encoded DecisionTree artifacts.
func LoadDecisionTree(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", api.NotFoundError, path)
		}
		return nil, err
	}
	var tree DecisionTree
	if err = json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid decision tree: %v",
			api.MalformedChartError, path, err)
	}
	if err = tree.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &tree, nil
}

// Validate checks that every split points to existing nodes, and that the root
// cannot be reached again from any of its descendants.
func (t *DecisionTree) Validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: the tree has no nodes", api.MalformedChartError)
	}
	for i, n := range t.Nodes {
		if n.Class != nil {
			continue
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("%w: node %d has an invalid child %d",
					api.MalformedChartError, i, child)
			}
		}
		if n.Feature < 0 {
			return fmt.Errorf("%w: node %d has a negative feature index",
				api.MalformedChartError, i)
		}
	}
	return nil
}

// Classify walks the tree from the root down to a leaf.
//
// Children always follow their parent in `Nodes`, so the walk terminates.
func (t *DecisionTree) Classify(features []float64) (int, error) {
	if len(t.Nodes) == 0 {
		return 0, fmt.Errorf("%w: empty decision tree", api.InvalidOperationError)
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Class != nil {
			return *n.Class, nil
		}
		if n.Feature < 0 || n.Feature >= len(features) {
			return 0, fmt.Errorf("%w: node %d needs feature %d, only %d given",
				api.InvalidOperationError, i, n.Feature, len(features))
		}
		next := n.Right
		if features[n.Feature] <= n.Threshold {
			next = n.Left
		}
		if next <= i || next >= len(t.Nodes) {
			return 0, fmt.Errorf("%w: node %d has an invalid child %d",
				api.MalformedChartError, i, next)
		}
		i = next
	}
}
