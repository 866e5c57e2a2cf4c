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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/massenz/slf4go/logging"

	"github.com/massenz/state-service/api"
)

// Classifier maps a vector of features to the index of a class.
type Classifier interface {
	Classify(features []float64) (int, error)
}

// Loader deserializes the Classifier stored at `path`.
type Loader func(path string) (Classifier, error)

// Descriptor describes a model: the artifact is found at `<models>/<team>/<model>`
// and `States` maps the classes it predicts to state names.
type Descriptor struct {
	Name   string   `json:"name"`
	Team   string   `json:"team"`
	Model  string   `json:"model"`
	States []string `json:"states"`
}

type model struct {
	Descriptor
	classifier Classifier
}

// Registry hosts the models, keyed by name; artifacts are loaded the first time
// a model is used, and then kept.
type Registry struct {
	logger    *log.Log
	modelsDir string
	loader    Loader

	mux    sync.Mutex
	models map[string]*model
}

// NewRegistry reads all the `*.json` model descriptors in `configDir`; a nil `loader`
// defaults to LoadDecisionTree.
//
// An empty `configDir` gives an empty Registry.
func NewRegistry(configDir, modelsDir string, loader Loader) (*Registry, error) {
	if loader == nil {
		loader = LoadDecisionTree
	}
	r := &Registry{
		logger:    log.NewLog("predictor"),
		modelsDir: modelsDir,
		loader:    loader,
		models:    make(map[string]*model),
	}
	if configDir == "" {
		return r, nil
	}
	entries, err := os.ReadDir(configDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read models configuration directory %s: %w", configDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(configDir, entry.Name())
		desc, err := readDescriptor(path)
		if err != nil {
			return nil, err
		}
		if err = r.Register(desc, nil); err != nil {
			return nil, err
		}
		r.logger.Debug("registered model %s (%s/%s) from %s", desc.Name, desc.Team, desc.Model, path)
	}
	return r, nil
}

func readDescriptor(path string) (Descriptor, error) {
	var desc Descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return desc, err
	}
	if err = json.Unmarshal(data, &desc); err != nil {
		return desc, fmt.Errorf("%w: %s is not proper JSON", api.MalformedChartError, path)
	}
	if desc.Name == "" {
		return desc, fmt.Errorf("%w: %s is missing the name key", api.MalformedChartError, path)
	}
	return desc, nil
}

// Register adds (or replaces) a model; if `classifier` is nil, it will be loaded
// from the models directory on first use.
func (r *Registry) Register(desc Descriptor, classifier Classifier) error {
	if desc.Name == "" {
		return fmt.Errorf("%w: models must have a name", api.MalformedChartError)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.models[desc.Name] = &model{Descriptor: desc, classifier: classifier}
	return nil
}

// Models returns the names of all the registered models, sorted.
func (r *Registry) Models() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	m, ok := r.models[name]
	if !ok {
		return Descriptor{}, false
	}
	return m.Descriptor, true
}

// Predict returns the predicted state for each of the `rows` of features.
func (r *Registry) Predict(name string, rows [][]float64) ([]string, error) {
	m, err := r.model(name)
	if err != nil {
		return nil, err
	}
	states := make([]string, 0, len(rows))
	for _, features := range rows {
		class, err := m.classifier.Classify(features)
		if err != nil {
			r.logger.Error("model %s cannot classify %v: %v", name, features, err)
			return nil, err
		}
		if class < 0 || class >= len(m.States) {
			return nil, fmt.Errorf("%w: model %s predicted class %d, but only has %d states",
				api.InvalidOperationError, name, class, len(m.States))
		}
		states = append(states, m.States[class])
	}
	r.logger.Trace("model %s predicted %v", name, states)
	return states, nil
}

func (r *Registry) model(name string) (*model, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: no model named %q", api.NotFoundError, name)
	}
	if m.classifier == nil {
		path := filepath.Join(r.modelsDir, m.Team, m.Model)
		r.logger.Debug("loading model %s from %s", name, path)
		classifier, err := r.loader(path)
		if err != nil {
			r.logger.Error("cannot load model %s: %v", name, err)
			return nil, err
		}
		m.classifier = classifier
	}
	return m, nil
}

// SetLogLevel for Registry implements the Loggable interface
func (r *Registry) SetLogLevel(level log.LogLevel) {
	r.logger.Level = level
}
