/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package predictor_test

import (
	"errors"
	"os"
	"path/filepath"

	log "github.com/massenz/slf4go/logging"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/predictor"
)

// fixedClassifier always predicts the same class.
type fixedClassifier int

func (c fixedClassifier) Classify(_ []float64) (int, error) {
	return int(c), nil
}

var fixture = predictor.Descriptor{
	Name:   "fixture",
	Team:   "state_service",
	Model:  "fixture.json",
	States: []string{"walk", "run", "jump"},
}

var _ = Describe("Registry", func() {
	var configDir, modelsDir string
	var registry *predictor.Registry

	writeFile := func(path, contents string) {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(contents), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "config")
		Expect(err).ToNot(HaveOccurred())
		modelsDir, err = os.MkdirTemp("", "models")
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		Expect(os.RemoveAll(configDir)).To(Succeed())
		Expect(os.RemoveAll(modelsDir)).To(Succeed())
	})

	Context("with a registered classifier", func() {
		BeforeEach(func() {
			var err error
			registry, err = predictor.NewRegistry("", "", nil)
			Expect(err).ToNot(HaveOccurred())
			registry.SetLogLevel(log.NONE)
			Expect(registry.Register(fixture, fixedClassifier(1))).To(Succeed())
		})
		It("maps the predicted class to a state", func() {
			Expect(registry.Predict("fixture", [][]float64{{100, 0}})).To(Equal([]string{"run"}))
		})
		It("predicts one state per row", func() {
			Expect(registry.Predict("fixture", [][]float64{{1}, {2}})).To(Equal([]string{"run", "run"}))
			Expect(registry.Predict("fixture", nil)).To(BeEmpty())
		})
		It("fails for unknown models", func() {
			_, err := registry.Predict("missing", [][]float64{{1}})
			Expect(errors.Is(err, api.NotFoundError)).To(BeTrue())
		})
		It("fails for classes without a state", func() {
			Expect(registry.Register(fixture, fixedClassifier(3))).To(Succeed())
			_, err := registry.Predict("fixture", [][]float64{{1}})
			Expect(errors.Is(err, api.InvalidOperationError)).To(BeTrue())
		})
		It("needs models to have a name", func() {
			err := registry.Register(predictor.Descriptor{}, fixedClassifier(0))
			Expect(errors.Is(err, api.MalformedChartError)).To(BeTrue())
		})
	})

	Context("when reading descriptors", func() {
		BeforeEach(func() {
			writeFile(filepath.Join(configDir, "fixture.json"), `{
				"name": "fixture",
				"team": "state_service",
				"model": "fixture.json",
				"states": ["walk", "run", "jump"]
			}`)
			writeFile(filepath.Join(configDir, "README.md"), "not a model")
		})
		It("registers every JSON descriptor", func() {
			registry, err := predictor.NewRegistry(configDir, modelsDir, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(registry.Models()).To(Equal([]string{"fixture"}))
			desc, ok := registry.Descriptor("fixture")
			Expect(ok).To(BeTrue())
			Expect(desc.States).To(HaveLen(3))
		})
		It("loads the artifact on first use", func() {
			writeFile(filepath.Join(modelsDir, "state_service", "fixture.json"), `{"nodes": [
				{"feature": 0, "threshold": 10, "left": 1, "right": 2},
				{"class": 0},
				{"class": 1}
			]}`)
			registry, err := predictor.NewRegistry(configDir, modelsDir, nil)
			Expect(err).ToNot(HaveOccurred())
			registry.SetLogLevel(log.NONE)
			Expect(registry.Predict("fixture", [][]float64{{100, 0}, {1, 0}})).To(
				Equal([]string{"run", "walk"}))
		})
		It("uses the configured loader", func() {
			var loaded string
			registry, err := predictor.NewRegistry(configDir, modelsDir,
				func(path string) (predictor.Classifier, error) {
					loaded = path
					return fixedClassifier(2), nil
				})
			Expect(err).ToNot(HaveOccurred())
			Expect(registry.Predict("fixture", [][]float64{{0}})).To(Equal([]string{"jump"}))
			Expect(loaded).To(Equal(filepath.Join(modelsDir, "state_service", "fixture.json")))
		})
		It("fails when the artifact does not exist", func() {
			registry, err := predictor.NewRegistry(configDir, modelsDir, nil)
			Expect(err).ToNot(HaveOccurred())
			registry.SetLogLevel(log.NONE)
			_, err = registry.Predict("fixture", [][]float64{{100, 0}})
			Expect(errors.Is(err, api.NotFoundError)).To(BeTrue())
		})
		It("rejects descriptors without a name", func() {
			writeFile(filepath.Join(configDir, "nameless.json"), `{"team": "a", "model": "b"}`)
			_, err := predictor.NewRegistry(configDir, modelsDir, nil)
			Expect(errors.Is(err, api.MalformedChartError)).To(BeTrue())
		})
		It("rejects descriptors which are not JSON", func() {
			writeFile(filepath.Join(configDir, "broken.json"), `{"name": `)
			_, err := predictor.NewRegistry(configDir, modelsDir, nil)
			Expect(errors.Is(err, api.MalformedChartError)).To(BeTrue())
		})
		It("fails if the directory does not exist", func() {
			_, err := predictor.NewRegistry(filepath.Join(configDir, "nope"), modelsDir, nil)
			Expect(err).To(HaveOccurred())
		})
	})
})
