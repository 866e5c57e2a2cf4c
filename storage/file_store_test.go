/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package storage_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	slf4go "github.com/massenz/slf4go/logging"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/storage"
)

var _ = Describe("File Store", func() {
	var dir string
	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "charts")
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})
	newStore := func(name string, allowMissing bool) *storage.FileStore {
		store := storage.NewFileStore(filepath.Join(dir, name), allowMissing)
		store.SetLogLevel(slf4go.NONE)
		return store
	}

	Context("when the chart is missing", func() {
		It("fails with NotFound", func() {
			_, err := newStore("missing.yaml", false).GetChart()
			Expect(errors.Is(err, api.NotFoundError)).To(BeTrue())
		})
		It("fails with NotFound if no path is configured", func() {
			store := storage.NewFileStore("", false)
			store.SetLogLevel(slf4go.NONE)
			_, err := store.GetChart()
			Expect(errors.Is(err, api.NotFoundError)).To(BeTrue())
		})
		It("can synthesize a no_state chart", func() {
			chart, err := newStore("missing.yaml", true).GetChart()
			Expect(err).ToNot(HaveOccurred())
			Expect(chart).To(Equal(api.NoStateChart()))

			store := storage.NewFileStore("", true)
			store.SetLogLevel(slf4go.NONE)
			chart, err = store.GetChart()
			Expect(err).ToNot(HaveOccurred())
			Expect(chart.CurrentState).To(Equal(api.NoStateName))
		})
		It("creates the file on save", func() {
			store := newStore("created.yaml", true)
			chart, err := store.GetChart()
			Expect(err).ToNot(HaveOccurred())
			Expect(store.PutChart(chart)).To(Succeed())
			Expect(filepath.Join(dir, "created.yaml")).To(BeARegularFile())
			info, err := os.Stat(filepath.Join(dir, "created.yaml"))
			Expect(err).ToNot(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0644)))

			store.AllowMissing = false
			found, err := store.GetChart()
			Expect(err).ToNot(HaveOccurred())
			Expect(found.CurrentState).To(Equal(api.NoStateName))
		})
	})

	It("keeps the permissions of the chart it replaces", func() {
		path := filepath.Join(dir, "shared.yaml")
		store := newStore("shared.yaml", false)
		Expect(store.PutChart(newChart())).To(Succeed())
		Expect(os.Chmod(path, 0640)).To(Succeed())

		Expect(store.PutChart(api.NoStateChart())).To(Succeed())
		info, err := os.Stat(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0640)))
	})

	Context("when the chart is malformed", func() {
		It("fails with Malformed", func() {
			path := filepath.Join(dir, "bad.yaml")
			Expect(os.WriteFile(path, []byte("states: [ {name: one"), 0o644)).To(Succeed())
			_, err := newStore("bad.yaml", true).GetChart()
			Expect(errors.Is(err, api.MalformedChartError)).To(BeTrue())
		})
		It("fails with Malformed for bad JSON", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte(`{"current_state": `), 0o644)).To(Succeed())
			_, err := newStore("bad.json", false).GetChart()
			Expect(errors.Is(err, api.MalformedChartError)).To(BeTrue())
		})
	})

	Context("when saving charts", func() {
		It("round-trips YAML", func() {
			store := newStore("chart.yaml", false)
			chart := newChart()
			Expect(store.PutChart(chart)).To(Succeed())
			found, err := store.GetChart()
			Expect(err).ToNot(HaveOccurred())
			Expect(found.CheckValid()).To(Succeed())
			Expect(found.CurrentState).To(Equal(chart.CurrentState))
			Expect(found.States).To(HaveLen(3))
			Expect(found.States[0].Current.Value).To(Equal(1))
			Expect(found.States[1].Target.When.Value).To(Equal("2022-06-15T10:30:00"))
		})
		It("writes JSON for .json files", func() {
			store := newStore("chart.json", false)
			Expect(store.PutChart(newChart())).To(Succeed())
			data, err := os.ReadFile(filepath.Join(dir, "chart.json"))
			Expect(err).ToNot(HaveOccurred())
			var doc map[string]interface{}
			Expect(json.Unmarshal(data, &doc)).To(Succeed())
			Expect(doc["current_state"]).To(Equal("state_1"))

			found, err := store.GetChart()
			Expect(err).ToNot(HaveOccurred())
			Expect(found.States[0].Current.Value).To(Equal(float64(1)))
		})
		It("leaves no temporary files behind", func() {
			store := newStore("chart.yaml", false)
			Expect(store.PutChart(newChart())).To(Succeed())
			Expect(store.PutChart(newChart())).To(Succeed())
			entries, err := os.ReadDir(dir)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})
		It("needs a path", func() {
			store := storage.NewFileStore("", true)
			store.SetLogLevel(slf4go.NONE)
			Expect(errors.Is(store.PutChart(newChart()), storage.IllegalStoreError)).To(BeTrue())
		})
		It("is healthy when the directory exists", func() {
			Expect(newStore("chart.yaml", false).Health()).To(Succeed())
			store := storage.NewFileStore("/does/not/exist/chart.yaml", false)
			store.SetLogLevel(slf4go.NONE)
			Expect(store.Health()).ToNot(Succeed())
		})
	})
})
