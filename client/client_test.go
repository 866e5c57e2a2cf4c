/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package client_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/client"
)

// The specs in this file share the server, and run in order.
var _ = Describe("CLI Client", func() {
	var (
		svc *client.CliClient
		out *bytes.Buffer
	)
	BeforeEach(func() {
		svc = client.NewClient(testServer.URL, 0)
		out = &bytes.Buffer{}
	})

	It("checks the server is healthy", func() {
		Expect(svc.Health()).To(Succeed())
		Expect(svc.Run(client.CmdHealth, nil, out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("UP"))
	})
	It("accepts a host:port address", func() {
		other := client.NewClient(strings.TrimPrefix(testServer.URL, "http://"), 0)
		Expect(other.Health()).To(Succeed())
	})
	It("knows the current state", func() {
		Expect(svc.IsCurrent("start")).To(BeTrue())
		Expect(svc.IsCurrent("end")).To(BeFalse())
		Expect(svc.Run(client.CmdGet, []string{"start"}, out)).To(Succeed())
		Expect(out.String()).To(Equal("Start is the current state\n"))
	})
	It("returns the chart", func() {
		chart, err := svc.Chart()
		Expect(err).ToNot(HaveOccurred())
		Expect(chart.CurrentState).To(Equal("start"))
		Expect(svc.Run(client.CmdChart, nil, out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("current_state: start"))
	})
	It("predicts states", func() {
		states, err := svc.Predict("walker", [][]float64{{1, 2}, {3, 4}})
		Expect(err).ToNot(HaveOccurred())
		Expect(states).To(Equal([]string{"run", "run"}))

		_, err = svc.Predict("flyer", [][]float64{{1}})
		Expect(errors.Is(err, api.NotFoundError)).To(BeTrue())
	})
	It("predicts states from a features file", func() {
		dir, err := os.MkdirTemp("", "features")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "features.yaml")
		Expect(os.WriteFile(path, []byte("values:\n  - [1.0, 2.5]\n"), 0644)).To(Succeed())

		Expect(svc.Run(client.CmdPredict, []string{"walker", path}, out)).To(Succeed())
		Expect(out.String()).To(Equal("[1 2.5]: Run\n"))
	})
	It("updates the current state until it transitions", func() {
		res, err := svc.Update("start")
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Transitioned).To(BeFalse())
		Expect(res.Current).To(Equal("start"))

		Expect(svc.Run(client.CmdUpdate, []string{"start"}, out)).To(Succeed())
		Expect(out.String()).To(Equal("Start -> End\n"))
		Expect(svc.IsCurrent("end")).To(BeTrue())
	})
	It("cannot update a terminal state", func() {
		_, err := svc.Update("end")
		Expect(errors.Is(err, api.InvalidOperationError)).To(BeTrue())
	})
	It("rejects bad commands", func() {
		Expect(svc.Run("launch", nil, out)).ToNot(Succeed())
		Expect(svc.Run(client.CmdUpdate, nil, out)).ToNot(Succeed())
		Expect(svc.Run(client.CmdPredict, []string{"walker", "/no/such/file"}, out)).ToNot(Succeed())
	})
})
