/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package config_test

import (
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/state-service/internal/config"
	internals "github.com/massenz/state-service/internal/testing"
)

var _ = Describe("TLS configuration", func() {
	var dir string
	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "certs")
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
		Expect(os.Unsetenv(config.TlsConfigDirEnv)).To(Succeed())
	})

	It("defaults the certificates directory", func() {
		Expect(os.Unsetenv(config.TlsConfigDirEnv)).To(Succeed())
		Expect(config.TlsConfigDir()).To(Equal(config.DefaultConfigDir))
		Expect(os.Setenv(config.TlsConfigDirEnv, dir)).To(Succeed())
		Expect(config.TlsConfigDir()).To(Equal(dir))
	})
	It("loads the server credentials", func() {
		Expect(internals.GenerateCerts(dir)).To(Succeed())
		creds, err := config.ServerCredentials(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(creds.Info().SecurityProtocol).To(Equal("tls"))
	})
	It("uses the env var, when no directory is given", func() {
		Expect(internals.GenerateCerts(dir)).To(Succeed())
		Expect(os.Setenv(config.TlsConfigDirEnv, dir)).To(Succeed())
		_, err := config.ServerCredentials("")
		Expect(err).ToNot(HaveOccurred())
	})
	It("fails without the key material", func() {
		_, err := config.ServerCredentials(dir)
		Expect(err).To(HaveOccurred())
	})
	It("creates client credentials, even without a CA", func() {
		Expect(config.ClientCredentials(dir)).ToNot(BeNil())
		Expect(internals.GenerateCerts(dir)).To(Succeed())
		Expect(config.ClientCredentials(dir).Info().SecurityProtocol).To(Equal("tls"))
	})
})
