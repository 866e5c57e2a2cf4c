/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc/credentials"
)

const (
	// TlsConfigDirEnv is the env var which defines where are the certs and keys stored.
	TlsConfigDirEnv = "TLS_CONFIG_DIR"

	// DefaultConfigDir is the default directory for the key material
	// if TLS is enabled, but TlsConfigDirEnv is not defined,
	DefaultConfigDir = "/etc/statemachine/certs"

	// CAFile is the name of Certificate for the root CA (can be self-signed, in which
	// case it should be provided to the client too), use `make gencert` to generate.
	CAFile = "ca.pem"

	// ServerCertFile is the Server certificate (containing the valid host names), use `make gencert` to generate.
	ServerCertFile = "server.pem"

	// ServerKeyFile the private signing key for the certificate, use `make gencert` to generate.
	ServerKeyFile = "server-key.pem"
)

// TlsConfigDir is where the key material is found, unless a directory is
// configured explicitly.
func TlsConfigDir() string {
	if dir := os.Getenv(TlsConfigDirEnv); dir != "" {
		return dir
	}
	return DefaultConfigDir
}

// ServerCredentials loads the server certificate and key from `dir`; if empty, the
// TlsConfigDir is used.
func ServerCredentials(dir string) (credentials.TransportCredentials, error) {
	if dir == "" {
		dir = TlsConfigDir()
	}
	cert, err := tls.LoadX509KeyPair(filepath.Join(dir, ServerCertFile),
		filepath.Join(dir, ServerKeyFile))
	if err != nil {
		return nil, fmt.Errorf("cannot load the server certificate from %s: %w", dir, err)
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// ClientCredentials trusts the CA certificate found in `dir`; if it cannot be read,
// the server certificate is not verified at all.
func ClientCredentials(dir string) credentials.TransportCredentials {
	if dir == "" {
		dir = TlsConfigDir()
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	b, err := os.ReadFile(filepath.Join(dir, CAFile))
	if err != nil {
		tlsConfig.InsecureSkipVerify = true
		return credentials.NewTLS(tlsConfig)
	}
	ca := x509.NewCertPool()
	if !ca.AppendCertsFromPEM(b) {
		tlsConfig.InsecureSkipVerify = true
	} else {
		tlsConfig.RootCAs = ca
	}
	return credentials.NewTLS(tlsConfig)
}
