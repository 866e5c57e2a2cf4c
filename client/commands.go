/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package client

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	CmdHealth  = "health"
	CmdGet     = "get"
	CmdUpdate  = "update"
	CmdPredict = "predict"
	CmdChart   = "chart"

	// StdinFlag reads the features from stdin, instead of a file.
	StdinFlag = "--"
)

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// Features is the document passed to `predict`, in YAML (or JSON):
//
//	values:
//	  - [1.0, 2.5]
//	  - [0.3, 1.2]
type Features struct {
	Values [][]float64 `yaml:"values"`
}

// ReadFeatures parses the rows of features at `path` (or stdin, see StdinFlag).
func ReadFeatures(path string) ([][]float64, error) {
	var f io.Reader
	if path == StdinFlag {
		f = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cannot open %s: %v", path, err)
		}
		defer file.Close()
		f = file
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var features Features
	if err = yaml.Unmarshal(data, &features); err != nil {
		return nil, err
	}
	if len(features.Values) == 0 {
		return nil, fmt.Errorf("no features in %s", path)
	}
	return features.Values, nil
}

// Run executes the CLI command `cmd` and writes the outcome to `out`.
func (c *CliClient) Run(cmd string, args []string, out io.Writer) error {
	arg := func(n int, what string) (string, error) {
		if len(args) <= n {
			return "", fmt.Errorf("%s: missing %s", cmd, what)
		}
		return args[n], nil
	}
	switch strings.ToLower(cmd) {
	case CmdHealth:
		if err := c.Health(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Server is UP")
	case CmdGet:
		name, err := arg(0, "state")
		if err != nil {
			return err
		}
		current, err := c.IsCurrent(name)
		if err != nil {
			return err
		}
		if current {
			fmt.Fprintf(out, "%s is the current state\n", titleCase(name))
		} else {
			fmt.Fprintf(out, "%s is not the current state\n", titleCase(name))
		}
	case CmdUpdate:
		name, err := arg(0, "state")
		if err != nil {
			return err
		}
		res, err := c.Update(name)
		if err != nil {
			return err
		}
		if res.Transitioned {
			fmt.Fprintf(out, "%s -> %s\n", titleCase(res.State), titleCase(res.Current))
		} else {
			fmt.Fprintf(out, "%s updated\n", titleCase(res.State))
		}
	case CmdPredict:
		model, err := arg(0, "model")
		if err != nil {
			return err
		}
		path, err := arg(1, "features file")
		if err != nil {
			return err
		}
		rows, err := ReadFeatures(path)
		if err != nil {
			return err
		}
		states, err := c.Predict(model, rows)
		if err != nil {
			return err
		}
		for i, state := range states {
			fmt.Fprintf(out, "%v: %s\n", rows[i], titleCase(state))
		}
	case CmdChart:
		chart, err := c.Chart()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(chart)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}
