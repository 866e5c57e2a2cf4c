/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	. "github.com/massenz/state-service/client"
)

var (
	// Release is set by the Makefile at build time
	Release string
)

func main() {
	var serverAddr = flag.String("addr", "localhost:7399", "The address (host:port) for the HTTP server")
	var timeout = flag.Duration("timeout", DefaultTimeout, "Timeout for each request to the server")
	flag.Parse()

	cmd := strings.ToLower(flag.Arg(0))
	if cmd == "" {
		// Nothing to do, print the version and exit
		fmt.Println("State Machine CLI Client Rel.", Release)
		os.Exit(0)
	}

	c := NewClient(*serverAddr, *timeout)
	start := time.Now()
	if err := c.Run(cmd, flag.Args()[1:], os.Stdout); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	fmt.Printf("It took %v\n", time.Since(start))
}
