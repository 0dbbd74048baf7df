// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/logging"
	"github.com/HalcyonAI/HalcyonFOSS/pkg/ux"
)

var (
	config Config
	logger *logging.Logger
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ux.Styles.Error.Render("Error: "+err.Error()))
		if logger != nil {
			logger.Close()
		}
		os.Exit(1)
	}
	if logger != nil {
		logger.Close()
	}
}

// loadGlobalConfig populates the package-level config and logger. It
// runs once per invocation from the root command's PersistentPreRunE.
func loadGlobalConfig() error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	config = cfg

	logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "halcyon-cli",
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Dir != "", // keep stderr clean once file logging is on
	})
	logger.Install()
	return nil
}
