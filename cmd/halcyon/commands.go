// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/ux"
)

// CLI version, overridden at release time via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	configPath       string
	serverURL        string // CLI override for server.base_url
	sessionID        string // continue an existing conversation
	namespaces       []string
	researchMode     bool
	machineOutput    bool
	metricsAddr      string // CLI override for metrics.addr
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "halcyon",
		Short: "A cli for conversational search against a Halcyon deployment",
		Long: `Halcyon asks questions of your private document corpus and
streams back grounded, cited answers from the search orchestrator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadGlobalConfig(); err != nil {
				return err
			}
			return applyPersonality()
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks a question and streams the answer with citations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAskCommand, // Defined in cmd_ask.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the halcyon CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("halcyon %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Orchestrator base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output personality: full, standard, minimal, or machine")
	rootCmd.PersistentFlags().BoolVarP(&machineOutput, "quiet", "q", false,
		"Shorthand for --personality=machine")

	askCmd.Flags().StringVar(&sessionID, "session", "",
		"Session id to continue a previous conversation")
	askCmd.Flags().StringSliceVar(&namespaces, "namespace", nil,
		"Restrict retrieval to these namespaces (repeatable)")
	askCmd.Flags().BoolVar(&researchMode, "research", false,
		"Ask the backend for deeper multi-pass retrieval")
	askCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"Expose Prometheus metrics on this address while the command runs")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)
}

// applyPersonality resolves the UX level from flag, then config, then
// terminal auto-detection.
func applyPersonality() error {
	if machineOutput {
		ux.SetPersonality(ux.PersonalityMachine)
		return nil
	}
	level := personalityLevel
	if level == "" {
		level = config.Personality
	}
	if level == "" {
		return nil // keep the auto-detected default
	}
	parsed, err := ux.ParsePersonalityLevel(level)
	if err != nil {
		return err
	}
	ux.SetPersonality(parsed)
	return nil
}
