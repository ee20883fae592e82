/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cli

import (
	"github.com/spf13/cobra"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, validate and dump configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
		newConfigDumpCmd(),
		newConfigPathsCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective values of the main settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"DOCKER_HOST":        config.GetDockerHost(),
				"IMAGE_PULL_POLICY":  config.GetImagePullPolicy(),
				"DEFAULT_CPU":        config.GetDefaultCPU(),
				"DEFAULT_MEMORY":     config.GetDefaultMemory(),
				"DEFAULT_GPU":        config.GetDefaultGPU(),
				"TIMEOUT":            config.GetTimeout(),
				"K8S_ENABLED":        config.IsK8sEnabled(),
				"K8S_NAMESPACE":      config.GetK8sNamespace(),
				"CELERY_BROKER":      config.GetBrokerURL(),
				"LOG_DIR":            config.GetLogDir(),
				"SERVER_PORT":        config.GetServerPort(),
				"WORKER_CONCURRENCY": config.GetWorkerConcurrency(),
			}, map[string]any{"config_file": config.ConfigFileUsed()})
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the loaded configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := config.Validate(); len(errs) > 0 {
				return printError(cmd.OutOrStdout(), "CONFIG_VALIDATION_ERROR",
					"configuration validation failed", "config_management",
					map[string]any{"errors": errs})
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{"validation": "passed"},
				map[string]any{"config_file": config.ConfigFileUsed()})
			return nil
		},
	}
}

func newConfigDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Dump the full configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printSuccess(cmd.OutOrStdout(), config.Dump(),
				map[string]any{"config_file": config.ConfigFileUsed()})
			return nil
		},
	}
}

func newConfigPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show the config file search order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"search_paths":   config.SearchPaths("config.yaml"),
				"current_config": config.ConfigFileUsed(),
				"search_order": []string{
					"1. working directory",
					"2. project root",
					"3. ~/.autoscorer/",
					"4. /etc/autoscorer/",
				},
			}, nil)
			return nil
		},
	}
}
