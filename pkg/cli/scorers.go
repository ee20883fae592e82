/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/scorers"
)

func newScorersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scorers",
		Short: "List, load, reload and test scorers",
	}
	cmd.AddCommand(
		newScorersListCmd(),
		newScorersLoadCmd(),
		newScorersReloadCmd(),
		newScorersTestCmd(),
	)
	return cmd
}

func newScorersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered scorers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := scorers.Default()
			list := registry.List()
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"scorers":       list,
				"total":         len(list),
				"watched_files": registry.WatchedFiles(),
			}, map[string]any{"action": "scorers_list"})
			return nil
		},
	}
}

func newScorersLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Load a scorer plugin and watch it for changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			registry := scorers.Default()
			loaded, err := registry.LoadFromFile(filePath, false)
			if err != nil {
				typed := errors.Convert(err, errors.CodeParseError, "scorers")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"scorers", map[string]any{"file_path": filePath})
			}
			if err := registry.StartWatching(filePath, time.Second); err != nil {
				typed := errors.Convert(err, errors.CodeParseError, "scorers")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"scorers", map[string]any{"file_path": filePath})
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"loaded":    loaded,
				"count":     len(loaded),
				"watching":  true,
				"file_path": filePath,
			}, map[string]any{"action": "scorers_load"})
			return nil
		},
	}
}

func newScorersReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload <file>",
		Short: "Force reload a scorer plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			loaded, err := scorers.Default().Reload(filePath)
			if err != nil {
				typed := errors.Convert(err, errors.CodeParseError, "scorers")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"scorers", map[string]any{"file_path": filePath})
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"reloaded":  loaded,
				"count":     len(loaded),
				"file_path": filePath,
			}, map[string]any{"action": "scorers_reload"})
			return nil
		},
	}
}

func newScorersTestCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "test <scorer>",
		Short: "Run a scorer against a workspace and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := workspaceExists(cmd, workspace); err != nil {
				return err
			}
			registry := scorers.Default()
			scorer, err := registry.Get(name)
			if err != nil {
				typed := errors.Convert(err, errors.CodeScorerNotFound, "scorers")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"scorers", typed.Details)
			}
			result, err := scorer.Score(workspace, map[string]any{})
			if err != nil {
				typed := errors.Convert(err, errors.CodeScoreError, "scorers")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"scorers", map[string]any{"scorer": name, "workspace": workspace})
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"scorer": name,
				"class":  registry.List()[name],
				"result": map[string]any{
					"summary":    result.Summary,
					"versioning": result.Versioning,
				},
			}, map[string]any{"action": "scorers_test", "workspace": workspace})
			return nil
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace to score")
	cmd.MarkFlagRequired("workspace")
	return cmd
}
