/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cli

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/timeutil"
)

// ErrCommandFailed signals that the command already printed a structured
// error envelope; main translates it into a non-zero exit code without
// further output.
var ErrCommandFailed = errors.New("command failed")

// NewRootCmd assembles the autoscorer command tree.
func NewRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "autoscorer",
		Short:         "Automated scoring service for offline model evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadConfig(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(
		newValidateCmd(),
		newRunCmd(),
		newScoreCmd(),
		newPipelineCmd(),
		newSubmitCmd(),
		newScorersCmd(),
		newConfigCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printSuccess writes the standard CLI success envelope. Extra keys are
// merged at the top level next to status and data.
func printSuccess(w io.Writer, data any, extras map[string]any) {
	out := map[string]any{
		"status":    "success",
		"data":      data,
		"timestamp": timeutil.NowISO8601(),
	}
	for k, v := range extras {
		out[k] = v
	}
	printJSON(w, out)
}

// printError writes the standard CLI error envelope and returns
// ErrCommandFailed for the exit code.
func printError(w io.Writer, code, message, stage string, details map[string]any) error {
	errObj := map[string]any{
		"code":    code,
		"message": message,
		"stage":   stage,
	}
	if details != nil {
		errObj["details"] = details
	}
	printJSON(w, map[string]any{
		"status":    "error",
		"error":     errObj,
		"timestamp": timeutil.NowISO8601(),
	})
	return ErrCommandFailed
}
