// Package main is the entry point for the turbslice CLI.
//
// Usage:
//
//	turbslice info run.h5 [--tree]         # describe the store layout
//	turbslice vars run.h5                  # list variables
//	turbslice times run.h5 velocity        # list time keys of a variable
//	turbslice extract run.h5 --var velocity --x1 2,2,2 --x2 4,4,4 -o v.tns
//	turbslice run -c jobs.yaml             # run a job file
//	turbslice version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/turbslice/internal/logging"
)

// Set at build time via -ldflags "-X main.version=1.0.0".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "turbslice",
		Short: "Cut bounding boxes out of turbulence time series",
		Long: `turbslice reads HDF5 stores laid out as variable/time_key datasets and
extracts a 3-D bounding box from every time step into one [T, x, y, z]
tensor.

Bounds are inclusive on both ends and each axis is normalized on its own,
so --x1 5,1,1 --x2 1,5,5 selects indices 1..5 on every axis.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			levelName, _ := cmd.Flags().GetString("log-level")
			jsonLogs, _ := cmd.Flags().GetBool("log-json")
			level, err := logging.ParseLevel(levelName)
			if err != nil {
				return err
			}
			logging.InitWriter(cmd.ErrOrStderr(), level, jsonLogs)
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "log as JSON")

	root.AddCommand(
		newInfoCmd(),
		newVarsCmd(),
		newTimesCmd(),
		newExtractCmd(),
		newRunCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "turbslice %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// splitList splits a comma separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
