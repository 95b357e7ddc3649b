package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/turbslice/config"
	"github.com/robert-malhotra/turbslice/extract"
	"github.com/robert-malhotra/turbslice/internal/logging"
	"github.com/robert-malhotra/turbslice/store"
	"github.com/robert-malhotra/turbslice/tensorio"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the extraction jobs of a YAML file",
		Long: `Run every job of a job file against its input store. Jobs run
concurrently, each with its own store handle, and every result is saved
once all jobs have finished. The first failing job cancels the rest.

Example job file:
  input: run42.h5
  workers: 2
  jobs:
    - variable: velocity
      times: ["0", "1", "2"]
      x1: [2, 2, 2]
      x2: [4, 4, 4]
      output: velocity.tns`,
		Args: cobra.NoArgs,
		RunE: runJobs,
	}
	cmd.Flags().StringP("config", "c", "", "path to job file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().Bool("dry-run", false, "validate the job file and print the plan")
	return cmd
}

func runJobs(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !cmd.Flags().Changed("log-level") {
		level, _ := logging.ParseLevel(cfg.LogLevel)
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		logging.InitWriter(cmd.ErrOrStderr(), level, jsonLogs)
	}
	log := logging.Component("run")

	reqs, err := planRequests(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		for i, req := range reqs {
			job := &cfg.Jobs[i]
			fmt.Fprintf(out, "job %d: %s, %d time keys, box %s -> %s (%s)\n",
				i, req.Variable, len(req.TimeKeys), req.Box().Normalize(), job.Output, job.Format)
		}
		return nil
	}

	log.Info("running jobs", "input", cfg.Input, "jobs", len(reqs), "workers", cfg.Workers)
	tensors, err := extract.ExtractMany(cmd.Context(), cfg.Input, reqs,
		extract.WithWorkers(cfg.Workers), extract.WithOutput(out))
	if err != nil {
		return err
	}

	for i, t := range tensors {
		job := &cfg.Jobs[i]
		if err := tensorio.Save(job.Output, job.Format, t, job.Options()...); err != nil {
			return fmt.Errorf("jobs[%d] (%s): %w", i, job.Variable, err)
		}
		fmt.Fprintf(out, "wrote %s: %s %s box %s\n", job.Output, job.Format, shapeString(t), t.Box)
	}
	return nil
}

// planRequests turns the jobs into extraction requests, listing the time
// keys of every job that selects all of them.
func planRequests(cfg *config.Config) ([]extract.Request, error) {
	var s *store.Store
	defer func() {
		if s != nil {
			s.Close()
		}
	}()

	reqs := make([]extract.Request, len(cfg.Jobs))
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		var keys []string
		if job.Times.All {
			if s == nil {
				var err error
				if s, err = store.Open(cfg.Input); err != nil {
					return nil, err
				}
			}
			all, err := s.TimeKeys(job.Variable)
			if err != nil {
				return nil, fmt.Errorf("jobs[%d]: %w", i, err)
			}
			keys = store.SortTimeKeys(all)
		}
		reqs[i] = job.Request(keys)
	}
	return reqs, nil
}
