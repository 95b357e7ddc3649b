package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/turbslice/store"
)

func newVarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vars FILE",
		Short: "List the variables of a store in stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := store.ListVariableKeys(args[0])
			if err != nil {
				return err
			}
			for i, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, k)
			}
			return nil
		},
	}
}

func newTimesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "times FILE VARIABLE",
		Short: "List the time keys of a variable",
		Long: `List the time keys of a variable in stored order, or in numeric order
with --sorted.`,
		Args: cobra.ExactArgs(2),
		RunE: runTimes,
	}
	cmd.Flags().Bool("sorted", false, "order numeric keys numerically")
	return cmd
}

func runTimes(cmd *cobra.Command, args []string) error {
	s, err := store.Open(args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	keys, err := s.TimeKeys(args[1])
	if err != nil {
		return err
	}
	if sorted, _ := cmd.Flags().GetBool("sorted"); sorted {
		keys = store.SortTimeKeys(keys)
	}
	for _, k := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	return nil
}
