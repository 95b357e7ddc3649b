package main

import (
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/turbslice/store"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "Describe the layout of a store",
		Long: `Print the number of variables and their keys, then follow the first
member down to a dataset and print its dtype and shape.

With --tree every group and dataset is listed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runInfo,
	}
	cmd.Flags().Bool("tree", false, "list every group and dataset")
	return cmd
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := store.Open(args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	if tree, _ := cmd.Flags().GetBool("tree"); tree {
		return s.Tree(cmd.OutOrStdout())
	}
	return s.Describe(cmd.OutOrStdout())
}
