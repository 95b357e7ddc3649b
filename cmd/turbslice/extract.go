package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/turbslice/extract"
	"github.com/robert-malhotra/turbslice/store"
	"github.com/robert-malhotra/turbslice/tensorio"
)

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract a bounding box from every time step of a variable",
		Long: `Read the box [x1, x2] (inclusive) from VARIABLE/<key> for every time key
and save the stacked [T, x, y, z] tensor.

Time keys are taken in the order given. "all" (the default) selects every
key of the variable in numeric order.

Example:
  turbslice extract run.h5 --var velocity --times 0,1,2 --x1 2,2,2 --x2 4,4,4 -o v.tns
  turbslice extract run.h5 --var pressure --x1 0,0,0 --x2 9,9,9 -o p.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}
	f := cmd.Flags()
	f.String("var", "", "variable to extract (required)")
	f.String("times", "all", `comma separated time keys, or "all"`)
	f.String("x1", "", "first corner i,j,k (required)")
	f.String("x2", "", "second corner i,j,k (required)")
	f.StringP("output", "o", "", "output file (required)")
	f.String("format", "", "tns, parquet or h5 (default from the output extension)")
	f.String("codec", "zstd", "payload codec for tns and parquet: zstd, lz4 or none")
	f.Int("level", 0, "compression level, 0 for the codec default")
	f.BoolP("quiet", "q", false, "suppress progress lines")
	for _, name := range []string{"var", "x1", "x2", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	variable, _ := f.GetString("var")
	timesFlag, _ := f.GetString("times")
	x1Flag, _ := f.GetString("x1")
	x2Flag, _ := f.GetString("x2")
	output, _ := f.GetString("output")
	formatFlag, _ := f.GetString("format")
	codecFlag, _ := f.GetString("codec")
	level, _ := f.GetInt("level")
	quiet, _ := f.GetBool("quiet")

	x1, err := extract.ParseCorner(x1Flag)
	if err != nil {
		return fmt.Errorf("--x1: %w", err)
	}
	x2, err := extract.ParseCorner(x2Flag)
	if err != nil {
		return fmt.Errorf("--x2: %w", err)
	}
	format := tensorio.FormatFromPath(output)
	if formatFlag != "" {
		if format, err = tensorio.ParseFormat(formatFlag); err != nil {
			return err
		}
	}
	codec, err := tensorio.ParseCodec(codecFlag)
	if err != nil {
		return err
	}

	s, err := store.Open(args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	keys := splitList(timesFlag)
	if len(keys) == 1 && strings.EqualFold(keys[0], "all") {
		all, err := s.TimeKeys(variable)
		if err != nil {
			return err
		}
		keys = store.SortTimeKeys(all)
	}

	progress := cmd.OutOrStdout()
	if quiet {
		progress = io.Discard
	}
	t, err := extract.Extract(cmd.Context(), s, variable, keys, x1, x2, extract.WithOutput(progress))
	if err != nil {
		return err
	}

	if err := tensorio.Save(output, format, t, tensorio.WithCodec(codec), tensorio.WithLevel(level)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s %s box %s\n", output, format, shapeString(t), t.Box)
	return nil
}

func shapeString(t *extract.Tensor) string {
	s := t.Shape()
	return store.FormatShape([]uint64{uint64(s[0]), uint64(s[1]), uint64(s[2]), uint64(s[3])})
}
