package main

import (
	"fmt"
	"io"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/equalizer"
	"github.com/spf13/cobra"
)

func newEqualizeCmd(a *app) *cobra.Command {
	var (
		gains []int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "equalize <track>",
		Short: "Render an equalized copy of a track",
		Long: fmt.Sprintf(`Apply the five band peaking equalizer to the original audio of a track
and write a peak-normalised 16-bit WAV. Bands are centred at %v Hz and
gains are whole dB in [%d, %d]. Without --out a temp file is written and the
previous temp output for the same track is removed.`,
			equalizer.StandardBands, equalizer.MinGainDB, equalizer.MaxGainDB),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.Equalize(cmd.Context(), args[0], gains, out)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Source\t%s\n", res.Source)
				fmt.Fprintf(w, "Bands\t%s\n", res.Bands)
				fmt.Fprintf(w, "Samples\t%d @ %d Hz\n", res.Samples, res.SampleRate)
				fmt.Fprintf(w, "Output\t%s\n", res.OutputPath)
			})
		},
	}
	cmd.Flags().IntSliceVarP(&gains, "gains", "g", make([]int, len(equalizer.StandardBands)),
		"comma separated gains in dB, one per band")
	cmd.Flags().StringVar(&out, "out", "", "output WAV path (default: a temp file)")
	return cmd
}
