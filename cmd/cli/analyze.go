package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <track> <track>",
		Short: "Score the similarity of two tracks",
		Long: `Compare two tracks given as library IDs or file paths and print every
score component. The combined score is 0.6 * DTW similarity + 0.4 * chroma
similarity with the default weights.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			s, err := svc.Compare(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), s, func(w io.Writer) {
				fmt.Fprintf(w, "DTW distance\t%.4f\n", s.DTWDistance)
				fmt.Fprintf(w, "DTW similarity\t%.4f\n", s.DTWSimilarity)
				fmt.Fprintf(w, "Chroma similarity\t%.4f\n", s.ChromaSimilarity)
				fmt.Fprintf(w, "MFCC cosine\t%.4f\n", s.MFCCCosine)
				fmt.Fprintf(w, "Combined\t%.4f (%.1f%%)\n", s.Combined, s.Combined*100)
			})
		},
	}
}

type rankOutput struct {
	Reference string                    `json:"reference" yaml:"reference"`
	Results   []models.RankedScore      `json:"results" yaml:"results"`
	Failures  []models.CandidateFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func newRankCmd(a *app) *cobra.Command {
	var (
		filter     string
		top        int
		noProgress bool
	)
	cmd := &cobra.Command{
		Use:   "rank <reference> [candidate...]",
		Short: "Rank tracks by similarity to a reference",
		Long: `Rank candidates by combined similarity to the reference. Without
candidates the whole library is ranked. The reference itself never appears in
the results; candidates that cannot be decoded are listed as failures.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			var progress *rankProgress
			var onProgress similarity.ProgressFunc
			if !noProgress {
				progress = newRankProgress(cmd.ErrOrStderr())
				onProgress = progress.update
			}

			var res *models.RankResult
			if len(args) == 1 {
				res, err = svc.RankLibrary(cmd.Context(), args[0], onProgress)
			} else {
				res, err = svc.Rank(cmd.Context(), args[0], args[1:], onProgress)
			}
			if progress != nil {
				progress.finish()
			}
			if err != nil {
				return err
			}

			rows := models.FilterByTitle(res.Sorted(), filter)
			if top > 0 && len(rows) > top {
				rows = rows[:top]
			}
			out := rankOutput{Reference: res.Reference, Results: rows, Failures: res.Failures}
			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "Reference: %s\n\n", res.Reference)
				if len(rows) == 0 {
					fmt.Fprintln(w, "No matching candidates")
				} else {
					fmt.Fprintln(w, "#\tSCORE\tTITLE\tPATH")
					for i, r := range rows {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, r.Percent(), r.Title, r.Candidate)
					}
				}
				writeFailures(w, res.Failures)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "only show results whose title contains this text")
	cmd.Flags().IntVar(&top, "top", 0, "show at most this many results (0 for all)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

// rankProgress draws a bar once the first candidate reports the total.
type rankProgress struct {
	mu  sync.Mutex
	p   *mpb.Progress
	bar *mpb.Bar
}

func newRankProgress(w io.Writer) *rankProgress {
	return &rankProgress{p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(48))}
}

func (rp *rankProgress) update(done, total int, candidate string, err error) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.bar == nil {
		rp.bar = rp.p.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name("Ranking: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.Name(" "),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
	}
	rp.bar.SetCurrent(int64(done))
}

// finish stops an unfinished bar and waits for rendering to end.
func (rp *rankProgress) finish() {
	rp.mu.Lock()
	if rp.bar != nil && !rp.bar.Completed() {
		rp.bar.Abort(false)
	}
	rp.mu.Unlock()
	rp.p.Wait()
}

func newFeaturesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "features <track>",
		Short: "Show the extracted features of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			f, err := svc.Features(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), f, func(w io.Writer) {
				fmt.Fprintf(w, "Path\t%s\n", f.Path)
				fmt.Fprintf(w, "Sample rate\t%d Hz\n", f.SampleRate)
				fmt.Fprintf(w, "Duration\t%s\n", models.FormatDuration(f.Duration))
				fmt.Fprintf(w, "Block features\t%d x %d\n", f.BlockFrames, f.BlockWidth)
				fmt.Fprintf(w, "Mean MFCC\t%s\n", formatVector(f.MFCC))
				fmt.Fprintf(w, "Mean chroma\t%s\n", formatVector(f.Chroma))
			})
		},
	}
}

func formatVector(v []float64) string {
	s := "["
	for i, x := range v {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.3f", x)
	}
	return s + "]"
}
