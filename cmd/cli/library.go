package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/utils"
	"github.com/spf13/cobra"
)

type addResult struct {
	Added    []models.Track            `json:"added" yaml:"added"`
	Failures []models.CandidateFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func newAddCmd(a *app) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "add <file|dir>...",
		Short: "Add audio files to the library",
		Long: `Add one or more audio files to the library. Directories are scanned
recursively for .wav and .mp3 files. Files already in the library are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			paths, err := utils.ExpandAudioPaths(args, audio.Extensions...)
			if err != nil {
				return err
			}

			var res addResult
			if title != "" {
				if len(paths) != 1 {
					return fmt.Errorf("--title needs exactly one file, got %d", len(paths))
				}
				track, created, err := svc.AddTrack(cmd.Context(), paths[0], title)
				if err != nil {
					return err
				}
				if created {
					res.Added = append(res.Added, *track)
				}
			} else {
				res.Added, res.Failures, err = svc.AddTracks(cmd.Context(), paths)
				if err != nil {
					return err
				}
			}

			return a.render(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Added %d of %d file(s)\n", len(res.Added), len(paths))
				writeTracks(w, res.Added)
				writeFailures(w, res.Failures)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "display title (single file only; defaults to the tag title or file name)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			tracks, err := svc.ListTracks()
			if err != nil {
				return err
			}
			tracks = filterTracks(tracks, filter)
			return a.render(cmd.OutOrStdout(), tracks, func(w io.Writer) {
				if len(tracks) == 0 {
					fmt.Fprintln(w, "No tracks in library")
					return
				}
				writeTracks(w, tracks)
				fmt.Fprintf(w, "\n%d track(s)\n", len(tracks))
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "only show tracks whose title contains this text")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Remove tracks from the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := svc.DeleteTrack(id); err != nil {
					return fmt.Errorf("deleting %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func filterTracks(tracks []models.Track, query string) []models.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tracks
	}
	var out []models.Track
	for _, t := range tracks {
		if strings.Contains(strings.ToLower(t.Title), q) {
			out = append(out, t)
		}
	}
	return out
}

func writeTracks(w io.Writer, tracks []models.Track) {
	if len(tracks) == 0 {
		return
	}
	fmt.Fprintln(w, "ID\tTITLE\tDURATION\tRATE\tPATH")
	for _, t := range tracks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			t.ID, t.Title, models.FormatDuration(t.DurationSeconds), t.SampleRate, t.Path)
	}
}

func writeFailures(w io.Writer, failures []models.CandidateFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d failure(s):\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(w, "  %s\t%s\n", f.Candidate, f.Reason)
	}
}
