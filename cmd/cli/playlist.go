package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newPlaylistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Save or load the library as a JSON playlist",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save <file>",
		Short: "Write every library track to a playlist file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			n, err := svc.ExportPlaylist(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d track(s) to %s\n", n, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "load <file>",
		Short: "Add the tracks of a playlist file to the library",
		Long: `Load a playlist file, re-decode every entry and add the ones that decode to
the library with their saved titles. Entries that fail are reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			added, failures, err := svc.ImportPlaylist(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := addResult{Added: added, Failures: failures}
			return a.render(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Loaded %d track(s) from %s\n", len(added), args[0])
				writeTracks(w, added)
				writeFailures(w, failures)
			})
		},
	})
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached feature vectors",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [track]",
		Short: "Forget cached features for one track, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := svc.InvalidateFeatures(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached features for %s\n", args[0])
				return nil
			}
			if err := svc.ClearCache(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared feature cache")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show library and cache counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			st, err := svc.Stats()
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), st, func(w io.Writer) {
				fmt.Fprintf(w, "Tracks\t%d\n", st.Tracks)
				fmt.Fprintf(w, "Cached features\t%d\n", st.CachedFeatures)
			})
		},
	})
	return cmd
}
