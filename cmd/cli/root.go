package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/himanishpuri/TimbreMatch/internal/config"
	"github.com/himanishpuri/TimbreMatch/pkg/logger"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// app carries state shared by every subcommand.
type app struct {
	configFile string
	cfg        *config.Config
	log        *logger.Logger
	svc        timbre.Service
}

// persistent flag -> config key
var flagKeys = map[string]string{
	"db":        "database.path",
	"log-level": "log_level",
	"workers":   "similarity.workers",
	"output":    "output_format",
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timbrematch",
		Short: "Timbre-based audio similarity and equalizer toolkit",
		Long: `timbrematch keeps a library of local audio files and compares them by timbre.

Tracks are analysed with MFCCs, their deltas and chroma features. Similarity
combines a DTW alignment of block MFCC features with the cosine of the mean
chroma vectors. A five band peaking equalizer renders adjusted copies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configFile, "config", "",
		"config file (default ./timbrematch.yaml or $HOME/.config/timbrematch/timbrematch.yaml)")
	f.String("db", "", "path to the SQLite library")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.Int("workers", 0, "parallel workers used while ranking")
	f.StringP("output", "o", "", "output format (table, json, yaml)")

	root.AddCommand(
		newAddCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newCompareCmd(a),
		newRankCmd(a),
		newFeaturesCmd(a),
		newEqualizeCmd(a),
		newPlaylistCmd(a),
		newCacheCmd(a),
	)
	return root
}

// initialize loads configuration once flags are parsed. Flags given on the
// command line win over environment and file values.
func (a *app) initialize(cmd *cobra.Command) error {
	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return err
	}
	cfg, err := config.Unmarshal(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := logger.ParseLevel(cfg.LogLevel)
	a.log = logger.GetLogger()
	a.log.SetLevel(level)
	a.log.Debugf("Configuration loaded (db=%s, workers=%d)", cfg.Database.Path, cfg.Similarity.Workers)
	return nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// service opens the library on first use.
func (a *app) service() (timbre.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	opts := append(a.cfg.ServiceOptions(), timbre.WithLogger(a.log))
	svc, err := timbre.NewService(opts...)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *app) close() {
	if a.svc != nil {
		if err := a.svc.Close(); err != nil && a.log != nil {
			a.log.Warnf("Failed to close library: %v", err)
		}
		a.svc = nil
	}
}

// render writes v as JSON or YAML, or calls table for the default format.
func (a *app) render(w io.Writer, v any, table func(w io.Writer)) error {
	switch a.cfg.OutputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}
