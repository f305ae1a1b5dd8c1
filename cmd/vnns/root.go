// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sigil-dev/vnns/internal/config"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
)

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"samples-path": "input.samples_path",
	"query-path":   "input.query_path",
	"batch-size":   "tournament.batch_size",
	"concurrency":  "tournament.concurrency",
	"metric":       "metric",
	"out-dir":      "artifacts.dir",
	"sink":         "artifacts.sinks",
}

// NewRootCmd creates the root vnns command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "vnns (--execute | --prove) [flags]",
		Short: "Verifiable nearest-neighbour search",
		Long: "vnns finds the sample closest to a query and proves the answer with a verifiable\n" +
			"execution engine. Large sample sets are reduced in rounds of chunk proofs.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd == cmd.Root() {
				// The run mode is settled before any file is touched.
				if _, err := runMode(cmd); err != nil {
					return err
				}
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(cmd.ErrOrStderr(), verbose)
			return initViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := runMode(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg, mode)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return vnnserr.Wrap(err, vnnserr.CodeCLIUsageInvalid, "invalid flags")
	})

	// Global flags. These map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("metric", string(types.MetricEuclidean), "distance metric: euclidean or cosine")

	root.Flags().Bool("execute", false, "run the search once without proving and check the result")
	root.Flags().Bool("prove", false, "prove the search in rounds and write proof artifacts")
	root.Flags().Int("batch-size", 4, "samples per proving call")
	root.Flags().Int("concurrency", 0, "chunks proved at once per round (0 = all)")
	root.Flags().StringP("samples-path", "s", "samples.json", "path to the samples JSON file")
	root.Flags().StringP("query-path", "q", "query.json", "path to the query JSON file")
	root.Flags().String("out-dir", ".", "directory for proof artifacts")
	root.Flags().StringSlice("sink", []string{"file"}, "artifact sinks: file, sqlite")

	root.AddCommand(
		newVerifyCmd(v),
		newInspectCmd(v),
		newDoctorCmd(v),
		newInitCmd(),
		newVersionCmd(),
	)

	return root
}

func runMode(cmd *cobra.Command) (types.RunMode, error) {
	execute, _ := cmd.Flags().GetBool("execute")
	prove, _ := cmd.Flags().GetBool("prove")
	return types.ResolveRunMode(execute, prove)
}

// initViper sets up v with defaults, env bindings, flag bindings, and
// optional config file so the standard precedence (flag > env > file >
// defaults) is handled uniformly.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return vnnserr.Errorf(vnnserr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so a ./vnns binary is never mistaken
		// for a config file.
		v.SetConfigName("vnns")
		for _, p := range config.SearchPaths() {
			v.AddConfigPath(p)
		}
		// No config file is fine. Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return vnnserr.Errorf(vnnserr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}
	if path := v.ConfigFileUsed(); path != "" {
		slog.Debug("using config file", "path", path)
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = vnnserr.Errorf(vnnserr.CodeCLISetupFailure, "binding %s flag: %w", f.Name, err)
		}
	})
	return bindErr
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
