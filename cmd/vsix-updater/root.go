package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/mrhapile/vsix-updater/internal/config"
	"github.com/mrhapile/vsix-updater/internal/logging"
	"github.com/mrhapile/vsix-updater/pkg/types"
	"github.com/mrhapile/vsix-updater/pkg/updater"
)

type rootOptions struct {
	configPath      string
	outputPath      string
	include         string
	sourceDir       string
	nextVersion     string
	continueOnError bool
	logFormat       string
	outputJSON      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vsix-updater [paths...]",
		Short: "Make extension packages installable by component based installers",
		Long: "Patches extension.vsixmanifest, injects extra files and writes catalog.json and\n" +
			"manifest.json into every package. Without paths, every *.vsix under the output\n" +
			"path is processed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", config.DefaultFile, "Path to configuration file")
	f.StringVar(&opts.outputPath, "output-path", "", "Directory searched recursively for packages")
	f.StringVar(&opts.include, "include", "", "Semicolon separated file patterns to inject")
	f.StringVar(&opts.sourceDir, "source-dir", "", "Directory include patterns are resolved against")
	f.StringVar(&opts.nextVersion, "next-version", "", "Exclusive upper bound for host version ranges")
	f.BoolVar(&opts.continueOnError, "continue-on-error", false, "Keep processing after a package fails")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	f.BoolVar(&opts.outputJSON, "json", false, "Print results as JSON")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vsix-updater %s\n", buildInfo())
		},
	}
}

// resolveConfig loads the configuration file and applies flags the user set.
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	if f.Changed("output-path") {
		cfg.OutputPath = opts.outputPath
	}
	if f.Changed("include") {
		cfg.Include = opts.include
	}
	if f.Changed("source-dir") {
		cfg.SourceDir = opts.sourceDir
	}
	if f.Changed("next-version") {
		cfg.NextVersion = opts.nextVersion
	}
	if f.Changed("continue-on-error") {
		cfg.ContinueOnError = opts.continueOnError
	}
	if f.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runUpdate(cmd *cobra.Command, opts *rootOptions, args []string) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}
	log.SetOutput(cmd.ErrOrStderr())
	logging.SetFormat(cfg.LogFormat)

	paths := args
	if len(paths) == 0 {
		paths, err = updater.Discover(cfg.OutputPath)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			logging.Warn("cli", "no packages found", "output_path", cfg.OutputPath)
		}
	}

	results, runErr := updater.UpdateAll(paths,
		updater.WithInclude(cfg.Include),
		updater.WithSourceDir(cfg.SourceDir),
		updater.WithNextVersion(cfg.NextVersion),
		updater.WithContinueOnError(cfg.ContinueOnError),
		updater.WithLogger(logging.Sink{Component: "updater"}),
	)
	if results == nil {
		results = []*types.ArchiveResult{}
	}

	if opts.outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s, %d files, %d bytes\n",
				r.ArchivePath, r.Manifest.ID, r.Manifest.Version, r.FileCount, r.InstallSize)
		}
	}

	if runErr != nil {
		return fmt.Errorf("%d of %d packages updated: %w", len(results), len(paths), runErr)
	}
	logging.Info("cli", "done", "packages", len(results))
	return nil
}
