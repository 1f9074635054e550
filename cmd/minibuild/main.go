// Command minibuild drives a C/C++/ASM project's build graph: compile,
// archive/link every module in dependency order for one build model, with
// an optional --public promotion step and a `genconfig` helper subcommand
// (§6, §7; ported from script_main.py's script_main/create_build_workflow).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bitswalk/minibuild/config"
	"github.com/bitswalk/minibuild/genbconf"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/logs"
	"github.com/bitswalk/minibuild/toolchain"
	"github.com/bitswalk/minibuild/workflow"
)

var (
	flagModel     string
	flagConfig    string
	flagForce     bool
	flagVerbose   bool
	flagPublic    bool
	flagDirectory string

	flagGenProto  string
	flagGenOutput string

	logger *logs.Logger
)

var rootCmd = &cobra.Command{
	Use:           "minibuild",
	Short:         "Build C/C++/ASM projects with explicit module descriptions",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBuild,
}

var genconfigCmd = &cobra.Command{
	Use:   "genconfig",
	Short: "Generate minibuild.ini from a #pragma-annotated prototype file",
	RunE:  runGenConfig,
}

func init() {
	rootCmd.Flags().StringVar(&flagModel, "model", "", "build model to use (required)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", fmt.Sprintf("build configuration, one of %v (required)", grammar.AllConfigs))
	rootCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild every module regardless of freshness")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "emit every subprocess command line")
	rootCmd.Flags().BoolVar(&flagPublic, "public", false, "promote public artifacts into output/public")
	rootCmd.Flags().StringVar(&flagDirectory, "directory", "", "module directory to build (default: current directory)")
	_ = rootCmd.MarkFlagRequired("model")
	_ = rootCmd.MarkFlagRequired("config")

	genconfigCmd.Flags().StringVar(&flagDirectory, "directory", "", "project directory (default: current directory)")
	genconfigCmd.Flags().StringVar(&flagGenProto, "proto", "", "config prototype file (default: <directory>/minibuild.ini.proto)")
	genconfigCmd.Flags().StringVar(&flagGenOutput, "output", "", "generated config file (default: <directory>/minibuild.ini)")
	genconfigCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "log each pragma as it's processed")

	rootCmd.AddCommand(genconfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "BUILDSYS: ERROR:", err)
		os.Exit(errs.ExitCode(err))
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	buildDirectory := flagDirectory
	if buildDirectory == "" {
		dir, err := currentDir()
		if err != nil {
			return err
		}
		buildDirectory = dir
	} else {
		abs, err := filepath.Abs(buildDirectory)
		if err != nil {
			return fmt.Errorf("resolving --directory: %w", err)
		}
		buildDirectory = abs
	}

	projectRoot, err := resolveProjectRoot(buildDirectory)
	if err != nil {
		return err
	}

	logger = logs.New(logs.Config{Level: "info", Prefix: "minibuild"})
	logger.SetVerbose(flagVerbose)

	cfg, err := config.Load(filepath.Join(projectRoot, grammar.ProjectConfigFile), projectRoot)
	if err != nil {
		return err
	}

	registry := toolchain.NewRegistry()
	workflow.RegisterToolsets(registry, projectRoot)

	wf, err := workflow.NewWorkflow(projectRoot, cfg, registry, logger)
	if err != nil {
		return err
	}

	result, err := wf.Run(context.Background(), buildDirectory, workflow.Options{
		ModelName: flagModel,
		Config:    flagConfig,
		Force:     flagForce,
		Public:    flagPublic,
	})
	if err != nil {
		return err
	}

	total := 0
	for _, arts := range result.Artifacts {
		total += len(arts)
	}
	logger.Info("build finished", "modules", len(result.Artifacts), "artifacts", total)
	if result.NativeModelRemap != "" {
		logger.Info("native model", "model", result.NativeModelRemap)
	}
	return nil
}

func runGenConfig(cmd *cobra.Command, args []string) error {
	dir := flagDirectory
	if dir == "" {
		d, err := currentDir()
		if err != nil {
			return err
		}
		dir = d
	} else {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving --directory: %w", err)
		}
		dir = abs
	}

	proto := flagGenProto
	if proto == "" {
		proto = filepath.Join(dir, grammar.ProjectConfigFile+".proto")
	}
	output := flagGenOutput
	if output == "" {
		output = filepath.Join(dir, grammar.ProjectConfigFile)
	}

	sysPlatform, sysArch, err := hostPlatformArch()
	if err != nil {
		return err
	}

	logger = logs.New(logs.Config{Level: "info", Prefix: "minibuild"})
	logger.SetVerbose(flagVerbose)

	registry := toolchain.NewRegistry()
	workflow.RegisterToolsets(registry, dir)

	return genbconf.Generate(proto, output, sysPlatform, sysArch, registry, flagVerbose, logger)
}
