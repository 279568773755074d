package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hugrqir/internal/buildpipeline"
	"hugrqir/internal/target"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] inputs...",
	Short: "Validate program graphs and their lowering without writing output",
	Args:  cobra.MinimumNArgs(1),
	RunE:  checkExecution,
}

func init() {
	checkCmd.Flags().String("target", target.Default, "target profile (hardware|native)")
	checkCmd.Flags().Int("debug", 0, "debug level (1 traces passes, 2 also dumps the module)")
}

func checkExecution(cmd *cobra.Command, args []string) error {
	targetName, err := cmd.Flags().GetString("target")
	if err != nil {
		return err
	}
	debug, err := cmd.Flags().GetInt("debug")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	opts := buildpipeline.Options{Debug: debug, Target: targetName, RewriteEntry: true}

	cleanup, err := setupTracing(cmd, opts.TraceLevel())
	if err != nil {
		return err
	}
	failed := true
	defer func() { cleanup(failed) }()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	files := buildpipeline.DisplayNames(args, cwd)
	out := cmd.ErrOrStderr()
	var errs []error
	for i, path := range args {
		res, cerr := buildpipeline.Check(cmd.Context(), &buildpipeline.CompileRequest{
			Path:    path,
			Options: opts,
			File:    files[i],
		})
		printDiagnostics(out, files[i], res.Diagnostics)
		if cerr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", files[i], cerr))
			continue
		}
		if !quiet {
			fmt.Fprintf(out, "%s: %s (entry %s)\n", files[i], color.GreenString("ok"), res.Entry)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	failed = false
	return nil
}
