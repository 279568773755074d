package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hugrqir/internal/buildpipeline"
	"hugrqir/internal/diag"
	"hugrqir/internal/target"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [inputs...]",
	Short: "Compile program graphs to QIR",
	Long: `Compile one or more program graphs (.json or .mp) into QIR modules.
Without inputs, [build].inputs from hugrqir.toml is used. A single input
without -o or --out-dir is written to stdout.`,
	RunE: buildExecution,
}

func init() {
	f := buildCmd.Flags()
	f.StringP("output", "o", "", "output file for a single input (- for stdout)")
	f.String("out-dir", "", "directory for the artifacts")
	f.String("format", "auto", "output format (auto|llvmir|bitcode|base64)")
	f.String("target", target.Default, "target profile (hardware|native)")
	f.Bool("validate", true, "validate the graph after every pass")
	f.Bool("rewrite-entry", true, "emit main under its plain name")
	f.Int("debug", 0, "debug level (1 traces passes, 2 also dumps the module)")
	f.String("save-graph", "", "write the pruned graph to this file (.json or .mp)")
	f.IntP("jobs", "j", runtime.NumCPU(), "maximum parallel compilations")
	f.String("ui", "auto", "progress UI (auto|on|off)")
}

type buildSettings struct {
	inputs       []string
	output       string
	outDir       string
	format       string
	target       string
	saveGraph    string
	ui           string
	validate     bool
	rewriteEntry bool
	debug        int
	jobs         int
}

func readBuildSettings(cmd *cobra.Command, args []string) (buildSettings, error) {
	var s buildSettings
	f := cmd.Flags()
	var err error
	for name, dst := range map[string]*string{
		"output": &s.output, "out-dir": &s.outDir, "format": &s.format,
		"target": &s.target, "save-graph": &s.saveGraph, "ui": &s.ui,
	} {
		if *dst, err = f.GetString(name); err != nil {
			return s, err
		}
	}
	if s.validate, err = f.GetBool("validate"); err != nil {
		return s, err
	}
	if s.rewriteEntry, err = f.GetBool("rewrite-entry"); err != nil {
		return s, err
	}
	if s.debug, err = f.GetInt("debug"); err != nil {
		return s, err
	}
	if s.jobs, err = f.GetInt("jobs"); err != nil {
		return s, err
	}
	s.inputs = args

	manifest, found, err := loadProjectManifest(".")
	if err != nil {
		return s, err
	}
	if found {
		applyManifest(&s, manifest, f.Changed)
	}

	if len(s.inputs) == 0 {
		return s, fmt.Errorf("no inputs given and no [build].inputs in %s", manifestName)
	}
	if len(s.inputs) > 1 && s.output != "" {
		return s, errors.New("-o needs a single input; use --out-dir for several")
	}
	if len(s.inputs) > 1 && s.saveGraph != "" {
		return s, errors.New("--save-graph needs a single input")
	}
	return s, nil
}

// applyManifest fills every setting the command line left alone from the
// manifest. Paths in the manifest are relative to its directory.
func applyManifest(s *buildSettings, m *projectManifest, changed func(string) bool) {
	cfg := m.Config.Build
	use := func(flag, key string) bool { return !changed(flag) && m.defined(key) }
	if len(s.inputs) == 0 {
		for _, in := range cfg.Inputs {
			s.inputs = append(s.inputs, m.resolve(in))
		}
	}
	if use("out-dir", "out_dir") {
		s.outDir = m.resolve(cfg.OutDir)
	}
	if use("format", "format") {
		s.format = cfg.Format
	}
	if use("target", "target") {
		s.target = cfg.Target
	}
	if use("validate", "validate") {
		s.validate = cfg.Validate
	}
	if use("rewrite-entry", "rewrite_entry") {
		s.rewriteEntry = cfg.RewriteEntry
	}
	if use("debug", "debug") {
		s.debug = cfg.Debug
	}
	if use("save-graph", "save_graph") {
		s.saveGraph = m.resolve(cfg.SaveGraph)
	}
	if use("jobs", "jobs") {
		s.jobs = cfg.Jobs
	}
}

// buildRequests turns settings into one request per input.
func buildRequests(s buildSettings, format buildpipeline.Format, files []string, stdout io.Writer) ([]*buildpipeline.BuildRequest, bool) {
	opts := buildpipeline.Options{
		Debug:        s.debug,
		SaveGraph:    s.saveGraph,
		Validate:     s.validate,
		RewriteEntry: s.rewriteEntry,
		Target:       s.target,
	}
	toStdout := false
	reqs := make([]*buildpipeline.BuildRequest, len(s.inputs))
	for i, in := range s.inputs {
		var out string
		switch {
		case s.output != "":
			out = s.output
		case len(s.inputs) == 1 && s.outDir == "":
			out = "-"
		default:
			ext := format
			if ext == buildpipeline.FormatAuto {
				ext = buildpipeline.FormatBitcode
			}
			out = outputPath(in, s.outDir, ext)
		}
		if out == "-" {
			toStdout = true
		}
		reqs[i] = &buildpipeline.BuildRequest{
			CompileRequest: buildpipeline.CompileRequest{Path: in, Options: opts, File: files[i]},
			OutputPath:     out,
			Format:         format,
			Stdout:         stdout,
		}
	}
	return reqs, toStdout
}

func buildExecution(cmd *cobra.Command, args []string) error {
	s, err := readBuildSettings(cmd, args)
	if err != nil {
		return err
	}
	format, err := buildpipeline.ParseFormat(s.format)
	if err != nil {
		return err
	}
	mode, err := readUIMode(s.ui)
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	cleanup, err := setupTracing(cmd, buildpipeline.Options{Debug: s.debug}.TraceLevel())
	if err != nil {
		return err
	}
	failed := true
	defer func() { cleanup(failed) }()
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	files := buildpipeline.DisplayNames(s.inputs, cwd)
	reqs, toStdout := buildRequests(s, format, files, cmd.OutOrStdout())

	var results []buildpipeline.BuildResult
	if shouldUseTUI(mode, toStdout) {
		results, err = runBuildAllWithUI(ctx, "hugrqir build", files, reqs, s.jobs)
	} else {
		results, err = buildpipeline.BuildAll(ctx, reqs, s.jobs, nil)
	}

	errOut := cmd.ErrOrStderr()
	for i, res := range results {
		printDiagnostics(errOut, files[i], res.Diagnostics)
		if res.Module == nil {
			continue
		}
		if !quiet && res.OutputPath != "" {
			fmt.Fprintf(errOut, "wrote %s (%s, %d qubits, %d results)\n", res.OutputPath, res.Format, res.Counters.Qubits, res.Counters.Results)
		}
		if showTimings {
			if perr := printStageTimings(errOut, files[i], res.Timings); perr != nil {
				return perr
			}
		}
	}
	if err != nil {
		return err
	}
	failed = false
	return nil
}

func printDiagnostics(out io.Writer, file string, bag *diag.Bag) {
	if bag == nil || bag.Len() == 0 {
		return
	}
	bag.Dedup()
	bag.Sort()
	for _, d := range bag.Items() {
		sev := strings.ToLower(d.Severity.String())
		switch d.Severity {
		case diag.SevError:
			sev = color.RedString(sev)
		case diag.SevWarning:
			sev = color.YellowString(sev)
		}
		fmt.Fprintf(out, "%s: %s[%s]: node %d: %s\n", file, sev, d.Code.ID(), d.Node, d.Message)
		for _, n := range d.Notes {
			fmt.Fprintf(out, "  note: node %d: %s\n", n.Node, n.Msg)
		}
	}
}
