package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hugrqir/internal/target"
	"hugrqir/internal/version"
)

type versionInfo struct {
	Version    string
	GitCommit  string
	GitMessage string
	BuildDate  string
}

type versionOptions struct {
	format      string
	showHash    bool
	showMessage bool
	showDate    bool
}

type versionPayload struct {
	Tool       string          `json:"tool"`
	Version    string          `json:"version"`
	QIR        string          `json:"qir_version"`
	Targets    []targetPayload `json:"targets"`
	Tagline    string          `json:"tagline"`
	GitCommit  string          `json:"git_commit,omitempty"`
	GitMessage string          `json:"git_message,omitempty"`
	BuildDate  string          `json:"build_date,omitempty"`
}

type targetPayload struct {
	Name       string `json:"name"`
	Default    bool   `json:"default,omitempty"`
	Triple     string `json:"triple"`
	OptLevel   int    `json:"opt_level"`
	RelocModel string `json:"reloc_model"`
	CodeModel  string `json:"code_model"`
}

func collectTargets() []targetPayload {
	var out []targetPayload
	for _, name := range target.Names() {
		p, err := target.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, targetPayload{
			Name:       p.Name,
			Default:    p.Name == target.Default,
			Triple:     p.Triple,
			OptLevel:   p.OptLevel,
			RelocModel: p.RelocModel,
			CodeModel:  p.CodeModel,
		})
	}
	return out
}

const versionTagline = "graphs in, qubits out"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show hugrqir build metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		format, _ := f.GetString("format")
		full, _ := f.GetBool("full")
		hash, _ := f.GetBool("hash")
		message, _ := f.GetBool("message")
		date, _ := f.GetBool("date")
		opts := versionOptions{
			format:      strings.ToLower(format),
			showHash:    hash || full,
			showMessage: message || full,
			showDate:    date || full,
		}
		switch opts.format {
		case "pretty", "json":
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		}

		info := collectVersionInfo()
		if opts.format == "json" {
			return renderVersionJSON(cmd.OutOrStdout(), info, opts)
		}
		renderVersionPretty(cmd.OutOrStdout(), info, opts)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("message", false, "include git commit message")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "show all recorded build metadata")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func collectVersionInfo() versionInfo {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	return versionInfo{
		Version:    v,
		GitCommit:  strings.TrimSpace(version.GitCommit),
		GitMessage: strings.TrimSpace(version.GitMessage),
		BuildDate:  strings.TrimSpace(version.BuildDate),
	}
}

func renderVersionPretty(out io.Writer, info versionInfo, opts versionOptions) {
	v := info.Version
	if v == strings.TrimSpace(version.Version) {
		v = version.Colored()
	}
	fmt.Fprintf(out, "hugrqir %s (QIR %s): %s\n", v, version.QIRVersion, versionTagline)
	for _, t := range collectTargets() {
		mark := ""
		if t.Default {
			mark = " (default)"
		}
		fmt.Fprintf(out, "target %s%s: %s O%d %s/%s\n", t.Name, mark, t.Triple, t.OptLevel, t.RelocModel, t.CodeModel)
	}
	if opts.showHash {
		fmt.Fprintf(out, "commit:  %s\n", valueOrUnknown(info.GitCommit))
	}
	if opts.showMessage {
		fmt.Fprintf(out, "message: %s\n", valueOrUnknown(info.GitMessage))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:   %s\n", valueOrUnknown(info.BuildDate))
	}
}

func renderVersionJSON(out io.Writer, info versionInfo, opts versionOptions) error {
	payload := versionPayload{
		Tool:    "hugrqir",
		Version: info.Version,
		QIR:     version.QIRVersion,
		Targets: collectTargets(),
		Tagline: versionTagline,
	}
	if opts.showHash {
		payload.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if opts.showMessage {
		payload.GitMessage = valueOrUnknown(info.GitMessage)
	}
	if opts.showDate {
		payload.BuildDate = valueOrUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
