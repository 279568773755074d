// Package target describes the machines QIR modules are produced for.
package target

import (
	"fmt"
	"os/exec"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Profile fixes the triple, data layout and code generation options of an
// output module.
type Profile struct {
	Name       string
	Triple     string
	DataLayout string
	OptLevel   int
	RelocModel string
	CodeModel  string

	once  sync.Once
	tools Tools
}

// Tools are the external LLVM binaries found when a profile is initialized.
type Tools struct {
	// Assembler is the path of llvm-as, empty when it is not installed.
	Assembler string
}

const (
	Native   = "native"
	Hardware = "hardware"

	// Default is used when no profile is named.
	Default = Hardware
)

const hardwareTriple = "arm64-unknown-none"

// Both profiles share these code generation options.
const (
	defaultOptLevel   = 2
	defaultRelocModel = "pic"
	defaultCodeModel  = "default"
)

var layouts = map[string]string{
	"x86_64":  "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
	"aarch64": "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128",
	"arm64":   "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128",
}

var (
	profilesOnce sync.Once
	profiles     map[string]*Profile
)

func initProfiles() {
	profiles = map[string]*Profile{
		Native: {
			Name:       Native,
			Triple:     HostTriple(),
			DataLayout: layoutFor(HostTriple()),
			OptLevel:   defaultOptLevel,
			RelocModel: defaultRelocModel,
			CodeModel:  defaultCodeModel,
		},
		Hardware: {
			Name:       Hardware,
			Triple:     hardwareTriple,
			DataLayout: layoutFor(hardwareTriple),
			OptLevel:   defaultOptLevel,
			RelocModel: defaultRelocModel,
			CodeModel:  defaultCodeModel,
		},
	}
}

// Lookup returns the named profile. An empty name selects Default.
func Lookup(name string) (*Profile, error) {
	profilesOnce.Do(initProfiles)
	if name == "" {
		name = Default
	}
	p, ok := profiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (expected: %s)", name, strings.Join(Names(), "|"))
	}
	return p, nil
}

// Names lists the known profiles.
func Names() []string {
	profilesOnce.Do(initProfiles)
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Codegen lists the code generation options as key/value pairs, in a
// fixed order.
func (p *Profile) Codegen() [][2]string {
	return [][2]string{
		{"opt-level", "O" + strconv.Itoa(p.OptLevel)},
		{"reloc", p.RelocModel},
		{"code-model", p.CodeModel},
	}
}

// Init performs the process-wide setup of p once and returns the tools it
// found. Concurrent callers block until the first one finishes.
func (p *Profile) Init() Tools {
	p.once.Do(func() {
		if path, err := exec.LookPath("llvm-as"); err == nil {
			p.tools.Assembler = path
		}
	})
	return p.tools
}

// HostTriple approximates the LLVM triple of the running machine.
func HostTriple() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	switch runtime.GOOS {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	default:
		return arch + "-unknown-" + runtime.GOOS + "-gnu"
	}
}

func layoutFor(triple string) string {
	arch, _, _ := strings.Cut(triple, "-")
	layout := layouts[arch]
	if strings.Contains(triple, "apple") && layout != "" {
		layout = strings.Replace(layout, "m:e", "m:o", 1)
	}
	return layout
}
