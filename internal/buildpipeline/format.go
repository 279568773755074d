package buildpipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"hugrqir/internal/llir"
	"hugrqir/internal/target"
)

// Format selects the artifact encoding.
type Format string

const (
	// FormatAuto infers the encoding from the destination.
	FormatAuto    Format = ""
	FormatLLVMIR  Format = "llvmir"
	FormatBitcode Format = "bitcode"
	FormatBase64  Format = "base64"
)

// ErrNoAssembler means bitcode was requested but llvm-as is not installed.
var ErrNoAssembler = errors.New("llvm-as not found; install LLVM or use --format=llvmir")

// ParseFormat accepts the format names case-insensitively; "auto" and the
// empty string select FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", "auto":
		return FormatAuto, nil
	case FormatLLVMIR, "ll":
		return FormatLLVMIR, nil
	case FormatBitcode, "bc":
		return FormatBitcode, nil
	case FormatBase64, "b64":
		return FormatBase64, nil
	default:
		return FormatAuto, fmt.Errorf("unknown output format %q (expected: auto|llvmir|bitcode|base64)", s)
	}
}

// InferFormat picks an encoding from the file extension, falling back to
// text for interactive destinations and bitcode otherwise.
func InferFormat(path string, interactive bool) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ll", ".asm":
		return FormatLLVMIR
	case ".bc":
		return FormatBitcode
	case ".b64":
		return FormatBase64
	}
	if interactive {
		return FormatLLVMIR
	}
	return FormatBitcode
}

// Extension is the conventional file extension for f.
func (f Format) Extension() string {
	switch f {
	case FormatLLVMIR:
		return ".ll"
	case FormatBase64:
		return ".b64"
	default:
		return ".bc"
	}
}

// Encode renders m in the requested format. Bitcode is produced by the
// assembler found during target initialization.
func Encode(ctx context.Context, m *llir.Module, f Format, tools target.Tools) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("missing module")
	}
	text := []byte(m.String())
	switch f {
	case FormatLLVMIR:
		return text, nil
	case FormatBitcode:
		return assemble(ctx, tools.Assembler, text)
	case FormatBase64:
		bc, err := assemble(ctx, tools.Assembler, text)
		if err != nil {
			return nil, err
		}
		out := make([]byte, base64.StdEncoding.EncodedLen(len(bc)))
		base64.StdEncoding.Encode(out, bc)
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
}

func assemble(ctx context.Context, tool string, ir []byte) ([]byte, error) {
	if tool == "" {
		return nil, ErrNoAssembler
	}
	// #nosec G204 -- tool is the llvm-as path resolved from PATH
	cmd := exec.CommandContext(ctx, tool, "-o", "-", "-")
	cmd.Stdin = bytes.NewReader(ir)
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", filepath.Base(tool), err)
		}
		return nil, fmt.Errorf("%s: %s", filepath.Base(tool), msg)
	}
	return stdout.Bytes(), nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
