package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// BuildRequest configures output generation for a compilation.
type BuildRequest struct {
	CompileRequest
	// OutputPath is the artifact destination; empty or "-" selects Stdout.
	OutputPath string
	Format     Format
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
}

// BuildResult captures build artefacts and timings.
type BuildResult struct {
	CompileResult
	OutputPath string
	Format     Format
	Size       int
}

// Build compiles one input and writes the artifact.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	reqCopy := *req
	req = &reqCopy
	if req.Stdout == nil {
		req.Stdout = os.Stdout
	}
	file := req.File
	if file == "" {
		file = req.Path
	}

	compileRes, err := Compile(ctx, &req.CompileRequest)
	result.CompileResult = compileRes
	if err != nil {
		return result, err
	}

	toStdout := req.OutputPath == "" || req.OutputPath == "-"
	format := req.Format
	if format == FormatAuto {
		path := req.OutputPath
		if toStdout {
			path = ""
		}
		format = InferFormat(path, toStdout && isTerminal(req.Stdout))
	}
	result.Format = format

	writeStart := time.Now()
	emitStage(req.Progress, file, StageWrite, StatusWorking, nil, 0)
	fail := func(err error) (BuildResult, error) {
		err = fmt.Errorf("%s: %w", StageWrite, err)
		emitStage(req.Progress, file, StageWrite, StatusError, err, time.Since(writeStart))
		return result, err
	}

	data, err := Encode(ctx, compileRes.Module, format, compileRes.Target.Init())
	if err != nil {
		return fail(err)
	}
	if toStdout {
		if _, err := req.Stdout.Write(data); err != nil {
			return fail(err)
		}
	} else {
		if dir := filepath.Dir(req.OutputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fail(fmt.Errorf("failed to create output dir: %w", err))
			}
		}
		if err := os.WriteFile(req.OutputPath, data, 0o600); err != nil {
			return fail(fmt.Errorf("failed to write %q: %w", req.OutputPath, err))
		}
		result.OutputPath = req.OutputPath
	}
	result.Size = len(data)
	elapsed := time.Since(writeStart)
	result.Timings.Set(StageWrite, elapsed)
	emitStage(req.Progress, file, StageWrite, StatusDone, nil, elapsed)
	return result, nil
}

// BuildAll builds independent inputs concurrently, at most jobs at a time
// (unlimited when jobs <= 0). Every input is attempted; the errors of the
// failing ones are joined. Results keep the order of reqs.
func BuildAll(ctx context.Context, reqs []*BuildRequest, jobs int, progress ProgressSink) ([]BuildResult, error) {
	results := make([]BuildResult, len(reqs))
	errs := make([]error, len(reqs))

	files := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req != nil {
			files = append(files, label(req))
		}
	}
	emitQueued(progress, files)

	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, req := range reqs {
		if req == nil {
			errs[i] = fmt.Errorf("missing build request")
			continue
		}
		g.Go(func() error {
			r := *req
			if r.Progress == nil {
				r.Progress = progress
			}
			if r.File == "" {
				r.File = label(req)
			}
			res, err := Build(ctx, &r)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", r.File, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

func label(req *BuildRequest) string {
	if req.File != "" {
		return req.File
	}
	return req.Path
}
