package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"hugrqir/internal/buildpipeline"
)

func TestApplyEvents(t *testing.T) {
	m := newProgressModel("build", []string{"a.json", "b.json"}, nil)
	events := []buildpipeline.Event{
		{File: "a.json", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusWorking},
		{File: "b.json", Stage: buildpipeline.StageInline, Status: buildpipeline.StatusError, Err: errors.New("cyclic call graph")},
		{File: "a.json", Stage: buildpipeline.StageWrite, Status: buildpipeline.StatusDone, Elapsed: 3 * time.Millisecond},
		{File: "unknown.json", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusWorking},
	}
	for _, ev := range events {
		m.applyEvent(ev)
	}
	if m.items[0].label != labelDone || m.items[1].label != labelError {
		t.Fatalf("items = %+v", m.items)
	}
	if got := m.fraction(); got != 1 {
		t.Fatalf("fraction = %v", got)
	}
	view := m.View()
	for _, want := range []string{"[2/2]", "a.json", "cyclic call graph", "3ms"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestStageProgress(t *testing.T) {
	if stageProgress(buildpipeline.StageLoad) != 0 {
		t.Fatal("load should start at zero")
	}
	if a, b := stageProgress(buildpipeline.StageEmit), stageProgress(buildpipeline.StageOptimize); a >= b {
		t.Fatalf("progress not monotonic: emit %v, optimize %v", a, b)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a/very/long/path.json", 10, "a/ve..."},
		{"abcdef", 2, "ab"},
		{"量子回路.json", 9, "量..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
