package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"hugrqir/internal/buildpipeline"
	"hugrqir/internal/ui"
)

type buildOutcome struct {
	results []buildpipeline.BuildResult
	err     error
}

// runBuildAllWithUI builds reqs in the background while the progress UI
// renders their events.
func runBuildAllWithUI(ctx context.Context, title string, files []string, reqs []*buildpipeline.BuildRequest, jobs int) ([]buildpipeline.BuildResult, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		results, err := buildpipeline.BuildAll(ctx, reqs, jobs, buildpipeline.ChannelSink{Ch: events})
		outcomeCh <- buildOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// the UI may quit early; keep draining so builders never block
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
