package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a one-shot command
type RunnerConfig struct {
	Title           string
	Command         string
	Params          []Param
	StepNames       []string
	Troubleshooting []string  // shown on failure
	Output          io.Writer // default: os.Stdout
	Width           int       // default: terminal width
}

// Runner prints header, steps and result for a command that talks to the
// controller.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
	now      func() time.Time
}

// NewRunner creates a runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := config.Width
	if width == 0 {
		width = GetTerminalWidth()
	}
	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: NewProgress("", config.StepNames...).SetWidth(width),
		output:   config.Output,
		width:    width,
		now:      time.Now,
	}
}

// Operation does the work and returns extra details for the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// Run prints the header, runs op and prints the result box.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := r.now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := op(ctx, r.onStep)
	elapsed := r.now().Sub(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.output)
	var result *Result
	if err != nil {
		result = NewFailureResult(r.config.Title, err, r.config.Troubleshooting...)
	} else {
		result = NewSuccessResult(r.config.Title, details...)
	}
	result.AddDetail("Duração", elapsed.String())
	_, _ = fmt.Fprintln(r.output, result.SetWidth(r.width).Render())
	return err
}

// Progress exposes the step list, mostly for tests.
func (r *Runner) Progress() *Progress {
	return r.progress
}

func (r *Runner) onStep(stepNumber int, status StepStatus, message string) {
	r.progress.UpdateStep(stepNumber, status, message)
	if stepNumber < 1 || stepNumber > len(r.progress.Steps) {
		return
	}
	line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
	switch status {
	case StepRunning:
		// overwritten when the step finishes
		_, _ = fmt.Fprint(r.output, line+"\r")
	case StepComplete, StepFailed, StepSkipped:
		_, _ = fmt.Fprintln(r.output, line)
	}
}
