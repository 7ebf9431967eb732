package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
)

// StepProgress draws a progress bar advanced once per completed pipeline
// step. It satisfies the pipeline's Observer interface.
type StepProgress struct {
	bar  *progressbar.ProgressBar
	done int
}

// NewStepProgress creates a bar for the given number of steps.
func NewStepProgress(writer io.Writer, steps int) *StepProgress {
	if writer == nil {
		writer = os.Stderr
	}
	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classifying rows...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return &StepProgress{bar: bar}
}

// StepCompleted advances the bar and shows the finished step.
func (p *StepProgress) StepCompleted(step string) {
	p.done++
	p.bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset]", step))
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Completed returns how many steps have been reported.
func (p *StepProgress) Completed() int {
	return p.done
}

// Abort clears the bar after a failed run.
func (p *StepProgress) Abort() {
	if err := p.bar.Clear(); err != nil {
		slog.Warn("Failed to clear progress bar", "error", err)
	}
}
