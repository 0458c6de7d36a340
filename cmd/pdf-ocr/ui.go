package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// UI renders progress and status lines on stderr so stdout stays a clean
// event stream.
type UI struct {
	out     io.Writer
	noColor bool
	bar     *progressbar.ProgressBar
	pages   int
}

// NewUI creates a new UI instance.
func NewUI(noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{out: os.Stderr, noColor: noColor}
}

// Spin shows an indeterminate spinner until the returned stop func is called.
func (ui *UI) Spin(message string) func() {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = ui.out
	s.Start()
	return s.Stop
}

// Observe advances the progress bar from stream events.
func (ui *UI) Observe(ev domain.StreamEvent) {
	switch ev.Type {
	case domain.EventInfo:
		ui.pages = ev.Info.TotalPages
		ui.bar = progressbar.NewOptions(
			ev.Info.TotalPages*ev.Info.TotalProducers,
			progressbar.OptionSetWidth(50),
			progressbar.OptionSetDescription(fmt.Sprintf("OCR x%d", ev.Info.TotalProducers)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "│",
				BarEnd:        "│",
			}),
			progressbar.OptionSetWriter(ui.out),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("pages"),
			progressbar.OptionEnableColorCodes(!ui.noColor),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(ui.out, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	case domain.EventResult:
		if ui.bar == nil {
			return
		}
		// A producer that never initialized accounts for all of its pages.
		if ev.Result.PageIndex == 0 {
			_ = ui.bar.Add(ui.pages)
			return
		}
		_ = ui.bar.Add(1)
	case domain.EventError:
		ui.Error("%s", describeStreamError(ev.Error))
	case domain.EventComplete:
		if ui.bar != nil {
			_ = ui.bar.Finish()
		}
	}
}

func describeStreamError(e *domain.StreamError) string {
	if e.ProducerIndex == nil {
		return "stream error: " + e.Message
	}
	return fmt.Sprintf("%s (#%d) stopped: %s", e.Provider, *e.ProducerIndex, e.Message)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(ui.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(ui.out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...any) {
	color.New(color.FgRed).Fprintf(ui.out, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Info prints an informational message.
func (ui *UI) Info(format string, args ...any) {
	color.New(color.FgCyan).Fprintf(ui.out, "ℹ %s\n", fmt.Sprintf(format, args...))
}
