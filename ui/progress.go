// Package ui renders upload progress and results in the terminal.
// It only observes progress events, it never drives a transfer.
package ui

import (
	"fmt"
	"io"
	"time"

	"cursed-archive/domain"

	"github.com/schollz/progressbar/v3"
)

// ProgressUI draws one progress bar per uploaded file.
type ProgressUI struct {
	out     io.Writer
	enabled bool
	bar     *progressbar.ProgressBar
}

// NewProgressUI writes to out, a disabled UI renders nothing.
func NewProgressUI(out io.Writer, enabled bool) *ProgressUI {
	return &ProgressUI{out: out, enabled: enabled}
}

// Start opens a bar for a file of totalBytes.
func (p *ProgressUI) Start(name string, totalBytes uint64) {
	if !p.enabled {
		return
	}
	p.bar = progressbar.NewOptions64(int64(totalBytes),
		progressbar.OptionSetDescription(fmt.Sprintf("Uploading %s", name)),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

// Update moves the bar to the bytes acknowledged by the server.
func (p *ProgressUI) Update(event domain.Progress) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Set64(int64(event.BytesReceived))
	if event.Complete {
		_ = p.bar.Finish()
	}
}

// Stop releases the bar, whatever the outcome of the upload.
func (p *ProgressUI) Stop() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Exit()
	_, _ = fmt.Fprintln(p.out)
	p.bar = nil
}
