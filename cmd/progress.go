package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/model"
)

// progress reports batch progress as a bar on a terminal and as log lines
// otherwise.
type progress struct {
	job string
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgress(job string, out io.Writer) *progress {
	return &progress{job: job, out: out}
}

// stderrIsTerminal reports whether a progress bar can be drawn.
func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// update is the batch progress callback.
func (p *progress) update(s model.RunSummary) {
	if p.out == nil {
		zap.L().Info("progress",
			zap.String("job", p.job),
			zap.Int("processed", s.Processed),
			zap.Int("total", s.Total),
			zap.Int("succeeded", s.Succeeded),
			zap.Int("failed", s.Failed),
			zap.Int("cached", s.Cached),
		)
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(s.Total,
			progressbar.OptionSetDescription(p.job),
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(s.Processed)
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// progressWriter returns stderr when it is a terminal, nil otherwise.
func progressWriter() io.Writer {
	if stderrIsTerminal() {
		return os.Stderr
	}
	return nil
}
