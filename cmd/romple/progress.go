package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"romplestiltskin/internal/verify"
)

// newProgress returns a progress callback rendering a terminal bar, or nil
// when stderr is not a terminal.
func newProgress(description string) verify.ScanProgress {
	if !isTerminal(os.Stderr) {
		return nil
	}

	var bar *progressbar.ProgressBar
	return func(completed, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionShowCount(),
			)
		}
		bar.Set(completed)
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
