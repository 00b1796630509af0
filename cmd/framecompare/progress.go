package main

import (
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// bar renders a done/total callback as a terminal progress bar. A new bar is
// started whenever the total changes or the count goes backwards, which is
// what a chunked upload does when it starts over.
type bar struct {
	description string

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	total int
	last  int
}

func newBar(description string) *bar {
	return &bar{description: description}
}

func (b *bar) update(done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil || total != b.total || done < b.last {
		if b.bar != nil {
			b.bar.Finish()
		}
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(b.description),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() { os.Stderr.WriteString("\n") }),
		)
		b.total = total
	}

	b.last = done
	b.bar.Set(done)
}
