package index

import (
	"sync"

	"github.com/dj1mm/vhdlls/internal/hdl"
	"github.com/dj1mm/vhdlls/internal/progress"
)

// Explorer partitions a set of file specs across a fixed number of
// workers and runs them concurrently, tracking overall progress through a
// Compass and, optionally, a work-done progress bar.
type Explorer struct {
	workers []*Worker
	wg      sync.WaitGroup
	bar     *progress.Bar
}

// StartExplorer partitions specs across numWorkers workers (the same
// n/numWorkers-plus-remainder distribution as the reference
// implementation: the first `len(specs) % numWorkers` workers get one
// extra item) and starts them all running in their own goroutine. The
// optional progressSender/progressGate let the caller wire a visible
// work-done progress bar (token "background-index"); pass a nil sender to
// skip it.
func StartExplorer(specs []FileSpec, workspaceFolder string, numWorkers int, parser hdl.Parser, libraryManager hdl.LibraryManager, filelist *Filelist, diagnose func(string, ...interface{}), progressSender progress.Sender, progressGate *progress.Gate) *Explorer {
	if numWorkers < 1 {
		numWorkers = 1
	}

	var bar *progress.Bar
	if progressSender != nil && progressGate != nil {
		bar, _ = progress.Create(progressSender, progressGate, "background-index")
	}

	e := &Explorer{bar: bar}
	compass := NewCompass(len(specs), func(percent int, message string) {
		if e.bar != nil {
			e.bar.Report(percent, message)
		}
	}, func() {
		if e.bar != nil {
			e.bar.End("")
		}
	})

	batches := partition(specs, numWorkers)
	for _, batch := range batches {
		w := NewWorker(batch, workspaceFolder, parser, libraryManager, filelist, compass, diagnose)
		e.workers = append(e.workers, w)
		e.wg.Add(1)
		go func(w *Worker) {
			defer e.wg.Done()
			w.Work()
			w.Stop()
		}(w)
	}
	return e
}

// partition splits items into n batches, distributing the remainder one
// extra item at a time to the first batches, matching the reference
// implementation's len/threads + remainder-until-exhausted split.
func partition(items []FileSpec, n int) [][]FileSpec {
	batches := make([][]FileSpec, n)
	base := len(items) / n
	remainder := len(items) % n

	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < remainder {
			size++
		}
		batches[i] = items[idx : idx+size]
		idx += size
	}
	return batches
}

// Stop requests every worker to abandon remaining work after its current
// spec.
func (e *Explorer) Stop() {
	for _, w := range e.workers {
		w.Stop()
	}
}

// Join blocks until every worker has returned from Work. The progress bar
// is normally already ended by the compass's on-all-completed callback by
// the time every worker returns; End is idempotent, so this also covers
// the early-Stop path where completed never reaches total.
func (e *Explorer) Join() {
	e.wg.Wait()
	if e.bar != nil {
		e.bar.End("")
	}
}

// Done reports whether every worker has finished processing its batch.
func (e *Explorer) Done() bool {
	for _, w := range e.workers {
		if w.Busy() {
			return false
		}
	}
	return true
}
