package index

import (
	"fmt"
	"sync"
)

// Compass accumulates progress across every worker in one indexing pass
// and reports a 0-100 percentage as requests complete. percent is computed
// as completed*100/total with integer truncation, and a total of zero is
// reported as already 100% done — both match the reference accounting.
type Compass struct {
	mu        sync.Mutex
	total     int
	completed int
	found     int
	onUpdate  func(percent int, message string)
	onDone    func()
	doneFired bool
}

// NewCompass creates a compass for a pass indexing total file specs.
// onUpdate, if non-nil, is called with the new percentage and a status
// message after every completed spec (including the final call that
// reaches 100). onDone, if non-nil, fires exactly once, when completed
// reaches total.
func NewCompass(total int, onUpdate func(percent int, message string), onDone func()) *Compass {
	c := &Compass{total: total, onUpdate: onUpdate, onDone: onDone}
	if total == 0 {
		c.report(0, 0)
		c.fireDone()
	}
	return c
}

// IJustCompletedARequest records that one more file spec has been
// processed, having found `found` files in it, and reports the new
// percentage and a "Found N files. (Done/Total = c/t)" status message.
func (c *Compass) IJustCompletedARequest(found int) {
	c.mu.Lock()
	c.completed++
	c.found += found
	completed, total := c.completed, c.total
	c.mu.Unlock()

	c.report(completed, total)
	if completed == total {
		c.fireDone()
	}
}

func (c *Compass) report(completed, total int) {
	if c.onUpdate == nil {
		return
	}
	percent := 100
	if total != 0 {
		percent = completed * 100 / total
	}
	c.onUpdate(percent, fmt.Sprintf("Found %d files. (Done/Total = %d/%d)", c.Found(), completed, total))
}

func (c *Compass) fireDone() {
	c.mu.Lock()
	if c.doneFired {
		c.mu.Unlock()
		return
	}
	c.doneFired = true
	c.mu.Unlock()

	if c.onDone != nil {
		c.onDone()
	}
}

// Found returns the running total of files found across the pass.
func (c *Compass) Found() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.found
}

// Completed reports how many file specs have finished.
func (c *Compass) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
