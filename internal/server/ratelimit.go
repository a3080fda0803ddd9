package server

import (
	"sync"
	"time"

	"github.com/go-chi/httprate"
)

var _ httprate.LimitCounter = (*fixedWindowCounter)(nil)

// fixedWindowCounter is an in-memory [httprate.LimitCounter] that counts each window independently.
// Previous-window traffic always reads as zero, so every window starts with the full quota.
type fixedWindowCounter struct {
	mu     sync.Mutex
	window time.Time
	counts map[string]int
}

func newFixedWindowCounter() *fixedWindowCounter {
	return &fixedWindowCounter{counts: make(map[string]int)}
}

func (c *fixedWindowCounter) Config(requestLimit int, windowLength time.Duration) {}

func (c *fixedWindowCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *fixedWindowCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roll(currentWindow)
	c.counts[key] += amount
	return nil
}

// Get returns the key's count in currentWindow. The previous window always reads as zero.
func (c *fixedWindowCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roll(currentWindow)
	return c.counts[key], 0, nil
}

// roll drops every count once a newer window starts. Callers hold mu.
func (c *fixedWindowCounter) roll(currentWindow time.Time) {
	if currentWindow.After(c.window) {
		c.window = currentWindow
		clear(c.counts)
	}
}
