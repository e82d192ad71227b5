package gxserial2tcp

import (
	"bytes"
	"sync"
	"time"
)

// capture collects bytes received by one side of a test and lets the test
// wait until enough of them have arrived.
type capture struct {
	mu   sync.Mutex
	buf  []byte
	wait chan struct{}
}

func newCapture() *capture {
	return &capture{wait: make(chan struct{})}
}

func (c *capture) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	c.mu.Lock()
	c.buf = append(c.buf, p...)
	old := c.wait
	c.wait = make(chan struct{})
	c.mu.Unlock()
	close(old)
}

// Bytes returns a copy of everything captured so far.
func (c *capture) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.buf)
}

// Search waits up to maxWait for pattern and returns the position right
// after it, or -1.
func (c *capture) Search(pattern []byte, maxWait time.Duration) int {
	deadline := time.Now().Add(maxWait)
	for {
		c.mu.Lock()
		if i := bytes.Index(c.buf, pattern); i >= 0 {
			c.mu.Unlock()
			return i + len(pattern)
		}
		ch := c.wait
		c.mu.Unlock()

		rem := time.Until(deadline)
		if rem <= 0 {
			return -1
		}
		timer := time.NewTimer(rem)
		select {
		case <-ch:
			timer.Stop()
		case <-timer.C:
			return -1
		}
	}
}
