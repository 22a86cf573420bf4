// Package console is the console device: a keyboard input queue and a
// character output sink shared by every process.
package console

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// Console serializes output so a buffer written by one process is never
// interleaved with another's.
type Console struct {
	outMu sync.Mutex
	out   io.Writer
	subs  map[int]chan []byte
	subID int

	inMu sync.Mutex
	in   *bufio.Reader
}

// New creates a console writing to out and reading keyboard input from in.
// Either may be nil.
func New(out io.Writer, in io.Reader) *Console {
	if out == nil {
		out = io.Discard
	}
	c := &Console{out: out, subs: make(map[int]chan []byte)}
	if in != nil {
		c.in = bufio.NewReader(in)
	}
	return c
}

// Putbuf writes p as one unit.
func (c *Console) Putbuf(p []byte) {
	if len(p) == 0 {
		return
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.put(p)
}

// Locked holds the output for the duration of fn. Everything fn passes to
// put appears as one unit; put does not retain p.
func (c *Console) Locked(fn func(put func(p []byte))) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fn(c.put)
}

// put writes p with outMu held.
func (c *Console) put(p []byte) {
	if len(p) == 0 {
		return
	}
	_, _ = c.out.Write(p)
	for _, ch := range c.subs {
		select {
		case ch <- append([]byte(nil), p...):
		default:
			// slow subscriber; drop rather than stall the kernel
		}
	}
}

// Printf formats and writes one unit of output.
func (c *Console) Printf(format string, args ...any) {
	c.Putbuf([]byte(fmt.Sprintf(format, args...)))
}

// Getc returns the next keyboard byte. ok is false when input is exhausted.
func (c *Console) Getc() (b byte, ok bool) {
	c.inMu.Lock()
	defer c.inMu.Unlock()

	if c.in == nil {
		return 0, false
	}
	b, err := c.in.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

// Read fills p from the keyboard, one byte at a time, stopping early only
// when input is exhausted.
func (c *Console) Read(p []byte) int {
	for i := range p {
		b, ok := c.Getc()
		if !ok {
			return i
		}
		p[i] = b
	}
	return len(p)
}

// Subscribe returns a channel receiving a copy of all later output, and a
// function that ends the subscription.
func (c *Console) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)

	c.outMu.Lock()
	id := c.subID
	c.subID++
	c.subs[id] = ch
	c.outMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.outMu.Lock()
			delete(c.subs, id)
			c.outMu.Unlock()
			close(ch)
		})
	}
}
