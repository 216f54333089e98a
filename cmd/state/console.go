package state

import (
	"io"
	"sync"
)

// ConsoleWriter serializes writes to a terminal or a redirected stream.
type ConsoleWriter struct {
	Writer io.Writer
	IsTTY  bool
	Mutex  *sync.Mutex
}

// Write implements io.Writer.
func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	return w.Writer.Write(p)
}
