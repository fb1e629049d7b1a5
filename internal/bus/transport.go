package bus

import "io"

// Transport is the byte stream the bus frames messages over
type Transport interface {
	io.Reader
	io.Writer
	Close() error
}

// ioTransport pairs a read side and a write side into one Transport.
// The host side wraps the runtime process's stdout and stdin.
type ioTransport struct {
	r io.ReadCloser
	w io.WriteCloser
}

// NewIOTransport creates a transport from separate read and write streams
func NewIOTransport(r io.ReadCloser, w io.WriteCloser) Transport {
	return &ioTransport{r: r, w: w}
}

func (t *ioTransport) Read(p []byte) (int, error) {
	return t.r.Read(p)
}

func (t *ioTransport) Write(p []byte) (int, error) {
	return t.w.Write(p)
}

func (t *ioTransport) Close() error {
	werr := t.w.Close()
	rerr := t.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Pipe returns two connected in-memory transports. Frames written to
// one side are read from the other. Used by tests and the fake runtime.
func Pipe() (Transport, Transport) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := &ioTransport{r: ar, w: aw}
	b := &ioTransport{r: br, w: bw}
	return a, b
}
