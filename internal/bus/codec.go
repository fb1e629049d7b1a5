package bus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Encoder writes newline-delimited JSON frames
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes a single message frame
func (e *Encoder) Encode(msg *types.Message) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads newline-delimited JSON frames
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads the next message frame. Empty lines are skipped. A frame
// that is not valid JSON or has no kind returns ErrMalformedFrame; the
// decoder stays usable for subsequent frames.
func (d *Decoder) Decode() (*types.Message, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(bytes.TrimSpace(line)) > 0 {
				// Final frame without trailing newline
				return d.parse(line)
			}
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return d.parse(line)
	}
}

func (d *Decoder) parse(line []byte) (*types.Message, error) {
	var msg types.Message
	if err := sonic.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if msg.Kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformedFrame)
	}
	return &msg, nil
}
