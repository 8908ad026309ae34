package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

const frameHeaderBytes = 4

// MaxFrameBytes caps a single envelope frame. A peer announcing a larger
// frame is misbehaving and gets its connection dropped.
const MaxFrameBytes = 1 << 20

// Encoder writes envelopes as length-prefixed JSON frames.
type Encoder struct {
	w io.Writer
}

// Decoder reads length-prefixed JSON frames back into envelopes.
type Decoder struct {
	r *bufio.Reader
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Encode frames and writes one envelope.
func (e *Encoder) Encode(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wire: marshal envelope: %w", err)
	}
	if len(data) > MaxFrameBytes {
		return fmt.Errorf("wire: frame of %d bytes exceeds limit %d", len(data), MaxFrameBytes)
	}

	header := make([]byte, frameHeaderBytes)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	if _, err := e.w.Write(header); err != nil {
		return err
	}
	_, err = e.w.Write(data)
	return err
}

// Decode reads the next envelope. io.EOF means the peer hung up cleanly.
func (d *Decoder) Decode() (Envelope, error) {
	var env Envelope

	header := make([]byte, frameHeaderBytes)
	if _, err := io.ReadFull(d.r, header); err != nil {
		return env, err
	}

	length := binary.BigEndian.Uint32(header)
	if length == 0 || length > MaxFrameBytes {
		return env, fmt.Errorf("wire: bad frame length %d", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return env, err
	}

	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("wire: decode frame: %w", err)
	}
	return env, nil
}
