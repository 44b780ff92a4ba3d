package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single encoded frame.
const MaxFrameSize = 10 * 1024 * 1024

// DecodeError reports a frame that could not be parsed. The stream is not
// usable after a DecodeError.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("JSON parse error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a malformed-frame failure.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Encoder writes one JSON document per line.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates a new protocol encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w: bufio.NewWriter(w),
	}
}

// Encode writes v as a single frame and flushes it.
func (e *Encoder) Encode(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if len(b) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d", len(b), MaxFrameSize)
	}

	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// EncodeCommand sends a request.
func (e *Encoder) EncodeCommand(cmd *Command) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	if cmd.Params == nil {
		cmd = NewCommand(cmd.Name, nil)
	}
	return e.Encode(cmd)
}

// EncodeResponse sends a reply.
func (e *Encoder) EncodeResponse(resp Response) error {
	return e.Encode(resp)
}

// Decoder reads one JSON document per line.
type Decoder struct {
	r *bufio.Scanner
}

// NewDecoder creates a new protocol decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	return &Decoder{
		r: scanner,
	}
}

// next returns the next non-blank frame. It returns io.EOF at end of stream.
func (d *Decoder) next() ([]byte, error) {
	for d.r.Scan() {
		line := bytes.TrimSpace(d.r.Bytes())
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := d.r.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &DecodeError{Err: err}
		}
		return nil, fmt.Errorf("scan error: %w", err)
	}
	return nil, io.EOF
}

// DecodeCommand reads the next request. A frame without a command name is
// returned together with ErrMissingCommand so the caller can still answer it.
func (d *Decoder) DecodeCommand() (*Command, error) {
	line, err := d.next()
	if err != nil {
		return nil, err
	}

	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if err := cmd.Validate(); err != nil {
		return &cmd, err
	}
	return &cmd, nil
}

// DecodeResponse reads the next reply.
func (d *Decoder) DecodeResponse() (Response, error) {
	line, err := d.next()
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, &DecodeError{Err: err}
	}
	return resp, nil
}
