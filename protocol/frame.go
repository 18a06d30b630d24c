package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameSize caps a payload when the caller passes no limit.
const DefaultMaxFrameSize = 1 << 20

const headerSize = 5

var ErrFrameTooLarge = errors.New("frame too large")

// UnknownTypeError reports a frame whose tag names no message kind. The
// payload has been consumed, so the stream is still aligned.
type UnknownTypeError struct {
	Tag Tag
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %d", byte(e.Tag))
}

// DecodeError reports a well-framed message whose payload did not decode.
// The stream is still aligned.
type DecodeError struct {
	Tag Tag
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Recoverable reports whether the connection can keep reading after err.
func Recoverable(err error) bool {
	var ute *UnknownTypeError
	var de *DecodeError
	return errors.As(err, &ute) || errors.As(err, &de)
}

// WriteMessage writes one frame: tag byte, big-endian payload length, JSON.
func WriteMessage(w io.Writer, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Tag(), err)
	}
	buf := make([]byte, headerSize+len(payload))
	buf[0] = byte(m.Tag())
	binary.BigEndian.PutUint32(buf[1:headerSize], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", m.Tag(), err)
	}
	return nil
}

// ReadMessage reads one frame. A payload longer than maxSize (0 means
// DefaultMaxFrameSize) fails with ErrFrameTooLarge before it is read. A
// stream that ends mid-frame fails with io.ErrUnexpectedEOF; one that ends
// between frames returns io.EOF.
func ReadMessage(r io.Reader, maxSize uint32) (Message, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	tag := Tag(hdr[0])
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > maxSize {
		return nil, fmt.Errorf("%s frame of %d bytes (max %d): %w", tag, n, maxSize, ErrFrameTooLarge)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	m := newMessage(tag)
	if m == nil {
		return nil, &UnknownTypeError{Tag: tag}
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, m); err != nil {
			return nil, &DecodeError{Tag: tag, Err: err}
		}
	}
	return m, nil
}
