// Package wire implements the netlogger TCP protocol.
//
// Every message is a frame: a 4-byte big-endian total length (which counts
// the header itself) followed by the payload. Inbound payloads are log
// records (record.go), outbound payloads are 2-byte filter toggles
// (filter.go).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size of the length prefix.
	HeaderSize = 4

	// MaxFrameSize is the largest accepted total length, header included.
	MaxFrameSize = 8192

	// MaxPayloadSize is the largest payload that fits in a frame.
	MaxPayloadSize = MaxFrameSize - HeaderSize
)

var (
	// ErrConnectionClosed reports that the peer closed the stream, either
	// between frames or in the middle of one.
	ErrConnectionClosed = errors.New("wire: connection closed")

	// ErrMalformedFrame reports a total length outside [HeaderSize, MaxFrameSize].
	ErrMalformedFrame = errors.New("wire: malformed frame")
)

// EncodeFrame prefixes payload with its total length.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrMalformedFrame, len(payload), MaxPayloadSize)
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:HeaderSize], uint32(len(frame)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// WriteFrame encodes payload and writes the whole frame with a single Write.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r and returns its payload.
//
// A total length outside the accepted range yields an error wrapping
// ErrMalformedFrame; no payload bytes are consumed in that case, so the next
// call interprets the following 4 bytes as a fresh header. End of stream at
// any point yields ErrConnectionClosed. Other read errors are returned wrapped.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readError("header", err)
	}
	total := binary.BigEndian.Uint32(header[:])
	if total < HeaderSize || total > MaxFrameSize {
		return nil, fmt.Errorf("%w: total length %d", ErrMalformedFrame, total)
	}
	payload := make([]byte, total-HeaderSize)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, readError("payload", err)
		}
	}
	return payload, nil
}

func readError(part string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("wire: read frame %s: %w", part, err)
}
