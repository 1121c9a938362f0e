package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// ErrMalformedRecord reports a payload that does not hold a valid record.
var ErrMalformedRecord = errors.New("wire: malformed record")

// Record payload layout:
//
//	u8     severity
//	text   thread
//	text   file
//	u16    line
//	text   message
//
// where text is a u16 big-endian byte length followed by UTF-8 bytes.

// DecodeRecord parses a record payload. Bytes after the message are ignored.
func DecodeRecord(payload []byte) (model.LogRecord, error) {
	r := payloadReader{buf: payload}
	var rec model.LogRecord

	sev, err := r.u8("severity")
	if err != nil {
		return model.LogRecord{}, err
	}
	rec.Severity = model.Severity(sev)

	if rec.Thread, err = r.text("thread"); err != nil {
		return model.LogRecord{}, err
	}
	if rec.File, err = r.text("file"); err != nil {
		return model.LogRecord{}, err
	}
	if rec.Line, err = r.u16("line"); err != nil {
		return model.LogRecord{}, err
	}
	if rec.Message, err = r.text("message"); err != nil {
		return model.LogRecord{}, err
	}
	return rec, nil
}

// EncodeRecord builds the payload for rec. It is the inverse of DecodeRecord
// and is used by the sending side.
func EncodeRecord(rec model.LogRecord) ([]byte, error) {
	fields := []struct {
		name  string
		value string
	}{
		{"thread", rec.Thread},
		{"file", rec.File},
		{"message", rec.Message},
	}
	size := 1 + 2
	for _, f := range fields {
		if len(f.value) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrMalformedRecord, f.name, len(f.value), math.MaxUint16)
		}
		size += 2 + len(f.value)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(rec.Severity))
	buf = appendText(buf, rec.Thread)
	buf = appendText(buf, rec.File)
	buf = binary.BigEndian.AppendUint16(buf, rec.Line)
	buf = appendText(buf, rec.Message)
	return buf, nil
}

func appendText(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

type payloadReader struct {
	buf []byte
	off int
}

func (r *payloadReader) take(field string, n int) ([]byte, error) {
	if n > len(r.buf)-r.off {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d left", ErrMalformedRecord, field, n, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *payloadReader) u8(field string) (uint8, error) {
	b, err := r.take(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *payloadReader) u16(field string) (uint16, error) {
	b, err := r.take(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *payloadReader) text(field string) (string, error) {
	n, err := r.u16(field + " length")
	if err != nil {
		return "", err
	}
	b, err := r.take(field, int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrMalformedRecord, field)
	}
	return string(b), nil
}
