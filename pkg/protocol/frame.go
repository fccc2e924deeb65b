package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineLength bounds a single protocol line, excluding the terminator.
const MaxLineLength = 4096

var (
	ErrUnknownFlag    = errors.New("protocol: unknown flag")
	ErrUnknownRequest = errors.New("protocol: unknown request")
	ErrFieldCount     = errors.New("protocol: wrong field count")
	ErrInvalidField   = errors.New("protocol: field contains line break")
	ErrLineTooLong    = errors.New("protocol: line too long")
)

// Frame is one decoded session-stream message.
type Frame struct {
	Flag   Flag
	Fields []string
}

// Field returns the i-th payload line, or "" if absent.
func (f Frame) Field(i int) string {
	if i < 0 || i >= len(f.Fields) {
		return ""
	}
	return f.Fields[i]
}

// ParseRequest validates a handshake request byte.
func ParseRequest(b byte) (Request, error) {
	switch r := Request(b); r {
	case LoginRequest, RegistrationRequest:
		return r, nil
	default:
		return r, fmt.Errorf("%w: %d", ErrUnknownRequest, b)
	}
}

// Sanitize replaces line breaks so s can travel as a single field.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}

// EncodeFrame serializes a frame, validating the field count for flag.
func EncodeFrame(flag Flag, fields ...string) ([]byte, error) {
	n, ok := FieldCount(flag)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFlag, byte(flag))
	}
	if len(fields) != n {
		return nil, fmt.Errorf("%w: %s wants %d, got %d", ErrFieldCount, flag, n, len(fields))
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(flag))
	for _, f := range fields {
		if strings.ContainsAny(f, "\r\n") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidField, flag)
		}
		buf.WriteString(f)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// WriteFrame writes a frame with a single Write call so concurrent
// writers guarded by the same lock never interleave partial frames.
func WriteFrame(w io.Writer, flag Flag, fields ...string) error {
	data, err := EncodeFrame(flag, fields...)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("protocol: write %s: %w", flag, err)
	}
	return nil
}

// WriteStatus writes a single handshake status byte.
func WriteStatus(w io.Writer, s Status) error {
	if _, err := w.Write([]byte{byte(s)}); err != nil {
		return fmt.Errorf("protocol: write status: %w", err)
	}
	return nil
}

// WriteRequest writes a single handshake request byte.
func WriteRequest(w io.Writer, r Request) error {
	if _, err := w.Write([]byte{byte(r)}); err != nil {
		return fmt.Errorf("protocol: write request: %w", err)
	}
	return nil
}

// WriteLine writes line followed by '\n'.
func WriteLine(w io.Writer, line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrInvalidField
	}
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return fmt.Errorf("protocol: write line: %w", err)
	}
	return nil
}

// Reader decodes handshake bytes, lines and frames from one connection.
// It buffers, so all reads on a connection must go through the same Reader.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r. An existing *bufio.Reader is used as is.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{br: br}
	}
	return &Reader{br: bufio.NewReader(r)}
}

// ReadByte reads one raw byte.
func (r *Reader) ReadByte() (byte, error) {
	return r.br.ReadByte()
}

// ReadStatus reads one handshake status byte.
func (r *Reader) ReadStatus() (Status, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("protocol: read status: %w", err)
	}
	return Status(b), nil
}

// ReadLine reads one line without its "\n" or "\r\n" terminator.
// A final unterminated line is returned as is; the next call reports io.EOF.
// An oversized line is consumed and reported as ErrLineTooLong, so the
// caller may keep reading.
func (r *Reader) ReadLine() (string, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		// Room for the terminator; the exact bound is checked once it is stripped.
		if len(line)+len(chunk) > MaxLineLength+2 {
			if errors.Is(err, bufio.ErrBufferFull) {
				r.skipLine()
			}
			return "", ErrLineTooLong
		}
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		return "", err
	}
	s := strings.TrimSuffix(string(line), "\n")
	s = strings.TrimSuffix(s, "\r")
	if len(s) > MaxLineLength {
		return "", ErrLineTooLong
	}
	return s, nil
}

func (r *Reader) skipLine() {
	for {
		if _, err := r.br.ReadSlice('\n'); !errors.Is(err, bufio.ErrBufferFull) {
			return
		}
	}
}

// ReadFrame reads a flag byte and exactly its field count of lines.
// An unknown flag yields ErrUnknownFlag with Frame.Flag set; no fields are
// consumed, so the caller may continue reading best effort.
func (r *Reader) ReadFrame() (Frame, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	flag := Flag(b)
	n, ok := FieldCount(flag)
	if !ok {
		return Frame{Flag: flag}, fmt.Errorf("%w: %d", ErrUnknownFlag, b)
	}

	fields := make([]string, n)
	for i := range fields {
		line, err := r.ReadLine()
		if err != nil {
			return Frame{Flag: flag}, fmt.Errorf("protocol: read %s field %d: %w", flag, i, err)
		}
		fields[i] = line
	}
	return Frame{Flag: flag, Fields: fields}, nil
}
