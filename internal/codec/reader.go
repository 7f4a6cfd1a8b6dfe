package codec

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"unicode/utf8"
)

const maxVarIntBytes = 10

var (
	ErrVarIntOverflow = errors.New("var-int overflows 64 bits")
	ErrTruncated      = errors.New("truncated input")
)

// Reader is a sequential cursor over a fixed byte slice.
// A Reader is not safe for concurrent use.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// EOF reports whether the cursor is at or past the end of the data.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.data)
}

func (r *Reader) Remaining() int {
	if r.EOF() {
		return 0
	}
	return len(r.data) - r.pos
}

// Offset returns the cursor position. It may exceed the data length after a short ReadBytes.
func (r *Reader) Offset() int {
	return r.pos
}

// ReadByte returns io.EOF as the "no data" sentinel once the cursor reaches the end.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes copies up to length bytes into dst[offset:] and returns how many
// were available. The cursor always advances by length so framing is kept on
// truncated input.
func (r *Reader) ReadBytes(dst []byte, offset, length int) (int, error) {
	if length == 0 {
		return 0, nil
	}
	if length < 0 || offset < 0 {
		return 0, ErrNegativeLength
	}
	if offset+length > len(dst) {
		return 0, ErrOutOfBounds
	}
	if r.pos >= len(r.data) {
		r.pos += length
		return 0, nil
	}
	n := copy(dst[offset:offset+length], r.data[r.pos:])
	r.pos += length
	return n, nil
}

func (r *Reader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := r.ReadBytes(buf, 0, n)
	if err != nil {
		return nil, err
	}
	if got < n {
		return nil, fmt.Errorf("%w: wanted %d bytes, got %d", ErrTruncated, n, got)
	}
	return buf, nil
}

// ReadUint reads an n-byte little-endian unsigned integer. Bytes past the
// eighth must be zero.
func (r *Reader) ReadUint(n int) (uint64, error) {
	buf, err := r.readFull(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i, b := range buf {
		if i >= 8 {
			if b != 0 {
				return 0, ErrValueTooLarge
			}
			continue
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

func (r *Reader) ReadBigInt(n int) (*big.Int, error) {
	buf, err := r.readFull(n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return new(big.Int).SetBytes(buf), nil
}

func (r *Reader) ReadVarInt() (uint64, error) {
	var v uint64
	for i := 0; i < maxVarIntBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, io.ErrUnexpectedEOF
		}
		group := uint64(b & 0x7f)
		if i == maxVarIntBytes-1 && group > 1 {
			return 0, ErrVarIntOverflow
		}
		v |= group << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrVarIntOverflow
}

func (r *Reader) ReadEncodedBytes() ([]byte, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: length prefix %d exceeds %d remaining bytes", ErrTruncated, n, r.Remaining())
	}
	return r.readFull(int(n))
}

func (r *Reader) ReadEncodedString() (string, error) {
	raw, err := r.ReadEncodedBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	return string(raw), nil
}
