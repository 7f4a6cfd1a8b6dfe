package codec

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

const DefaultBlockSize = 128

var (
	ErrNegativeLength = errors.New("negative length")
	ErrOutOfBounds    = errors.New("out of bound (offset + length > len(buf))")
	ErrValueTooLarge  = errors.New("value does not fit in requested width")
	ErrNegativeValue  = errors.New("negative value")
	ErrInvalidUTF8    = errors.New("invalid utf-8 sequence")
)

// Writer is an append-only byte sink. Capacity grows in whole blocks.
// A Writer is not safe for concurrent use.
type Writer struct {
	blockSize int
	buf       []byte
	err       error
}

func NewWriter(blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{blockSize: blockSize}
}

func (w *Writer) grow(n int) {
	need := len(w.buf) + n
	if need <= cap(w.buf) {
		return
	}
	blocks := (need + w.blockSize - 1) / w.blockSize
	next := make([]byte, len(w.buf), blocks*w.blockSize)
	copy(next, w.buf)
	w.buf = next
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) WriteByte(b byte) error {
	w.grow(1)
	w.buf = append(w.buf, b)
	return nil
}

// WriteBytes appends buf[offset:offset+length].
func (w *Writer) WriteBytes(buf []byte, offset, length int) error {
	if length == 0 {
		return nil
	}
	if length < 0 || offset < 0 {
		w.fail(ErrNegativeLength)
		return ErrNegativeLength
	}
	if offset+length > len(buf) {
		w.fail(ErrOutOfBounds)
		return ErrOutOfBounds
	}
	w.grow(length)
	w.buf = append(w.buf, buf[offset:offset+length]...)
	return nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if err := w.WriteBytes(p, 0, len(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteUint writes the low n bytes of v, little-endian.
func (w *Writer) WriteUint(v uint64, n int) {
	w.grow(n)
	for i := 0; i < n; i++ {
		if i < 8 {
			w.buf = append(w.buf, byte(v>>(8*i)))
		} else {
			w.buf = append(w.buf, 0)
		}
	}
}

// WriteBigInt writes v as an n-byte little-endian unsigned integer.
func (w *Writer) WriteBigInt(v *big.Int, n int) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 {
		w.fail(fmt.Errorf("%w: %s", ErrNegativeValue, v.String()))
		return
	}
	if (v.BitLen()+7)/8 > n {
		w.fail(fmt.Errorf("%w: %d bits into %d bytes", ErrValueTooLarge, v.BitLen(), n))
		return
	}
	be := v.FillBytes(make([]byte, n))
	w.grow(n)
	for i := n - 1; i >= 0; i-- {
		w.buf = append(w.buf, be[i])
	}
}

// WriteVarInt writes v in base-128 groups, least significant first.
func (w *Writer) WriteVarInt(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		_ = w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func (w *Writer) WriteEncodedBytes(buf []byte) {
	w.WriteVarInt(uint64(len(buf)))
	_ = w.WriteBytes(buf, 0, len(buf))
}

// WriteEncodedString writes s as length-prefixed UTF-8.
func (w *Writer) WriteEncodedString(s string) {
	if !utf8.ValidString(s) {
		w.fail(ErrInvalidUTF8)
		return
	}
	w.WriteEncodedBytes([]byte(s))
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the accumulated bytes, or the first error recorded by a write.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out, nil
}
