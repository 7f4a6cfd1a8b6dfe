// Package randsource provides the randomness collaborators used for key
// generation and signature nonces.
package randsource

import (
	"bufio"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	mrand "math/rand/v2"

	"golang.org/x/crypto/hkdf"
)

var ErrSeedRequired = errors.New("deterministic source seed is required")

// Source yields one uniformly distributed byte per call.
type Source interface {
	RandomByte() (byte, error)
}

// BigInt assembles n random bytes into an unsigned integer, first byte least significant.
func BigInt(src Source, n int) (*big.Int, error) {
	if n <= 0 {
		return new(big.Int), nil
	}
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b, err := src.RandomByte()
		if err != nil {
			return nil, fmt.Errorf("random byte: %w", err)
		}
		buf[i] = b
	}
	return new(big.Int).SetBytes(buf), nil
}

type readerSource struct {
	r *bufio.Reader
}

func (s *readerSource) RandomByte() (byte, error) {
	return s.r.ReadByte()
}

// NewSecure returns a source backed by crypto/rand. Not safe for concurrent use.
func NewSecure() Source {
	return &readerSource{r: bufio.NewReaderSize(rand.Reader, 64)}
}

// InsecureSource is a fast pseudo-random source. It must never be used for
// private keys or signature nonces.
type InsecureSource struct {
	rng *mrand.Rand
}

func NewInsecure(seed uint64) *InsecureSource {
	return &InsecureSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewInsecureFromTime seeds an InsecureSource from the runtime's global generator.
func NewInsecureFromTime() *InsecureSource {
	return NewInsecure(mrand.Uint64())
}

func (s *InsecureSource) RandomByte() (byte, error) {
	return byte(s.rng.Uint32()), nil
}

// Deterministic expands a seed with HKDF-SHA256. The same seed and label
// always produce the same byte stream, which makes signatures reproducible in
// tests.
type Deterministic struct {
	seed    []byte
	label   string
	counter uint32
	stream  io.Reader
}

func NewDeterministic(seed []byte, label string) (*Deterministic, error) {
	if len(seed) == 0 {
		return nil, ErrSeedRequired
	}
	d := &Deterministic{seed: append([]byte(nil), seed...), label: label}
	d.rekey()
	return d, nil
}

func (d *Deterministic) rekey() {
	info := make([]byte, 0, len(d.label)+4)
	info = append(info, d.label...)
	info = binary.BigEndian.AppendUint32(info, d.counter)
	d.stream = hkdf.New(sha256.New, d.seed, nil, info)
	d.counter++
}

func (d *Deterministic) RandomByte() (byte, error) {
	var b [1]byte
	for {
		_, err := io.ReadFull(d.stream, b[:])
		if err == nil {
			return b[0], nil
		}
		// hkdf limits output to 255 hash lengths; continue on a fresh expansion.
		d.rekey()
	}
}
