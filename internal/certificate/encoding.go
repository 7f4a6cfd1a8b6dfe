package certificate

import (
	"errors"
	"fmt"

	"entrypass/go-core/internal/codec"
	"entrypass/go-core/internal/keys"
)

const (
	keySize       = 32
	signatureSize = 2 * keySize

	// MaxChainDepth bounds the number of certificates in one chain.
	MaxChainDepth = 32
)

var (
	ErrChainTooDeep = errors.New("certificate chain too deep")
	ErrChainCycle   = errors.New("certificate chain contains a cycle")
	ErrMalformed    = errors.New("malformed certificate")
	ErrMissingKey   = errors.New("certificate public key is missing")
	ErrTrailingData = errors.New("trailing data after certificate")
)

// Encode appends the canonical encoding of c and its parents to w.
func (c *Certificate) Encode(w *codec.Writer) error {
	return c.encode(w, 0, map[*Certificate]struct{}{})
}

func (c *Certificate) encode(w *codec.Writer, depth int, seen map[*Certificate]struct{}) error {
	if depth >= MaxChainDepth {
		return ErrChainTooDeep
	}
	if _, ok := seen[c]; ok {
		return ErrChainCycle
	}
	seen[c] = struct{}{}
	if c.PublicKey.X == nil {
		return ErrMissingKey
	}

	if c.Parent != nil {
		_ = w.WriteByte(1)
		if err := c.Parent.encode(w, depth+1, seen); err != nil {
			return err
		}
	} else {
		_ = w.WriteByte(0)
	}
	_ = w.WriteByte(boolByte(c.PublicKey.EvenY))
	w.WriteBigInt(c.PublicKey.X, keySize)
	w.WriteEncodedString(c.Name)
	_ = w.WriteByte(byte(c.UseCases))
	w.WriteUint(uint64(c.ExpireOn), 8)
	w.WriteBigInt(zeroIfNil(c.Signature.R), keySize)
	w.WriteBigInt(zeroIfNil(c.Signature.S), keySize)
	return nil
}

// Decode reads one certificate chain from r.
func Decode(r *codec.Reader) (*Certificate, error) {
	return decode(r, 0)
}

func decode(r *codec.Reader, depth int) (*Certificate, error) {
	if depth >= MaxChainDepth {
		return nil, ErrChainTooDeep
	}
	hasParent, err := readFlag(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parent flag: %v", ErrMalformed, err)
	}
	c := &Certificate{}
	if hasParent {
		if c.Parent, err = decode(r, depth+1); err != nil {
			return nil, err
		}
	}
	even, err := readFlag(r)
	if err != nil {
		return nil, fmt.Errorf("%w: key parity: %v", ErrMalformed, err)
	}
	x, err := r.ReadBigInt(keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrMalformed, err)
	}
	c.PublicKey = keys.CompressedPublic{EvenY: even, X: x}
	if c.Name, err = r.ReadEncodedString(); err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrMalformed, err)
	}
	useCases, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: use cases: %v", ErrMalformed, err)
	}
	c.UseCases = UseCase(useCases)
	expire, err := r.ReadUint(8)
	if err != nil {
		return nil, fmt.Errorf("%w: expiry: %v", ErrMalformed, err)
	}
	c.ExpireOn = int64(expire)
	sr, err := r.ReadBigInt(keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	ss, err := r.ReadBigInt(keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	c.Signature = keys.Signature{R: sr, S: ss}
	return c, nil
}

func (c *Certificate) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.DefaultBlockSize)
	if err := c.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes()
}

func (c *Certificate) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data)
	decoded, err := Decode(r)
	if err != nil {
		return err
	}
	if !r.EOF() {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Remaining())
	}
	*c = *decoded
	return nil
}

// Parse decodes a standalone certificate encoding.
func Parse(data []byte) (*Certificate, error) {
	c := new(Certificate)
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return c, nil
}

// SigningBytes is the canonical encoding without the trailing signature.
func (c *Certificate) SigningBytes() ([]byte, error) {
	raw, err := c.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return raw[:len(raw)-signatureSize], nil
}

func readFlag(r *codec.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, fmt.Errorf("flag byte 0x%02x", b)
	}
	return b == 1, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
