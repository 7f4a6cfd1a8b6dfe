package keys

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"entrypass/go-core/internal/randsource"
)

var (
	ErrPrivateKeyRange   = errors.New("private key out of range")
	ErrMissingPrivateKey = errors.New("missing private key")
	ErrNotOnCurve        = errors.New("point is not on curve")
	ErrNoSolution        = errors.New("no solution")
	ErrInvalidNonce      = errors.New("nonce reduces to zero")
)

// NonceSize is the number of random bytes drawn per signature nonce before
// reduction mod n.
const NonceSize = 64

// Key holds a public point and, for signing keys, the private scalar.
type Key struct {
	d    *big.Int
	x, y *big.Int
}

// CompressedPublic is the (parity, x) form carried in certificates. EvenY is
// true when y is even.
type CompressedPublic struct {
	EvenY bool
	X     *big.Int
}

func (c CompressedPublic) Equal(o CompressedPublic) bool {
	if c.X == nil || o.X == nil {
		return c.X == o.X && c.EvenY == o.EvenY
	}
	return c.EvenY == o.EvenY && c.X.Cmp(o.X) == 0
}

// NewPrivate derives the public point d·G. d must satisfy 1 ≤ d < n.
func NewPrivate(d *big.Int) (*Key, error) {
	if d == nil || d.Sign() <= 0 || d.Cmp(curveN) >= 0 {
		return nil, ErrPrivateKeyRange
	}
	x, y := baseMult(d)
	return &Key{d: new(big.Int).Set(d), x: x, y: y}, nil
}

func NewPublic(x, y *big.Int) (*Key, error) {
	if x == nil || y == nil || !curve.IsOnCurve(x, y) {
		return nil, ErrNotOnCurve
	}
	return &Key{x: new(big.Int).Set(x), y: new(big.Int).Set(y)}, nil
}

// Generate samples 256-bit scalars from src until one lies in [1, n).
func Generate(src randsource.Source) (*Key, error) {
	for {
		d, err := randsource.BigInt(src, ScalarSize)
		if err != nil {
			return nil, err
		}
		if d.Sign() > 0 && d.Cmp(curveN) < 0 {
			return NewPrivate(d)
		}
	}
}

func (k *Key) HasPrivate() bool { return k.d != nil }

// D returns a copy of the private scalar, or nil for public-only keys.
func (k *Key) D() *big.Int {
	if k.d == nil {
		return nil
	}
	return new(big.Int).Set(k.d)
}

func (k *Key) X() *big.Int { return new(big.Int).Set(k.x) }

func (k *Key) Y() *big.Int { return new(big.Int).Set(k.y) }

// Public returns a public-only copy of k.
func (k *Key) Public() *Key {
	return &Key{x: k.X(), y: k.Y()}
}

func (k *Key) Compressed() CompressedPublic {
	return CompressedPublic{EvenY: k.y.Bit(0) == 0, X: k.X()}
}

// LogValue renders the public point only.
func (k *Key) LogValue() slog.Value {
	if k == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.Bool("even_y", k.y.Bit(0) == 0),
		slog.String("x", k.x.Text(16)),
		slog.Bool("signer", k.HasPrivate()),
	)
}

// Uncompress recovers y from y² = x³ + a·x + b (mod p) and picks the root with
// the requested parity.
func Uncompress(c CompressedPublic) (*Key, error) {
	if c.X == nil || c.X.Sign() < 0 || c.X.Cmp(curveP) >= 0 {
		return nil, ErrNotOnCurve
	}
	y := new(big.Int).ModSqrt(curveY2(c.X), curveP)
	if y == nil {
		return nil, fmt.Errorf("%w: x=%x", ErrNotOnCurve, c.X)
	}
	if (y.Bit(0) == 0) != c.EvenY {
		y.Sub(curveP, y)
	}
	return NewPublic(c.X, y)
}

// Equal compares public points.
func (k *Key) Equal(o *Key) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.x.Cmp(o.x) == 0 && k.y.Cmp(o.y) == 0
}

// Sign produces an ECDSA signature over digest with nonce k. The nonce must
// never be reused with the same private key.
func (k *Key) Sign(digest, nonce *big.Int) (Signature, error) {
	if k.d == nil {
		return Signature{}, ErrMissingPrivateKey
	}
	kn := new(big.Int).Mod(nonce, curveN)
	if kn.Sign() == 0 {
		return Signature{}, ErrInvalidNonce
	}
	rx, _ := baseMult(kn)
	kinv, err := ModInverse(kn, curveN)
	if err != nil {
		return Signature{}, err
	}
	s := new(big.Int).Mul(k.d, rx)
	s.Add(s, digest)
	s.Mul(s, kinv)
	s.Mod(s, curveN)
	return Signature{R: rx, S: s}, nil
}

// SignWith draws a fresh nonce from src and signs digest.
func (k *Key) SignWith(digest *big.Int, src randsource.Source) (Signature, error) {
	nonce, err := randsource.BigInt(src, NonceSize)
	if err != nil {
		return Signature{}, err
	}
	return k.Sign(digest, nonce)
}

// Verify checks sig over digest. It fails with ErrNoSolution when s has no
// inverse mod n.
func (k *Key) Verify(digest *big.Int, sig Signature) (bool, error) {
	if sig.R == nil || sig.S == nil {
		return false, ErrNoSolution
	}
	w, err := ModInverse(sig.S, curveN)
	if err != nil {
		return false, err
	}
	u1 := new(big.Int).Mul(digest, w)
	u1.Mod(u1, curveN)
	u2 := new(big.Int).Mul(sig.R, w)
	u2.Mod(u2, curveN)

	x1, y1 := baseMult(u1)
	x2, y2 := pointMult(k.x, k.y, u2)
	px, _ := pointAdd(x1, y1, x2, y2)
	return px.Cmp(sig.R) == 0, nil
}
