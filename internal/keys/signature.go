package keys

import "math/big"

// Signature is an ECDSA (r, s) pair. The zero value is the unsigned sentinel.
type Signature struct {
	R, S *big.Int
}

// IsZero reports whether either component is missing or zero.
func (s Signature) IsZero() bool {
	return s.R == nil || s.S == nil || s.R.Sign() == 0 || s.S.Sign() == 0
}

func (s Signature) Equal(o Signature) bool {
	return cmpNil(s.R, o.R) && cmpNil(s.S, o.S)
}

func cmpNil(a, b *big.Int) bool {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b) == 0
}
