package keys

import (
	"crypto/elliptic"
	"math/big"
)

// Domain parameters of the signing curve (NIST P-256 / secp256r1).
var (
	curveA  = mustHex("ffffffff00000001000000000000000000000000fffffffffffffffffffffffc")
	curveB  = mustHex("5ac635d8aa3a93e7b3ebbd55769886bc651d06b0cc53b0f63bce3c3e27d2604b")
	curveN  = mustHex("ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551")
	curveP  = mustHex("ffffffff00000001000000000000000000000000ffffffffffffffffffffffff")
	curveGx = mustHex("6b17d1f2e12c4247f8bce6e563a440f277037d812deb33a0f4a13945d898c296")
	curveGy = mustHex("4fe342e2fe1a7f9b8ee7eb4a7c0f9e162bce33576b315ececbb6406837bf51f5")

	curve = elliptic.P256()
)

const ScalarSize = 32

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("keys: bad curve constant " + s)
	}
	return v
}

// Order returns a copy of the curve order n.
func Order() *big.Int { return new(big.Int).Set(curveN) }

func scalarBytes(k *big.Int) []byte {
	return new(big.Int).Mod(k, curveN).FillBytes(make([]byte, ScalarSize))
}

func baseMult(k *big.Int) (*big.Int, *big.Int) {
	return curve.ScalarBaseMult(scalarBytes(k))
}

func pointMult(x, y, k *big.Int) (*big.Int, *big.Int) {
	return curve.ScalarMult(x, y, scalarBytes(k))
}

func pointAdd(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	return curve.Add(x1, y1, x2, y2)
}

// curveY2 returns x³ + a·x + b mod p.
func curveY2(x *big.Int) *big.Int {
	y2 := new(big.Int).Exp(x, big.NewInt(3), curveP)
	ax := new(big.Int).Mul(curveA, x)
	y2.Add(y2, ax)
	y2.Add(y2, curveB)
	return y2.Mod(y2, curveP)
}

// ModInverse returns v⁻¹ mod m, or ErrNoSolution when v and m are not coprime.
func ModInverse(v, m *big.Int) (*big.Int, error) {
	r := new(big.Int).Mod(v, m)
	if r.Sign() == 0 {
		return nil, ErrNoSolution
	}
	inv := new(big.Int).ModInverse(r, m)
	if inv == nil {
		return nil, ErrNoSolution
	}
	return inv, nil
}
