package keys

import (
	"crypto/elliptic"
	"errors"
	"math/big"
	"strings"
	"testing"

	"entrypass/go-core/internal/digest"
	"entrypass/go-core/internal/randsource"
)

func testSource(t *testing.T, label string) randsource.Source {
	t.Helper()
	src, err := randsource.NewDeterministic([]byte("keys-test-seed"), label)
	if err != nil {
		t.Fatalf("deterministic source: %v", err)
	}
	return src
}

func TestCurveConstantsMatchP256(t *testing.T) {
	params := elliptic.P256().Params()
	if params.P.Cmp(curveP) != 0 || params.N.Cmp(curveN) != 0 || params.B.Cmp(curveB) != 0 {
		t.Fatal("curve constants do not match P-256")
	}
	if params.Gx.Cmp(curveGx) != 0 || params.Gy.Cmp(curveGy) != 0 {
		t.Fatal("base point does not match P-256")
	}
	if new(big.Int).Sub(curveP, big.NewInt(3)).Cmp(curveA) != 0 {
		t.Fatal("a must equal p - 3")
	}
}

func TestNewPrivateRejectsOutOfRange(t *testing.T) {
	for _, d := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5), Order(), new(big.Int).Add(Order(), big.NewInt(1))} {
		if _, err := NewPrivate(d); !errors.Is(err, ErrPrivateKeyRange) {
			t.Fatalf("expected ErrPrivateKeyRange for %v, got %v", d, err)
		}
	}
	k, err := NewPrivate(big.NewInt(1))
	if err != nil {
		t.Fatalf("d=1 must be valid: %v", err)
	}
	if k.X().Cmp(curveGx) != 0 || k.Y().Cmp(curveGy) != 0 {
		t.Fatal("1·G must equal G")
	}
}

func TestGenerateStaysBelowOrder(t *testing.T) {
	src := testSource(t, "generate")
	for i := 0; i < 8; i++ {
		k, err := Generate(src)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if k.D().Cmp(curveN) >= 0 || k.D().Sign() <= 0 {
			t.Fatalf("generated scalar out of range: %x", k.D())
		}
	}
}

func TestCompressUncompressRoundTrip(t *testing.T) {
	src := testSource(t, "compress")
	seenEven, seenOdd := false, false
	for i := 0; i < 16; i++ {
		k, err := Generate(src)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		c := k.Compressed()
		if c.EvenY {
			seenEven = true
		} else {
			seenOdd = true
		}
		u, err := Uncompress(c)
		if err != nil {
			t.Fatalf("uncompress: %v", err)
		}
		if !u.Equal(k) {
			t.Fatal("uncompressed key differs from original")
		}
		if u.HasPrivate() {
			t.Fatal("uncompressed key must be public only")
		}
	}
	if !seenEven || !seenOdd {
		t.Log("sample did not cover both parities")
	}
}

func TestUncompressRejectsInvalidX(t *testing.T) {
	// Roughly half of all x values have no point on the curve.
	for x := int64(0); x < 64; x++ {
		c := CompressedPublic{EvenY: true, X: big.NewInt(x)}
		if new(big.Int).ModSqrt(curveY2(c.X), curveP) != nil {
			continue
		}
		if _, err := Uncompress(c); !errors.Is(err, ErrNotOnCurve) {
			t.Fatalf("expected ErrNotOnCurve for x=%d, got %v", x, err)
		}
		return
	}
	t.Fatal("no non-residue found in sample range")
}

func TestSignVerifyRoundTrip(t *testing.T) {
	src := testSource(t, "sign")
	k, err := Generate(src)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	payload := []byte("certificate body")
	h := digest.Int(payload)
	sig, err := k.SignWith(h, src)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := k.Public().Verify(h, sig)
	if err != nil || !ok {
		t.Fatalf("signature must verify: ok=%v err=%v", ok, err)
	}

	for i := range payload {
		mutated := append([]byte(nil), payload...)
		mutated[i] ^= 0x01
		ok, err := k.Verify(digest.Int(mutated), sig)
		if err != nil {
			t.Fatalf("verify mutated: %v", err)
		}
		if ok {
			t.Fatalf("mutating byte %d must break the signature", i)
		}
	}
}

func TestVerifyRejectsOtherKey(t *testing.T) {
	src := testSource(t, "other")
	a, _ := Generate(src)
	b, _ := Generate(src)
	h := digest.Int([]byte("x"))
	sig, err := a.SignWith(h, src)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := b.Verify(h, sig)
	if err != nil || ok {
		t.Fatalf("foreign key must not verify: ok=%v err=%v", ok, err)
	}
}

func TestSignRequiresPrivateKey(t *testing.T) {
	k, _ := NewPrivate(big.NewInt(12345))
	if _, err := k.Public().Sign(big.NewInt(1), big.NewInt(2)); !errors.Is(err, ErrMissingPrivateKey) {
		t.Fatalf("expected ErrMissingPrivateKey, got %v", err)
	}
	if _, err := k.Sign(big.NewInt(1), Order()); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}
}

func TestVerifyZeroSIsNoSolution(t *testing.T) {
	k, _ := NewPrivate(big.NewInt(777))
	_, err := k.Verify(big.NewInt(1), Signature{R: big.NewInt(5), S: Order()})
	if !errors.Is(err, ErrNoSolution) {
		t.Fatalf("expected ErrNoSolution, got %v", err)
	}
}

func TestModInverse(t *testing.T) {
	inv, err := ModInverse(big.NewInt(3), big.NewInt(11))
	if err != nil || inv.Int64() != 4 {
		t.Fatalf("3⁻¹ mod 11 = 4, got %v %v", inv, err)
	}
	if _, err := ModInverse(big.NewInt(6), big.NewInt(9)); !errors.Is(err, ErrNoSolution) {
		t.Fatalf("expected ErrNoSolution, got %v", err)
	}
}

func TestMnemonicRoundTrip(t *testing.T) {
	k, err := Generate(testSource(t, "mnemonic"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	words, err := Mnemonic(k)
	if err != nil {
		t.Fatalf("mnemonic: %v", err)
	}
	if n := len(strings.Fields(words)); n != 24 {
		t.Fatalf("expected 24 words, got %d", n)
	}
	back, err := FromMnemonic("  " + strings.ReplaceAll(words, " ", "   ") + "\n")
	if err != nil {
		t.Fatalf("from mnemonic: %v", err)
	}
	if back.D().Cmp(k.D()) != 0 {
		t.Fatal("mnemonic round trip changed the scalar")
	}
	if _, err := Mnemonic(k.Public()); !errors.Is(err, ErrMissingPrivateKey) {
		t.Fatalf("expected ErrMissingPrivateKey, got %v", err)
	}
}
