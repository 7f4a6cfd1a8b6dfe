package certificate

import (
	"bytes"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"entrypass/go-core/internal/codec"
	"entrypass/go-core/internal/keys"
	"entrypass/go-core/internal/randsource"
)

var testNow = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

func testSource(t *testing.T) randsource.Source {
	t.Helper()
	src, err := randsource.NewDeterministic([]byte("certificate-test"), t.Name())
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	return src
}

func mustKey(t *testing.T, src randsource.Source) *keys.Key {
	t.Helper()
	k, err := keys.Generate(src)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k
}

func mustRoot(t *testing.T, src randsource.Source, useCases UseCase, expire time.Time) (*Certificate, *keys.Key) {
	t.Helper()
	k := mustKey(t, src)
	c := New(nil, k.Compressed(), "root", useCases, expire)
	if err := c.Sign(k, src); err != nil {
		t.Fatalf("sign root: %v", err)
	}
	return c, k
}

func mustChild(t *testing.T, src randsource.Source, parent *Certificate, parentKey *keys.Key, name string, useCases UseCase, expire time.Time) (*Certificate, *keys.Key) {
	t.Helper()
	k := mustKey(t, src)
	c := New(parent, k.Compressed(), name, useCases, expire)
	if err := c.Sign(parentKey, src); err != nil {
		t.Fatalf("sign %s: %v", name, err)
	}
	return c, k
}

func expectFailure(t *testing.T, res Result, fragment string) {
	t.Helper()
	if res.Success {
		t.Fatalf("expected failure containing %q, got success: %s", fragment, res.Reason)
	}
	if !strings.Contains(res.Reason, fragment) {
		t.Fatalf("expected reason containing %q, got %q", fragment, res.Reason)
	}
}

func TestRootAndChildVerify(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates|CreatePermanentPasses, testNow.Add(48*time.Hour))
	if res := root.VerifyAt(testNow); !res.Success {
		t.Fatalf("root must verify: %s", res.Reason)
	}
	child, _ := mustChild(t, src, root, rootKey, "issuer", CreatePermanentPasses, testNow.Add(24*time.Hour))
	if res := child.VerifyAt(testNow); !res.Success {
		t.Fatalf("child must verify: %s", res.Reason)
	}
	if child.Root() != root {
		t.Fatal("root of child must be the root certificate")
	}
	if child.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", child.Depth())
	}
}

func TestVerifyUsesWallClock(t *testing.T) {
	src := testSource(t)
	root, _ := mustRoot(t, src, CreateCertificates, time.Now().Add(time.Hour))
	if res := root.Verify(); !res.Success {
		t.Fatalf("root must verify against the wall clock: %s", res.Reason)
	}
}

func TestSignRejectsWrongKey(t *testing.T) {
	src := testSource(t)
	owner := mustKey(t, src)
	stranger := mustKey(t, src)
	root := New(nil, owner.Compressed(), "root", CreateCertificates, testNow.Add(time.Hour))
	if err := root.Sign(stranger, src); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}
	if err := root.Sign(owner, src); err != nil {
		t.Fatalf("self sign: %v", err)
	}
	child := New(root, stranger.Compressed(), "child", 0, testNow.Add(time.Hour))
	if err := child.Sign(stranger, src); !errors.Is(err, ErrParentKeyMismatch) {
		t.Fatalf("expected ErrParentKeyMismatch, got %v", err)
	}
	if err := child.Sign(owner.Public(), src); !errors.Is(err, keys.ErrMissingPrivateKey) {
		t.Fatalf("expected ErrMissingPrivateKey, got %v", err)
	}
}

func TestExpiredCertificateFails(t *testing.T) {
	src := testSource(t)
	root, _ := mustRoot(t, src, CreateCertificates, testNow.Add(-time.Minute))
	expectFailure(t, root.VerifyAt(testNow), "expired")
}

func TestUnsignedCertificateFails(t *testing.T) {
	src := testSource(t)
	k := mustKey(t, src)
	c := New(nil, k.Compressed(), "root", CreateCertificates, testNow.Add(time.Hour))
	expectFailure(t, c.VerifyAt(testNow), "no signature")
}

func TestChildLifetimeMustNotExceedParent(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates|CreatePermanentPasses, testNow.Add(time.Hour))
	child, _ := mustChild(t, src, root, rootKey, "long", CreatePermanentPasses, testNow.Add(2*time.Hour))
	expectFailure(t, child.VerifyAt(testNow), "longer lifetime than parent")
}

func TestParentFailurePropagatesVerbatim(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates, testNow.Add(time.Hour))
	child, _ := mustChild(t, src, root, rootKey, "child", 0, testNow.Add(time.Hour))
	later := testNow.Add(30 * time.Minute)
	root.Signature = keys.Signature{}
	rootRes := root.VerifyAt(later)
	childRes := child.VerifyAt(later)
	if childRes != rootRes {
		t.Fatalf("child must report parent failure unchanged: %+v vs %+v", childRes, rootRes)
	}
	expectFailure(t, childRes, "'root': no signature")
}

func TestParentNeedsCertificatePermission(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreatePermanentPasses, testNow.Add(time.Hour))
	child, _ := mustChild(t, src, root, rootKey, "child", CreatePermanentPasses, testNow.Add(time.Hour))
	expectFailure(t, child.VerifyAt(testNow), "no permission to sign other certificates")
}

func TestPermissionInheritance(t *testing.T) {
	cases := []struct {
		name    string
		parent  UseCase
		child   UseCase
		success bool
	}{
		{"permanent without parent bit", CreateCertificates | CreateTimeLimitedPasses, CreatePermanentPasses, false},
		{"timed without parent bit", CreateCertificates | CreatePermanentPasses, CreateTimeLimitedPasses, false},
		{"subset", CreateCertificates | CreatePermanentPasses | CreateTimeLimitedPasses, CreateTimeLimitedPasses, true},
		{"certificate bit is not inherited", CreateCertificates, CreateCertificates, true},
		{"reserved bits ignored", CreateCertificates, UseCase(0xf8), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := testSource(t)
			root, rootKey := mustRoot(t, src, tc.parent, testNow.Add(time.Hour))
			child, _ := mustChild(t, src, root, rootKey, "child", tc.child, testNow.Add(time.Hour))
			res := child.VerifyAt(testNow)
			if tc.success && !res.Success {
				t.Fatalf("expected success, got %s", res.Reason)
			}
			if !tc.success {
				expectFailure(t, res, "permissions inheritance check failed")
			}
		})
	}
}

func TestTamperedCertificateFailsSignature(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates|CreatePermanentPasses, testNow.Add(time.Hour))
	child, _ := mustChild(t, src, root, rootKey, "issuer", CreatePermanentPasses, testNow.Add(time.Hour))
	child.Name = "issuer2"
	expectFailure(t, child.VerifyAt(testNow), "signature invalid")

	root.Name = "evil root"
	expectFailure(t, root.VerifyAt(testNow), "root certificate signature invalid")
}

func TestUninvertibleSignatureBecomesFailure(t *testing.T) {
	src := testSource(t)
	root, _ := mustRoot(t, src, CreateCertificates, testNow.Add(time.Hour))
	root.Signature = keys.Signature{R: big.NewInt(1), S: keys.Order()}
	expectFailure(t, root.VerifyAt(testNow), "error occurred while verifying signature: no solution")
}

func TestInvalidParentKeyBecomesFailure(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates, testNow.Add(time.Hour))
	child, _ := mustChild(t, src, root, rootKey, "child", 0, testNow.Add(time.Hour))
	for x := int64(0); x < 64; x++ {
		if _, err := keys.Uncompress(keys.CompressedPublic{EvenY: true, X: big.NewInt(x)}); err != nil {
			root.PublicKey = keys.CompressedPublic{EvenY: true, X: big.NewInt(x)}
			break
		}
	}
	expectFailure(t, child.VerifyAt(testNow), "error occurred while verifying signature")
}

func TestBinaryRoundTrip(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates|CreatePermanentPasses, testNow.Add(time.Hour))
	child, _ := mustChild(t, src, root, rootKey, "Cửa hàng 🚪", CreatePermanentPasses, testNow.Add(time.Hour))

	raw, err := child.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assertSameCertificate(t, decoded, child)
	if res := decoded.VerifyAt(testNow); !res.Success {
		t.Fatalf("decoded certificate must verify: %s", res.Reason)
	}
	again, err := decoded.MarshalBinary()
	if err != nil || !bytes.Equal(again, raw) {
		t.Fatalf("re-encoding must be byte identical: %v", err)
	}
}

func assertSameCertificate(t *testing.T, got, want *Certificate) {
	t.Helper()
	for got != nil && want != nil {
		if got.Name != want.Name || got.UseCases != want.UseCases || got.ExpireOn != want.ExpireOn {
			t.Fatalf("field mismatch: %+v vs %+v", got, want)
		}
		if !got.PublicKey.Equal(want.PublicKey) {
			t.Fatal("public key mismatch")
		}
		if !got.Signature.Equal(want.Signature) {
			t.Fatal("signature mismatch")
		}
		got, want = got.Parent, want.Parent
	}
	if got != nil || want != nil {
		t.Fatal("chain length mismatch")
	}
}

func TestEncodingLayout(t *testing.T) {
	c := &Certificate{
		PublicKey: keys.CompressedPublic{EvenY: true, X: big.NewInt(0x0102)},
		Name:      "ab",
		UseCases:  CreateCertificates,
		ExpireOn:  0x0a0b,
		Signature: keys.Signature{R: big.NewInt(3), S: big.NewInt(4)},
	}
	raw, err := c.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(raw) != 1+1+32+1+2+1+8+64 {
		t.Fatalf("unexpected encoding length %d", len(raw))
	}
	if raw[0] != 0 || raw[1] != 1 || raw[2] != 0x02 || raw[3] != 0x01 {
		t.Fatalf("unexpected header bytes %x", raw[:4])
	}
	if raw[34] != 2 || string(raw[35:37]) != "ab" || raw[37] != 0x04 {
		t.Fatalf("unexpected name/use case bytes %x", raw[34:38])
	}
	if raw[38] != 0x0b || raw[39] != 0x0a {
		t.Fatalf("expiry must be little-endian: %x", raw[38:46])
	}
	if raw[46] != 3 || raw[78] != 4 {
		t.Fatal("signature must follow expiry")
	}
	signing, err := c.SigningBytes()
	if err != nil || !bytes.Equal(signing, raw[:len(raw)-64]) {
		t.Fatalf("signing bytes must strip the signature: %v", err)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	src := testSource(t)
	root, _ := mustRoot(t, src, CreateCertificates, testNow.Add(time.Hour))
	raw, err := root.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Parse(raw[:len(raw)-1]); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated input, got %v", err)
	}
	if _, err := Parse(append(append([]byte(nil), raw...), 0)); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
	bad := append([]byte(nil), raw...)
	bad[0] = 7
	if _, err := Parse(bad); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for bad flag, got %v", err)
	}
	if _, err := Parse(nil); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty input, got %v", err)
	}
}

func TestDecodeBoundsChainDepth(t *testing.T) {
	raw := bytes.Repeat([]byte{1}, MaxChainDepth+1)
	if _, err := Decode(codec.NewReader(raw)); !errors.Is(err, ErrChainTooDeep) {
		t.Fatalf("expected ErrChainTooDeep, got %v", err)
	}
}

func TestCyclicChainIsDetected(t *testing.T) {
	src := testSource(t)
	root, _ := mustRoot(t, src, CreateCertificates, testNow.Add(time.Hour))
	root.Parent = root
	expectFailure(t, root.VerifyAt(testNow), "cycle")
	if _, err := root.MarshalBinary(); !errors.Is(err, ErrChainCycle) {
		t.Fatalf("expected ErrChainCycle, got %v", err)
	}
	if root.Root() != nil {
		t.Fatal("cyclic chain has no root")
	}
}

func TestEquivalentComparesDigests(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates, testNow.Add(time.Hour))
	copyOf := *root
	if err := copyOf.Sign(rootKey, src); err != nil {
		t.Fatalf("re-sign: %v", err)
	}
	if copyOf.Signature.Equal(root.Signature) {
		t.Fatal("fresh nonce must give a fresh signature")
	}
	if !Equivalent(root, &copyOf) {
		t.Fatal("re-signed certificate must be equivalent")
	}
	copyOf.Name = "other"
	if Equivalent(root, &copyOf) {
		t.Fatal("renamed certificate must not be equivalent")
	}
	if Equivalent(root, nil) || !Equivalent(nil, nil) {
		t.Fatal("nil handling")
	}
}

func TestFingerprintAndView(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates|CreateTimeLimitedPasses, testNow.Add(time.Hour))
	child, _ := mustChild(t, src, root, rootKey, "child", CreateTimeLimitedPasses, testNow.Add(time.Hour))
	fp, err := root.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if !strings.HasPrefix(fp, "cert1") {
		t.Fatalf("unexpected fingerprint %q", fp)
	}
	v := child.View()
	if v.Parent == nil || v.Parent.Fingerprint != fp {
		t.Fatal("view must embed the parent with its fingerprint")
	}
	if v.Permissions != "timed-passes" {
		t.Fatalf("unexpected permissions %q", v.Permissions)
	}
	raw, err := child.MarshalJSON()
	if err != nil || !bytes.Contains(raw, []byte(`"name":"child"`)) {
		t.Fatalf("json: %s %v", raw, err)
	}
}

func TestParseUseCases(t *testing.T) {
	u, ok := ParseUseCases("certificates|permanent-passes")
	if !ok || u != CreateCertificates|CreatePermanentPasses {
		t.Fatalf("unexpected parse result %v %v", u, ok)
	}
	if _, ok := ParseUseCases("admin"); ok {
		t.Fatal("unknown names must be rejected")
	}
	if u.String() != "permanent-passes|certificates" {
		t.Fatalf("unexpected string %q", u.String())
	}
}

func TestSelfSigned(t *testing.T) {
	src := testSource(t)
	root, rootKey := mustRoot(t, src, CreateCertificates, testNow.Add(-time.Hour))
	if !root.SelfSigned() {
		t.Fatal("expired root still carries a self-signature")
	}
	child, _ := mustChild(t, src, root, rootKey, "child", 0, testNow.Add(-time.Hour))
	if child.SelfSigned() {
		t.Fatal("a certificate with a parent is never self-signed")
	}
	root.Name = "changed"
	if root.SelfSigned() {
		t.Fatal("modified root must not report a self-signature")
	}
}
