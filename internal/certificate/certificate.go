// Package certificate implements the chain-of-trust node used to authorize
// pass issuers. Each certificate embeds its parent and is signed by the
// parent's key; a root certificate signs itself.
package certificate

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"entrypass/go-core/internal/digest"
	"entrypass/go-core/internal/keys"
	"entrypass/go-core/internal/randsource"
)

var (
	ErrKeyMismatch       = errors.New("provided public key does not match with this certificate")
	ErrParentKeyMismatch = errors.New("provided public key does not match with parent certificate public key")
)

type Certificate struct {
	Parent    *Certificate
	PublicKey keys.CompressedPublic
	Name      string
	UseCases  UseCase
	// ExpireOn is a unix timestamp in milliseconds.
	ExpireOn  int64
	Signature keys.Signature
}

// Result is the outcome of a verification. Verification never returns errors.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

// New returns an unsigned certificate for pub.
func New(parent *Certificate, pub keys.CompressedPublic, name string, useCases UseCase, expireOn time.Time) *Certificate {
	return &Certificate{
		Parent:    parent,
		PublicKey: pub,
		Name:      name,
		UseCases:  useCases,
		ExpireOn:  expireOn.UnixMilli(),
	}
}

func (c *Certificate) ExpiresAt() time.Time { return time.UnixMilli(c.ExpireOn).UTC() }

func (c *Certificate) HasSignature() bool { return !c.Signature.IsZero() }

// Key decompresses the certificate public key.
func (c *Certificate) Key() (*keys.Key, error) {
	return keys.Uncompress(c.PublicKey)
}

// Digest hashes the signing bytes of c.
func (c *Certificate) Digest() (*big.Int, error) {
	raw, err := c.SigningBytes()
	if err != nil {
		return nil, err
	}
	return digest.Int(raw), nil
}

// Sign signs c with key. A root certificate must be signed with its own key,
// any other with its parent's key. Fields must not change after signing.
func (c *Certificate) Sign(key *keys.Key, src randsource.Source) error {
	h, err := c.Digest()
	if err != nil {
		return err
	}
	if c.Parent == nil {
		own, err := c.Key()
		if err != nil {
			return err
		}
		if !key.Equal(own) {
			return ErrKeyMismatch
		}
	} else {
		parentKey, err := c.Parent.Key()
		if err != nil {
			return err
		}
		if !key.Equal(parentKey) {
			return ErrParentKeyMismatch
		}
	}
	sig, err := key.SignWith(h, src)
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// Verify checks the chain against the current wall clock.
func (c *Certificate) Verify() Result {
	return c.VerifyAt(time.Now())
}

// VerifyAt checks the chain as of now. The first failure found, walking from
// c towards the root, is reported unchanged.
func (c *Certificate) VerifyAt(now time.Time) Result {
	return c.verify(now.UnixMilli(), 0, map[*Certificate]struct{}{})
}

func (c *Certificate) verify(nowMS int64, depth int, seen map[*Certificate]struct{}) Result {
	if depth >= MaxChainDepth {
		return c.fail("certificate chain too deep")
	}
	if _, ok := seen[c]; ok {
		return c.fail("certificate chain contains a cycle")
	}
	seen[c] = struct{}{}

	if nowMS > c.ExpireOn {
		return c.fail("expired")
	}
	if !c.HasSignature() {
		return c.fail("no signature")
	}

	if c.Parent == nil {
		own, err := c.Key()
		if err != nil {
			return signatureError(err)
		}
		return c.checkSignature(own, "root certificate signature")
	}

	if c.ExpireOn > c.Parent.ExpireOn {
		return c.fail("this certificate has longer lifetime than parent certificate")
	}
	if res := c.Parent.verify(nowMS, depth+1, seen); !res.Success {
		return res
	}
	if !c.Parent.UseCases.CanSignCertificates() {
		return c.Parent.fail("no permission to sign other certificates")
	}
	if !inherits(c.UseCases, c.Parent.UseCases) {
		return c.fail("permissions inheritance check failed")
	}
	parentKey, err := c.Parent.Key()
	if err != nil {
		return signatureError(err)
	}
	return c.checkSignature(parentKey, "signature")
}

func (c *Certificate) checkSignature(key *keys.Key, label string) Result {
	h, err := c.Digest()
	if err != nil {
		return signatureError(err)
	}
	ok, err := key.Verify(h, c.Signature)
	if err != nil {
		return signatureError(err)
	}
	if !ok {
		return c.fail(label + " invalid")
	}
	return Result{Success: true, Reason: fmt.Sprintf("certificate '%s': %s valid", c.Name, label)}
}

func (c *Certificate) fail(reason string) Result {
	return Result{Reason: fmt.Sprintf("certificate '%s': %s", c.Name, reason)}
}

func signatureError(err error) Result {
	return Result{Reason: "error occurred while verifying signature: " + err.Error()}
}

// SelfSigned reports whether c is a root carrying a valid signature by its
// own key. Expiry is not checked.
func (c *Certificate) SelfSigned() bool {
	if c.Parent != nil || !c.HasSignature() {
		return false
	}
	own, err := c.Key()
	if err != nil {
		return false
	}
	return c.checkSignature(own, "root certificate signature").Success
}

// Root walks the parent chain to the parentless certificate. It returns nil
// if the chain is cyclic or deeper than MaxChainDepth.
func (c *Certificate) Root() *Certificate {
	cur := c
	for i := 0; i < MaxChainDepth; i++ {
		if cur.Parent == nil {
			return cur
		}
		cur = cur.Parent
	}
	return nil
}

// Depth returns the number of certificates in the chain ending at c.
func (c *Certificate) Depth() int {
	n := 0
	for cur := c; cur != nil && n <= MaxChainDepth; cur = cur.Parent {
		n++
	}
	return n
}

// Equivalent compares two certificates by the digest of their signing bytes.
func Equivalent(a, b *Certificate) bool {
	if a == nil || b == nil {
		return a == b
	}
	da, err := a.Digest()
	if err != nil {
		return false
	}
	db, err := b.Digest()
	if err != nil {
		return false
	}
	return da.Cmp(db) == 0
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
