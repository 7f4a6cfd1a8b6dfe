// Package pass implements entry passes: user information bound to an expiry
// and signed by the key of an issuing certificate.
package pass

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"entrypass/go-core/internal/certificate"
	"entrypass/go-core/internal/codec"
	"entrypass/go-core/internal/digest"
	"entrypass/go-core/internal/keys"
	"entrypass/go-core/internal/randsource"
)

const (
	keySize       = 32
	signatureSize = 64
)

var (
	ErrKeyMismatch        = errors.New("provided key does not match with certificate public key")
	ErrMissingCertificate = errors.New("pass has no issuer certificate")
	ErrMalformed          = errors.New("malformed pass")
	ErrTrailingData       = errors.New("trailing data after pass")
)

type Pass struct {
	Certificate *certificate.Certificate
	Info        UserInformation
	// ExpireOn is a unix timestamp in milliseconds. 0 marks a permanent pass.
	ExpireOn  int64
	Signature keys.Signature
}

// New returns an unsigned pass issued under cert. A zero expireOn makes the
// pass permanent.
func New(cert *certificate.Certificate, info UserInformation, expireOn time.Time) *Pass {
	p := &Pass{Certificate: cert, Info: info}
	if !expireOn.IsZero() {
		p.ExpireOn = expireOn.UnixMilli()
	}
	return p
}

func (p *Pass) IsPermanent() bool { return p.ExpireOn == 0 }

func (p *Pass) ExpiresAt() time.Time {
	if p.IsPermanent() {
		return time.Time{}
	}
	return time.UnixMilli(p.ExpireOn).UTC()
}

func (p *Pass) expiredAt(nowMS int64) bool {
	return !p.IsPermanent() && nowMS > p.ExpireOn
}

// Encode appends the canonical encoding of p to w.
func (p *Pass) Encode(w *codec.Writer) error {
	if p.Certificate == nil {
		return ErrMissingCertificate
	}
	if err := p.Certificate.Encode(w); err != nil {
		return err
	}
	p.Info.Encode(w)
	w.WriteUint(uint64(p.ExpireOn), 8)
	w.WriteBigInt(zeroIfNil(p.Signature.R), keySize)
	w.WriteBigInt(zeroIfNil(p.Signature.S), keySize)
	return nil
}

// Decode reads one pass from r.
func Decode(r *codec.Reader) (*Pass, error) {
	cert, err := certificate.Decode(r)
	if err != nil {
		return nil, err
	}
	info, err := DecodeUserInformation(r)
	if err != nil {
		return nil, err
	}
	expire, err := r.ReadUint(8)
	if err != nil {
		return nil, fmt.Errorf("%w: expiry: %v", ErrMalformed, err)
	}
	sr, err := r.ReadBigInt(keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	ss, err := r.ReadBigInt(keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	return &Pass{
		Certificate: cert,
		Info:        info,
		ExpireOn:    int64(expire),
		Signature:   keys.Signature{R: sr, S: ss},
	}, nil
}

func (p *Pass) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(256)
	if err := p.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes()
}

func (p *Pass) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data)
	decoded, err := Decode(r)
	if err != nil {
		return err
	}
	if !r.EOF() {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Remaining())
	}
	*p = *decoded
	return nil
}

// Parse decodes a complete pass encoding.
func Parse(data []byte) (*Pass, error) {
	p := &Pass{}
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}

// SigningBytes is the canonical encoding without the trailing signature.
func (p *Pass) SigningBytes() ([]byte, error) {
	raw, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return raw[:len(raw)-signatureSize], nil
}

func (p *Pass) Digest() (*big.Int, error) {
	raw, err := p.SigningBytes()
	if err != nil {
		return nil, err
	}
	return digest.Int(raw), nil
}

// Sign signs p with the private key belonging to its issuer certificate.
func (p *Pass) Sign(key *keys.Key, src randsource.Source) error {
	if p.Certificate == nil {
		return ErrMissingCertificate
	}
	issuer, err := p.Certificate.Key()
	if err != nil {
		return err
	}
	if !key.Equal(issuer) {
		return ErrKeyMismatch
	}
	h, err := p.Digest()
	if err != nil {
		return err
	}
	sig, err := key.SignWith(h, src)
	if err != nil {
		return err
	}
	p.Signature = sig
	return nil
}

// Verify checks p and its issuer chain against the current wall clock.
func (p *Pass) Verify() certificate.Result {
	return p.VerifyAt(time.Now())
}

// VerifyAt checks the issuer chain first and reports its failure unchanged.
func (p *Pass) VerifyAt(now time.Time) certificate.Result {
	if p.Certificate == nil {
		return fail("the pass has no issuer certificate")
	}
	if res := p.Certificate.VerifyAt(now); !res.Success {
		return res
	}
	if p.expiredAt(now.UnixMilli()) {
		return fail("the pass is expired")
	}
	if p.IsPermanent() && !p.Certificate.UseCases.CanCreatePermanentPasses() {
		return fail("the issuer doesn't have permission to create permanent passes")
	}
	if p.ExpireOn > p.Certificate.ExpireOn {
		return fail("the pass lifetime is longer than issuer's certificate lifetime")
	}

	issuer, err := p.Certificate.Key()
	if err != nil {
		return signatureError(err)
	}
	h, err := p.Digest()
	if err != nil {
		return signatureError(err)
	}
	ok, err := issuer.Verify(h, p.Signature)
	if err != nil {
		return signatureError(err)
	}
	if !ok {
		return fail("signature check failed")
	}
	return certificate.Result{Success: true, Reason: fmt.Sprintf("pass: signed by '%s'", p.Certificate.Name)}
}

func fail(reason string) certificate.Result {
	return certificate.Result{Reason: "pass: " + reason}
}

func signatureError(err error) certificate.Result {
	return certificate.Result{Reason: "error occurred while verifying signature: " + err.Error()}
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
