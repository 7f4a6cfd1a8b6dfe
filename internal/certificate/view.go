package certificate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

const fingerprintPrefix = "cert1"

// View is the human-readable JSON form of a certificate chain.
type View struct {
	Parent      *View     `json:"parent"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	PublicKey   [2]any    `json:"public_key"`
	Name        string    `json:"name"`
	UseCases    uint8     `json:"use_cases"`
	Permissions string    `json:"permissions"`
	ExpireOn    int64     `json:"expire_on"`
	Signature   [2]string `json:"signature"`
}

func (c *Certificate) View() View {
	v := View{
		PublicKey:   [2]any{c.PublicKey.EvenY, hexInt(c.PublicKey.X)},
		Name:        c.Name,
		UseCases:    uint8(c.UseCases),
		Permissions: c.UseCases.String(),
		ExpireOn:    c.ExpireOn,
		Signature:   [2]string{hexInt(c.Signature.R), hexInt(c.Signature.S)},
	}
	if fp, err := c.Fingerprint(); err == nil {
		v.Fingerprint = fp
	}
	if c.Parent != nil && c.Depth() <= MaxChainDepth {
		parent := c.Parent.View()
		v.Parent = &parent
	}
	return v
}

func (c *Certificate) MarshalJSON() ([]byte, error) {
	if c.Depth() > MaxChainDepth {
		return nil, ErrChainTooDeep
	}
	return json.Marshal(c.View())
}

// Fingerprint identifies a certificate by the blake2b-256 hash of its signing
// bytes, so re-signing the same content keeps the fingerprint.
func (c *Certificate) Fingerprint() (string, error) {
	raw, err := c.SigningBytes()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return fingerprintPrefix + base58.Encode(sum[:]), nil
}

func hexInt(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return fmt.Sprintf("0x%s", v.Text(16))
}
