package pass

import (
	"encoding/json"
	"math/big"

	"entrypass/go-core/internal/certificate"
)

// View is the human-readable JSON form of a pass.
type View struct {
	User        UserInformation   `json:"user"`
	Certificate *certificate.View `json:"certificate"`
	ExpireOn    int64             `json:"expire_on"`
	Permanent   bool              `json:"permanent"`
	Signature   [2]string         `json:"signature"`
}

func (p *Pass) View() View {
	v := View{
		User:      p.Info,
		ExpireOn:  p.ExpireOn,
		Permanent: p.IsPermanent(),
		Signature: [2]string{hexString(p.Signature.R), hexString(p.Signature.S)},
	}
	if p.Certificate != nil {
		cv := p.Certificate.View()
		v.Certificate = &cv
	}
	return v
}

func (p *Pass) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.View())
}

func hexString(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return "0x" + v.Text(16)
}
