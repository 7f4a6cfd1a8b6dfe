package certificate

import "strings"

// UseCase is the permission bitmask carried on the wire as a single byte.
// Bits 3-7 are reserved and ignored by verification.
type UseCase uint8

const (
	CreatePermanentPasses   UseCase = 1 << 0
	CreateTimeLimitedPasses UseCase = 1 << 1
	// CreateCertificates lets the holder issue further certificates. Grant it
	// only to trusted parties.
	CreateCertificates UseCase = 1 << 2

	passUseCases = CreatePermanentPasses | CreateTimeLimitedPasses
)

func (u UseCase) Has(flag UseCase) bool { return u&flag != 0 }

func (u UseCase) CanCreatePermanentPasses() bool { return u.Has(CreatePermanentPasses) }

func (u UseCase) CanCreateTimedPasses() bool { return u.Has(CreateTimeLimitedPasses) }

func (u UseCase) CanSignCertificates() bool { return u.Has(CreateCertificates) }

func (u UseCase) String() string {
	var parts []string
	if u.CanCreatePermanentPasses() {
		parts = append(parts, "permanent-passes")
	}
	if u.CanCreateTimedPasses() {
		parts = append(parts, "timed-passes")
	}
	if u.CanSignCertificates() {
		parts = append(parts, "certificates")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseUseCases accepts the names produced by String, separated by '|' or ','.
func ParseUseCases(raw string) (UseCase, bool) {
	var out UseCase
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.TrimSpace(part) {
		case "permanent-passes":
			out |= CreatePermanentPasses
		case "timed-passes":
			out |= CreateTimeLimitedPasses
		case "certificates":
			out |= CreateCertificates
		case "none", "":
		default:
			return 0, false
		}
	}
	return out, true
}

// inherits reports whether the pass-creation bits of child are a subset of
// parent's. CreateCertificates is not part of the check.
func inherits(child, parent UseCase) bool {
	return child&passUseCases&^parent == 0
}
