// Package protocol frames certificates, passes and user information for
// transfer between devices, typically through QR codes.
//
// Every frame starts with the 4-byte tag "EPAS" followed by a header byte:
// bit 7 is the compressed flag, bits 0-3 carry the message type.
package protocol

import (
	"errors"
	"fmt"

	"entrypass/go-core/internal/certificate"
	"entrypass/go-core/internal/pass"
)

type MessageType uint8

const (
	// RequestUserInfo asks the peer for its user information. No payload.
	RequestUserInfo MessageType = 0x0
	// RequestPassCreation carries the user information a pass should be issued for.
	RequestPassCreation MessageType = 0x1
	PassImport          MessageType = 0x2
	// PassShow presents a pass to a verifier.
	PassShow MessageType = 0x3
	// RequestRootTrust offers a self-signed root certificate to a verifier.
	RequestRootTrust MessageType = 0x4
	// Custom payloads are opaque to this package.
	Custom MessageType = 0xF
)

const (
	headerSize     = 5
	compressedFlag = 0x80
	typeMask       = 0x0F
)

var Magic = [4]byte{'E', 'P', 'A', 'S'}

var (
	ErrNilPayload        = errors.New("message payload is missing")
	ErrRootHasParent     = errors.New("root trust request needs a certificate without parent")
	ErrRootNotSelfSigned = errors.New("root trust request needs a self-signed certificate")
	ErrTrailingData      = errors.New("trailing data after message payload")
)

func (t MessageType) String() string {
	switch t {
	case RequestUserInfo:
		return "request-user-info"
	case RequestPassCreation:
		return "request-pass-creation"
	case PassImport:
		return "pass-import"
	case PassShow:
		return "pass-show"
	case RequestRootTrust:
		return "request-root-trust"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("unknown(0x%x)", uint8(t))
	}
}

func (t MessageType) known() bool {
	return t <= RequestRootTrust || t == Custom
}

// Message is a decoded frame. Only the field matching Type is set.
type Message struct {
	Type MessageType
	// Compressed mirrors the header flag. No compression layer exists yet, so
	// payloads are always read as plain encodings.
	Compressed  bool
	UserInfo    *pass.UserInformation
	Pass        *pass.Pass
	Certificate *certificate.Certificate
	Payload     []byte
}

func header(t MessageType, compressed bool) byte {
	h := byte(t) & typeMask
	if compressed {
		h |= compressedFlag
	}
	return h
}

func parseHeader(b byte) (MessageType, bool) {
	return MessageType(b & typeMask), b&compressedFlag != 0
}
