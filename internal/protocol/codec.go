package protocol

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58/base58"

	"entrypass/go-core/internal/certificate"
	"entrypass/go-core/internal/codec"
	"entrypass/go-core/internal/pass"
)

func newFrame(t MessageType, sizeHint int) *codec.Writer {
	w := codec.NewWriter(sizeHint)
	_, _ = w.Write(Magic[:])
	_ = w.WriteByte(header(t, false))
	return w
}

func EncodeRequestUserInfo() ([]byte, error) {
	return newFrame(RequestUserInfo, headerSize).Bytes()
}

func EncodeRequestPassCreation(info pass.UserInformation) ([]byte, error) {
	w := newFrame(RequestPassCreation, 128)
	info.Encode(w)
	return w.Bytes()
}

func EncodePassImport(p *pass.Pass) ([]byte, error) {
	return encodePass(PassImport, p)
}

func EncodePassShow(p *pass.Pass) ([]byte, error) {
	return encodePass(PassShow, p)
}

func encodePass(t MessageType, p *pass.Pass) ([]byte, error) {
	if p == nil {
		return nil, ErrNilPayload
	}
	w := newFrame(t, 256)
	if err := p.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// EncodeRequestRootTrust frames a root certificate. The certificate must have
// no parent and already carry a valid self-signature.
func EncodeRequestRootTrust(root *certificate.Certificate) ([]byte, error) {
	if root == nil {
		return nil, ErrNilPayload
	}
	if root.Parent != nil {
		return nil, ErrRootHasParent
	}
	if !root.SelfSigned() {
		return nil, ErrRootNotSelfSigned
	}
	w := newFrame(RequestRootTrust, 128)
	if err := root.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes()
}

func EncodeCustom(payload []byte) ([]byte, error) {
	w := newFrame(Custom, headerSize+len(payload))
	_, _ = w.Write(payload)
	return w.Bytes()
}

// Decode parses a frame. A missing tag or an unknown message type is reported
// as ok == false with a nil error. A recognized frame with a broken payload
// is an error.
func Decode(data []byte) (Message, bool, error) {
	if len(data) < headerSize || !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return Message{}, false, nil
	}
	t, compressed := parseHeader(data[len(Magic)])
	if !t.known() {
		return Message{}, false, nil
	}
	msg := Message{Type: t, Compressed: compressed}
	r := codec.NewReader(data[headerSize:])

	switch t {
	case RequestUserInfo:
	case RequestPassCreation:
		info, err := pass.DecodeUserInformation(r)
		if err != nil {
			return Message{}, true, fmt.Errorf("decode %s: %w", t, err)
		}
		msg.UserInfo = &info
	case PassImport, PassShow:
		p, err := pass.Decode(r)
		if err != nil {
			return Message{}, true, fmt.Errorf("decode %s: %w", t, err)
		}
		msg.Pass = p
	case RequestRootTrust:
		c, err := certificate.Decode(r)
		if err != nil {
			return Message{}, true, fmt.Errorf("decode %s: %w", t, err)
		}
		msg.Certificate = c
	case Custom:
		msg.Payload = append([]byte(nil), data[headerSize:]...)
		return msg, true, nil
	}
	if !r.EOF() {
		return Message{}, true, fmt.Errorf("decode %s: %w: %d bytes", t, ErrTrailingData, r.Remaining())
	}
	return msg, true, nil
}

// EncodeText renders a frame as base58 for text-mode QR codes and copy/paste.
func EncodeText(frame []byte) string {
	return base58.Encode(frame)
}

func DecodeText(text string) ([]byte, error) {
	return base58.Decode(text)
}
