package pass

import (
	"fmt"
	"log/slog"
	"math/big"

	"entrypass/go-core/internal/codec"
	"entrypass/go-core/internal/digest"
	"entrypass/go-core/internal/randsource"
)

const (
	DefaultGender              = "undefined"
	DefaultCountry             = "international"
	DefaultSocialID            = "00000-00000-00000-00000"
	DefaultRegionalPhoneNumber = "+0 (000) 0000-000"

	anonymousNameBytes = 16
)

// UserInformation describes the pass holder. Every field may be left at its
// default when the verifier does not need it.
type UserInformation struct {
	Name    string `json:"name"`
	Gender  string `json:"gender"`
	Country string `json:"country"`
	// BirthTime is a unix timestamp in milliseconds, 0 when unknown.
	BirthTime           int64  `json:"birth_time"`
	SocialID            string `json:"social_id"`
	RegionalPhoneNumber string `json:"regional_phone_number"`
	ImageURL            string `json:"image_url"`
}

// LogValue exposes the holder fields under their wire names. privacylog
// fingerprints or redacts every one of them.
func (u UserInformation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", u.Name),
		slog.String("gender", u.Gender),
		slog.String("country", u.Country),
		slog.Int64("birth_time", u.BirthTime),
		slog.String("social_id", u.SocialID),
		slog.String("regional_phone_number", u.RegionalPhoneNumber),
		slog.String("image_url", u.ImageURL),
	)
}

// NewUserInformation fills empty fields of info with defaults. An empty name
// becomes a random "0x..." handle drawn from an insecure source.
func NewUserInformation(info UserInformation) UserInformation {
	if info.Name == "" {
		info.Name = anonymousName(randsource.NewInsecureFromTime())
	}
	if info.Gender == "" {
		info.Gender = DefaultGender
	}
	if info.Country == "" {
		info.Country = DefaultCountry
	}
	if info.SocialID == "" {
		info.SocialID = DefaultSocialID
	}
	if info.RegionalPhoneNumber == "" {
		info.RegionalPhoneNumber = DefaultRegionalPhoneNumber
	}
	return info
}

func anonymousName(src randsource.Source) string {
	v, err := randsource.BigInt(src, anonymousNameBytes)
	if err != nil {
		v = new(big.Int)
	}
	return fmt.Sprintf("0x%s", v.Text(16))
}

// Encode appends the canonical encoding of u to w.
func (u UserInformation) Encode(w *codec.Writer) {
	w.WriteEncodedString(u.Name)
	w.WriteEncodedString(u.Gender)
	w.WriteEncodedString(u.Country)
	w.WriteUint(uint64(u.BirthTime), 8)
	w.WriteEncodedString(u.SocialID)
	w.WriteEncodedString(u.RegionalPhoneNumber)
	w.WriteEncodedString(u.ImageURL)
}

// DecodeUserInformation reads the fields exactly as encoded. Defaults are not
// applied so that decoded values re-encode to the same bytes.
func DecodeUserInformation(r *codec.Reader) (UserInformation, error) {
	var (
		u   UserInformation
		err error
	)
	for _, f := range []struct {
		name string
		dst  *string
	}{{"name", &u.Name}, {"gender", &u.Gender}, {"country", &u.Country}} {
		if *f.dst, err = r.ReadEncodedString(); err != nil {
			return UserInformation{}, fmt.Errorf("%w: %s: %v", ErrMalformed, f.name, err)
		}
	}
	birth, err := r.ReadUint(8)
	if err != nil {
		return UserInformation{}, fmt.Errorf("%w: birth time: %v", ErrMalformed, err)
	}
	u.BirthTime = int64(birth)
	for _, f := range []struct {
		name string
		dst  *string
	}{{"social id", &u.SocialID}, {"phone number", &u.RegionalPhoneNumber}, {"image url", &u.ImageURL}} {
		if *f.dst, err = r.ReadEncodedString(); err != nil {
			return UserInformation{}, fmt.Errorf("%w: %s: %v", ErrMalformed, f.name, err)
		}
	}
	return u, nil
}

func (u UserInformation) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(64)
	u.Encode(w)
	return w.Bytes()
}

func (u *UserInformation) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data)
	decoded, err := DecodeUserInformation(r)
	if err != nil {
		return err
	}
	if !r.EOF() {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Remaining())
	}
	*u = decoded
	return nil
}

// Digest hashes the canonical encoding of u.
func (u UserInformation) Digest() (*big.Int, error) {
	raw, err := u.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return digest.Int(raw), nil
}
