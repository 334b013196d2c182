package twofa

import (
	"fmt"
	"image/png"
	"io"
	"strings"

	"github.com/pquerna/otp"
)

// IsOTPAuthURI reports whether s looks like an otpauth:// provisioning URI
// rather than, say, a pre-rendered image URL.
func IsOTPAuthURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "otpauth://")
}

// SecretFromURI extracts the base32 secret from an otpauth URI, or "".
func SecretFromURI(uri string) string {
	if !IsOTPAuthURI(uri) {
		return ""
	}
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return ""
	}
	return key.Secret()
}

// KeyInfo is what an authenticator app will show for a URI.
type KeyInfo struct {
	Issuer      string
	AccountName string
	Secret      string
	Period      uint64
}

// DescribeURI parses an otpauth URI.
func DescribeURI(uri string) (KeyInfo, error) {
	if !IsOTPAuthURI(uri) {
		return KeyInfo{}, fmt.Errorf("not an otpauth URI")
	}
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("parse otpauth URI: %w", err)
	}
	return KeyInfo{
		Issuer:      key.Issuer(),
		AccountName: key.AccountName(),
		Secret:      key.Secret(),
		Period:      key.Period(),
	}, nil
}

// WriteQRPNG renders the URI as a size x size PNG QR code.
func WriteQRPNG(w io.Writer, uri string, size int) error {
	if !IsOTPAuthURI(uri) {
		return fmt.Errorf("not an otpauth URI")
	}
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return fmt.Errorf("parse otpauth URI: %w", err)
	}
	img, err := key.Image(size, size)
	if err != nil {
		return fmt.Errorf("render QR code: %w", err)
	}
	return png.Encode(w, img)
}
