package secure

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	TOTPDigits = 6
	TOTPPeriod = 30 * time.Second

	totpSecretBytes = 20
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTOTPSecret returns a random base32 secret suitable for authenticator apps.
func NewTOTPSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generating totp secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// TOTPCode computes the HMAC-SHA256 code of the 30 second window containing at.
func TOTPCode(secret string, at time.Time) (string, error) {
	key, err := b32.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return "", fmt.Errorf("decoding totp secret: %w", err)
	}
	if len(key) == 0 {
		return "", errors.New("empty totp secret")
	}
	return hotp(key, uint64(at.Unix()/int64(TOTPPeriod/time.Second))), nil
}

// VerifyTOTP accepts only the code of the current window; there is no skew.
func VerifyTOTP(secret, code string, at time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != TOTPDigits {
		return false, nil
	}
	expected, err := TOTPCode(secret, at)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1, nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app enrolls from.
func ProvisioningURI(issuer, account, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", "SHA256")
	v.Set("digits", strconv.Itoa(TOTPDigits))
	v.Set("period", strconv.Itoa(int(TOTPPeriod/time.Second)))

	return "otpauth://totp/" + url.PathEscape(issuer+":"+account) + "?" + v.Encode()
}

func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", TOTPDigits, bin%1_000_000)
}
