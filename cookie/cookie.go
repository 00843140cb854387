// Package cookie implements the signed-cookie codec shared by the OAuth
// pending-login cookie and the session cookie. A value is the base64url
// encoding of a JSON payload followed by a dot and the base64url encoding
// of an HMAC-SHA256 signature over the payload segment.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrMissingSecret indicates the signing secret was absent at startup.
var ErrMissingSecret = errors.New("missing cookie signing secret")

// Codec signs and verifies cookie payloads with a shared secret.
type Codec struct {
	secret []byte
}

// NewCodec returns a codec for the given signing secret. An empty secret is
// a configuration error, not a per-request condition.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Encode serializes payload to JSON and returns "payloadB64.signatureB64".
func (c *Codec) Encode(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies the signature on value and unmarshals the payload into
// out. It reports false for any malformed, tampered, or unparseable value;
// it never returns an error to the caller for bad input.
func (c *Codec) Decode(value string, out any) bool {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok || payload == "" || signature == "" {
		return false
	}
	if !c.verify(payload, signature) {
		return false
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Codec) verify(payload, signature string) bool {
	got, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hmac.Equal(got, mac.Sum(nil))
}

// New builds a cookie with the attributes every cookie in this application
// carries: HttpOnly, Path=/, SameSite=Lax, and Secure when the request
// arrived over TLS.
func New(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Cleared returns a cookie that instructs the browser to drop name.
func Cleared(name string, secure bool) *http.Cookie {
	return New(name, "", -1, secure)
}
