package auth

import (
	"context"
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnsupportedAlg     = errors.New("unsupported signing algorithm")
	ErrVerifierNotEnabled = errors.New("no signing key configured")
)

// Claims is the subset of a Supabase access token the booking service reads.
type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Aud   string `json:"aud,omitempty"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
}

type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid"`
}

// KeySource resolves RS256 verification keys by key id.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Verifier checks HS256 tokens against a shared secret and RS256 tokens against a KeySource.
type Verifier struct {
	secret []byte
	keys   KeySource
	now    func() time.Time
}

func NewVerifier(secret string, keys KeySource) *Verifier {
	v := &Verifier{keys: keys, now: time.Now}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0 || v.keys != nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	var header Header
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, err
	}
	signed := parts[0] + "." + parts[1]
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}

	switch header.Alg {
	case "HS256":
		if len(v.secret) == 0 {
			return nil, ErrVerifierNotEnabled
		}
		if !hmac.Equal(sig, hmacSHA256([]byte(signed), v.secret)) {
			return nil, ErrInvalidToken
		}
	case "RS256":
		if v.keys == nil {
			return nil, ErrVerifierNotEnabled
		}
		key, err := v.keys.Key(ctx, header.Kid)
		if err != nil {
			return nil, err
		}
		hash := sha256.Sum256([]byte(signed))
		if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hash[:], sig); err != nil {
			return nil, ErrInvalidToken
		}
	default:
		return nil, ErrUnsupportedAlg
	}

	var claims Claims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return nil, err
	}
	if claims.Sub == "" {
		return nil, ErrInvalidToken
	}
	if claims.Exp > 0 && v.now().Unix() > claims.Exp {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

// SignHS256 issues a token the Verifier accepts; used by local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	signed, err := encodeUnsigned(Header{Alg: "HS256", Typ: "JWT"}, claims)
	if err != nil {
		return "", err
	}
	sig := hmacSHA256([]byte(signed), []byte(secret))
	return signed + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func encodeUnsigned(header Header, claims Claims) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON), nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidToken
	}
	return nil
}

func hmacSHA256(data, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(data)
	return mac.Sum(nil)
}
