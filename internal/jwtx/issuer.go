// Package jwtx emite y verifica los tokens de sesión del gateway (EdDSA).
package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrExpired      = errors.New("jwtx: token expired")
)

// Issuer firma y verifica tokens de sesión con una única clave Ed25519.
// El gateway no rota claves en runtime: la rotación es un redeploy con
// clave nueva (los tokens viejos mueren por exp, que es corto).
type Issuer struct {
	Iss       string
	AccessTTL time.Duration

	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer construye un issuer desde un seed Ed25519 en base64 (32 bytes).
// Si seed es vacío genera una clave efímera (dev/tests: los tokens no
// sobreviven un restart).
func NewIssuer(iss, seedB64 string, accessTTL time.Duration) (*Issuer, error) {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	var priv ed25519.PrivateKey
	if seedB64 == "" {
		_, p, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		priv = p
	} else {
		seed, err := base64.StdEncoding.DecodeString(seedB64)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("jwtx: seed debe ser %d bytes, obtuvo %d", ed25519.SeedSize, len(seed))
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	return &Issuer{
		Iss:       iss,
		AccessTTL: accessTTL,
		priv:      priv,
		pub:       priv.Public().(ed25519.PublicKey),
	}, nil
}

// IssueAccess emite un access token con claims estándar + extras.
func (i *Issuer) IssueAccess(sub string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse valida firma EdDSA, iss y exp/nbf (con 30s de tolerancia) y
// devuelve las claims como map.
func (i *Issuer) Parse(raw string) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return i.pub, nil }

	tok, err := jwtv5.Parse(raw, keyfunc, jwtv5.WithValidMethods([]string{"EdDSA"}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if i.Iss != "" {
		if iss, _ := claims["iss"].(string); iss != i.Iss {
			return nil, ErrInvalidToken
		}
	}

	now := time.Now()
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(now.Add(-30 * time.Second)) {
			return nil, ErrExpired
		}
	}
	if nbff, ok := claims["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(30 * time.Second)) {
			return nil, ErrInvalidToken
		}
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}

// ExpiryOf extrae el exp de un set de claims ya validado.
// El revocation store usa este instante como TTL de la entrada.
func ExpiryOf(claims map[string]any) time.Time {
	if expf, ok := claims["exp"].(float64); ok {
		return time.Unix(int64(expf), 0).UTC()
	}
	return time.Time{}
}

// Subject extrae el sub (identidad) de las claims.
func Subject(claims map[string]any) string {
	s, _ := claims["sub"].(string)
	return s
}
