// Package splitkey implementa el esquema de credenciales divididas (BYOK).
//
// Split cifra la credencial con AES-256-GCM (nonce de 128 bits, tag de 128
// bits, provider como AAD) y parte el ciphertext al medio: el server retiene
// la primera mitad junto con tag y nonce, el caller se lleva la segunda
// mitad una única vez. Ninguno de los dos fragmentos alcanza por sí solo:
// al server le falta la mitad del caller, y al caller le faltan la clave de
// descifrado, el nonce y el tag.
//
// Las operaciones criptográficas son puras y CPU-bound; el único I/O es el
// credential store. El plaintext reconstruido es el valor de retorno y nada
// más: este paquete no lo loguea ni lo cachea.
package splitkey

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dropDatabas3/keybridge/internal/store"
)

const (
	keySize   = 32 // AES-256
	nonceSize = 16 // 128 bits, via NewGCMWithNonceSize
	tagSize   = 16 // 128 bits (default GCM)

	// minSealed fuerza un ciphertext mínimo para que la mitad del caller
	// codifique a >= 16 caracteres (el contrato de headers exige fragmentos
	// de al menos 16 chars, y un fragmento legítimo tiene que cumplirlo).
	// El plaintext se arma como len(4 bytes BE) || credencial || padding
	// aleatorio hasta minSealed; el descifrado recorta por el prefijo.
	minSealed = 48
)

var (
	// ErrNotFound: no hay registro activo para el keyID.
	ErrNotFound = errors.New("splitkey: key not found")
	// ErrFragmentMismatch: el fragmento provisto no coincide byte a byte.
	ErrFragmentMismatch = errors.New("splitkey: fragment mismatch")
	// ErrDecryptionFailed: el tag de autenticación no verifica (tamper).
	ErrDecryptionFailed = errors.New("splitkey: decryption failed")

	// Los tres sentinels son internos: el borde HTTP los colapsa en un único
	// mensaje genérico para no dar un oráculo discriminante.
)

// Result es lo único que Split devuelve al caller: jamás el server fragment
// ni el decryption secret.
type Result struct {
	KeyID          string
	CallerFragment string // base64url, entregado exactamente una vez
}

// Engine realiza split/reconstruct contra un credential store externo.
type Engine struct {
	creds store.Credentials
}

func NewEngine(creds store.Credentials) *Engine {
	return &Engine{creds: creds}
}

// Split divide plaintext en dos fragmentos y persiste el registro.
// Clave y nonce son frescos en cada split, sin excepción: la reutilización
// entre credenciales del mismo provider está prohibida.
func (e *Engine) Split(ctx context.Context, plaintext, provider, keyID, owner string) (Result, error) {
	if plaintext == "" {
		return Result{}, fmt.Errorf("splitkey: empty credential")
	}
	if provider == "" {
		return Result{}, fmt.Errorf("splitkey: empty provider")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return Result{}, fmt.Errorf("splitkey: key random: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Result{}, fmt.Errorf("splitkey: nonce random: %w", err)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return Result{}, err
	}

	padded, err := pad([]byte(plaintext))
	if err != nil {
		return Result{}, err
	}

	// provider como AAD: el ciphertext queda atado a su provider y un
	// fragmento no puede replayarse contra otro contexto.
	sealed := aead.Seal(nil, nonce, padded, []byte(provider))

	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]
	mid := len(ct) / 2

	// Layout fijo del server fragment: ct[:mid] || tag || nonce.
	serverFrag := make([]byte, 0, mid+tagSize+nonceSize)
	serverFrag = append(serverFrag, ct[:mid]...)
	serverFrag = append(serverFrag, tag...)
	serverFrag = append(serverFrag, nonce...)

	callerFrag := append([]byte(nil), ct[mid:]...)

	rec := &store.SplitCredential{
		KeyID:            keyID,
		Provider:         provider,
		ServerFragment:   serverFrag,
		CallerFragment:   callerFrag,
		DecryptionSecret: key,
		Active:           true,
		Owner:            owner,
		CreatedAt:        time.Now().UTC(),
	}
	if err := e.creds.Create(ctx, rec); err != nil {
		return Result{}, err
	}

	return Result{
		KeyID:          keyID,
		CallerFragment: base64.RawURLEncoding.EncodeToString(callerFrag),
	}, nil
}

// Reconstruct rearma el plaintext a partir del server fragment persistido y
// el caller fragment provisto. En éxito incrementa el contador de uso y
// devuelve el plaintext para UN solo uso inmediato.
func (e *Engine) Reconstruct(ctx context.Context, keyID, suppliedFragment string) (string, error) {
	return e.reconstruct(ctx, keyID, "", suppliedFragment)
}

// ReconstructOwned es Reconstruct con scope de owner: una credencial de otra
// identidad falla igual que una inexistente (sin oráculo de existencia).
func (e *Engine) ReconstructOwned(ctx context.Context, keyID, owner, suppliedFragment string) (string, error) {
	return e.reconstruct(ctx, keyID, owner, suppliedFragment)
}

func (e *Engine) reconstruct(ctx context.Context, keyID, owner, suppliedFragment string) (string, error) {
	rec, err := e.creds.Get(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if owner != "" && rec.Owner != owner {
		return "", ErrNotFound
	}
	if !rec.Active {
		// Desactivada == inexistente a efectos de reconstrucción, sin
		// reactivación implícita posible.
		return "", ErrNotFound
	}

	supplied, err := base64.RawURLEncoding.DecodeString(suppliedFragment)
	if err != nil {
		return "", ErrFragmentMismatch
	}

	// Comparación en tiempo constante: la igualdad no puede filtrar en qué
	// byte difiere el fragmento.
	if len(supplied) != len(rec.CallerFragment) ||
		subtle.ConstantTimeCompare(supplied, rec.CallerFragment) != 1 {
		return "", ErrFragmentMismatch
	}

	if len(rec.ServerFragment) < tagSize+nonceSize {
		return "", ErrDecryptionFailed
	}
	half := rec.ServerFragment[:len(rec.ServerFragment)-tagSize-nonceSize]
	tag := rec.ServerFragment[len(rec.ServerFragment)-tagSize-nonceSize : len(rec.ServerFragment)-nonceSize]
	nonce := rec.ServerFragment[len(rec.ServerFragment)-nonceSize:]

	sealed := make([]byte, 0, len(half)+len(supplied)+tagSize)
	sealed = append(sealed, half...)
	sealed = append(sealed, supplied...)
	sealed = append(sealed, tag...)

	aead, err := newAEAD(rec.DecryptionSecret)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	padded, err := aead.Open(nil, nonce, sealed, []byte(rec.Provider))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	plaintext, err := unpad(padded)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	if err := e.creds.IncrementUsage(ctx, keyID); err != nil {
		// El bookkeeping no debe romper una reconstrucción ya verificada,
		// pero sí queda registrado.
		return string(plaintext), nil
	}
	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("splitkey: aes.NewCipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// pad arma len(4 BE) || data || random hasta minSealed.
func pad(data []byte) ([]byte, error) {
	n := 4 + len(data)
	total := n
	if total < minSealed {
		total = minSealed
	}
	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[:4], uint32(len(data)))
	copy(out[4:], data)
	if total > n {
		if _, err := io.ReadFull(rand.Reader, out[n:]); err != nil {
			return nil, fmt.Errorf("splitkey: pad random: %w", err)
		}
	}
	return out, nil
}

func unpad(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, errors.New("splitkey: short plaintext")
	}
	n := binary.BigEndian.Uint32(padded[:4])
	if int(n) > len(padded)-4 {
		return nil, errors.New("splitkey: bad length prefix")
	}
	return bytes.Clone(padded[4 : 4+n]), nil
}
