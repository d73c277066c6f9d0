// Package token issues and verifies the combined bearer tokens used by invites
// and activation links. A combined token has the form "{uuid}.{secret}".
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

const (
	secretBytes = 32
	saltBytes   = 16
	separator   = "."
)

var ErrEntropy = errors.New("token_entropy_unavailable")

// Issued is the result of minting a token. Combined is handed to the holder;
// Salt and Hash are persisted.
type Issued struct {
	Combined string
	Salt     string
	Hash     string
}

// Parsed is the typed form of a combined token.
type Parsed struct {
	SubjectID uuid.UUID
	Secret    string
}

// Candidate is a stored hash/salt pair a token may match.
type Candidate struct {
	Hash string
	Salt string
}

// Codec mints and verifies combined tokens.
type Codec struct {
	rand io.Reader
}

// NewCodec returns a codec backed by crypto/rand.
func NewCodec() *Codec {
	return &Codec{rand: rand.Reader}
}

// NewCodecWithReader is used by tests that need deterministic secrets.
func NewCodecWithReader(r io.Reader) *Codec {
	return &Codec{rand: r}
}

// Issue mints a new secret and salt for subjectID.
func (c *Codec) Issue(subjectID uuid.UUID) (Issued, error) {
	secret := make([]byte, secretBytes)
	if _, err := io.ReadFull(c.reader(), secret); err != nil {
		return Issued{}, errors.Join(ErrEntropy, err)
	}
	salt := make([]byte, saltBytes)
	if _, err := io.ReadFull(c.reader(), salt); err != nil {
		return Issued{}, errors.Join(ErrEntropy, err)
	}

	encodedSecret := base64.RawURLEncoding.EncodeToString(secret)
	encodedSalt := base64.RawURLEncoding.EncodeToString(salt)

	return Issued{
		Combined: subjectID.String() + separator + encodedSecret,
		Salt:     encodedSalt,
		Hash:     digest(encodedSecret, encodedSalt),
	}, nil
}

// Parse splits a combined token. It reports false for anything malformed.
func Parse(combined string) (Parsed, bool) {
	combined = strings.TrimSpace(combined)
	rawID, secret, ok := strings.Cut(combined, separator)
	if !ok || rawID == "" || secret == "" {
		return Parsed{}, false
	}
	if strings.Contains(secret, separator) {
		return Parsed{}, false
	}

	id, err := uuid.Parse(rawID)
	if err != nil || id == uuid.Nil || id.String() != strings.ToLower(rawID) {
		return Parsed{}, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(secret)
	if err != nil || len(decoded) != secretBytes {
		return Parsed{}, false
	}

	return Parsed{SubjectID: id, Secret: secret}, true
}

// Verify compares the parsed secret against every candidate in constant time
// and returns the index of the match.
func Verify(parsed Parsed, candidates []Candidate) (int, bool) {
	match := -1
	for i, candidate := range candidates {
		if candidate.Hash == "" || candidate.Salt == "" {
			continue
		}
		computed := digest(parsed.Secret, candidate.Salt)
		if subtle.ConstantTimeCompare([]byte(computed), []byte(candidate.Hash)) == 1 && match == -1 {
			match = i
		}
	}
	return match, match >= 0
}

func digest(secret, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Codec) reader() io.Reader {
	if c == nil || c.rand == nil {
		return rand.Reader
	}
	return c.rand
}
