// Package wire implements the datagram envelope between agent and
// collector: a JSON flow record, base64-encoded, sealed as a Fernet
// token whose embedded timestamp gives the receiver replay protection.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"

	"github.com/thierrydecker/myason/internal/flow"
)

// MaxDatagramSize is the collector's receive buffer. Tokens longer
// than this would be truncated on the wire and must not be sent.
const MaxDatagramSize = 1024

// ErrInvalidToken covers forged, corrupted and expired tokens alike:
// the receiver cannot tell them apart and treats them identically.
var ErrInvalidToken = errors.New("invalid token")

// Record is the payload of one datagram: a single flow entry keyed by
// its serialized flow key.
type Record map[string]flow.Entry

// ParseKey decodes a base64 shared key into its Fernet form
func ParseKey(s string) (*fernet.Key, error) {
	key, err := fernet.DecodeKey(s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding shared key")
	}
	return key, nil
}

// GenerateKey creates a fresh shared key in its textual form
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", errors.Wrap(err, "generating key")
	}
	return key.Encode(), nil
}

// Seal serializes a record and seals it into a token: JSON text,
// base64-encoded, encrypted and signed with the shared key.
func Seal(rec Record, key *fernet.Key) ([]byte, error) {
	plain, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling record")
	}
	encoded := base64.StdEncoding.EncodeToString(plain)
	tok, err := fernet.EncryptAndSign([]byte(encoded), key)
	if err != nil {
		return nil, errors.Wrap(err, "sealing record")
	}
	return tok, nil
}

// Open verifies and decrypts a token, enforcing ttl against the
// token's embedded timestamp, and undoes the base64 layer. It returns
// the raw JSON text; the caller parses and validates the flows so one
// malformed flow cannot sink its siblings.
func Open(token []byte, key *fernet.Key, ttl time.Duration) ([]byte, error) {
	encoded := fernet.VerifyAndDecrypt(token, ttl, []*fernet.Key{key})
	if encoded == nil {
		return nil, ErrInvalidToken
	}
	plain, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "base64 error")
	}
	if !utf8.Valid(plain) {
		return nil, errors.New("payload is not valid UTF-8")
	}
	return plain, nil
}
