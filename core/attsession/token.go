package attsession

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/trezcool/darasa/core"
)

// The attendance token is the only authority the device holds: an HMAC-signed
// capability scoped to exactly one (session, student) pair. It grants nothing
// once the operator reassigns or the session ends.

var tokenSalt = []byte("darasa.core.attsession.token")

const tokenSep = ":"

// makeToken builds the capability token handed to the device along with an
// assigned student.
func makeToken(sessionID, studentID string, conf *core.Config) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(sessionID + tokenSep + studentID))
	return payload + "." + signToken(payload, conf)
}

// parseToken decodes and authenticates a token back into its
// (sessionID, studentID) pair.
func parseToken(token string, conf *core.Config) (sessionID, studentID string, err error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) < 2 {
		return "", "", ErrInvalidToken
	}
	payload, sig := parts[0], parts[1]

	if subtle.ConstantTimeCompare([]byte(signToken(payload, conf)), []byte(sig)) == 0 {
		return "", "", ErrInvalidToken
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	ids := strings.SplitN(string(data), tokenSep, 2)
	if len(ids) < 2 || ids[0] == "" || ids[1] == "" {
		return "", "", ErrInvalidToken
	}
	return ids[0], ids[1], nil
}

func signToken(payload string, conf *core.Config) string {
	key := sha256.Sum256(append(tokenSalt, conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
