// Package resettoken builds and validates the single-use, time-limited
// tokens that gate the confirmation-reset flow.
//
// Wire format: base64url of "subjectID!!isoTimestamp!!signature" where the
// signature is the hex SHA-256 of subjectID, timestamp and the shared
// secret. The token is self-contained; replay protection comes from the
// bounded age plus the reset itself being idempotent.
package resettoken

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
)

const (
	separator  = "!!"
	timeLayout = time.RFC3339
)

// Build creates a token for the given subject at the given time.
func Build(subjectID id.UserID, now time.Time, secret string) string {
	ts := now.UTC().Format(timeLayout)
	payload := subjectID.String() + separator + ts + separator + sign(subjectID.String(), ts, secret)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Parse validates a token and returns its subject. It rejects malformed
// tokens, signature mismatches, tokens older than maxAge and tokens with a
// timestamp in the future.
func Parse(token string, maxAge time.Duration, now time.Time, secret string) (id.UserID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "token is not valid base64")
	}
	parts := strings.Split(string(raw), separator)
	if len(parts) != 3 {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "token must have three parts")
	}
	subjectRaw, ts, signature := parts[0], parts[1], parts[2]

	subjectID, err := id.ParseUserID(subjectRaw)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "token subject is not a valid id")
	}

	expected := sign(subjectRaw, ts, secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "token signature mismatch")
	}

	issuedAt, err := time.Parse(timeLayout, ts)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "token timestamp is malformed")
	}
	if issuedAt.After(now) {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "token timestamp is in the future")
	}
	if now.Sub(issuedAt) > maxAge {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "token has expired")
	}
	return subjectID, nil
}

func sign(subject, ts, secret string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s%s%s%s%s", subject, separator, ts, separator, secret))
	return hex.EncodeToString(sum[:])
}
