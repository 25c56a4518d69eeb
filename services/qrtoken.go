package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mission-reward-system/models"
)

// TokenTag is the fixed literal leading every check-in token
const TokenTag = "MRQR"

const tokenSignatureLen = 8

// Token verification failures. These are captured on the submission for
// operator review rather than bubbled to the client as hard errors.
var (
	ErrMalformedToken            = errors.New("malformed token")
	ErrUnknownOrInactiveLocation = errors.New("unknown or inactive location")
	ErrExpiredToken              = errors.New("expired token")
	ErrInvalidSignature          = errors.New("invalid token signature")
)

// IssueToken mints the rotating check-in code for a location:
// "MRQR:<locationId>:<issuedAtEpochMillis>:<signature>". The admin console
// refreshes the displayed QR from this well inside the validity window.
func IssueToken(store *models.StoreLocation, now time.Time) string {
	issuedAt := now.UnixMilli()
	sig := signToken(store.ID, issuedAt, store.QRSecretSeed)
	return fmt.Sprintf("%s:%s:%d:%s", TokenTag, store.ID, issuedAt, sig)
}

// VerifyToken checks shape, target location, expiry and signature, in that
// order, and returns the verified location id. It authorizes "this
// location displayed a code at this time" — it is a capability token, not
// a transport-security primitive.
func VerifyToken(token string, now time.Time, locations []models.StoreLocation, window time.Duration) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 4 || parts[0] != TokenTag {
		return "", ErrMalformedToken
	}
	locationID := parts[1]
	issuedAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || locationID == "" {
		return "", ErrMalformedToken
	}

	var store *models.StoreLocation
	for i := range locations {
		if locations[i].ID == locationID {
			store = &locations[i]
			break
		}
	}
	if store == nil || !store.IsActive {
		return "", ErrUnknownOrInactiveLocation
	}

	if now.UnixMilli()-issuedAt > window.Milliseconds() {
		return "", ErrExpiredToken
	}

	expected := signToken(locationID, issuedAt, store.QRSecretSeed)
	if !hmac.Equal([]byte(expected), []byte(parts[3])) {
		return "", ErrInvalidSignature
	}

	return locationID, nil
}

// signToken derives the short signature from {locationId, issuedAt} and
// the location's secret seed: first 8 hex chars of HMAC-SHA256.
func signToken(locationID string, issuedAtMillis int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%d", locationID, issuedAtMillis)
	return hex.EncodeToString(mac.Sum(nil))[:tokenSignatureLen]
}
