package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"listing-watch/models"
)

// IdentityPolicy decides which fields make up a listing's fingerprint.
type IdentityPolicy string

const (
	// PolicyFields hashes title, price, currency and url. A price change
	// therefore yields a new fingerprint and is reported as a new listing.
	PolicyFields IdentityPolicy = "fields"
	// PolicyURL hashes the url only, so the same listing keeps its
	// fingerprint across price changes.
	PolicyURL IdentityPolicy = "url"
)

// ParseIdentityPolicy maps a config value onto a policy.
func ParseIdentityPolicy(s string) (IdentityPolicy, error) {
	switch IdentityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyFields, "":
		return PolicyFields, nil
	case PolicyURL:
		return PolicyURL, nil
	}
	return "", fmt.Errorf("unknown identity policy %q", s)
}

// Fingerprint returns the candidate's fingerprint under the policy.
func (p IdentityPolicy) Fingerprint(c models.Candidate) string {
	if p == PolicyURL {
		return URLFingerprint(c.URL)
	}
	return Fingerprint(c.Title, c.Price, c.Currency, c.URL)
}

// Fingerprint is the hex SHA-256 of the literal concatenation of the four
// fields. Whole prices render with a trailing ".0" ("25000.0").
func Fingerprint(title string, price float64, currency models.Currency, url string) string {
	sum := sha256.Sum256([]byte(title + formatHashPrice(price) + string(currency) + url))
	return hex.EncodeToString(sum[:])
}

// URLFingerprint is the hex SHA-256 of the listing url.
func URLFingerprint(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func formatHashPrice(price float64) string {
	s := strconv.FormatFloat(price, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
