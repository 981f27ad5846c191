// internal/merge/identity.go

// Package merge combines per-brand store datasets into one directory where
// each physical store carries every brand found at it.
package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/valpere/BrandLocator/pkg/types"
)

// Identity key prefixes, in priority order.
const (
	PrefixGoogle = "google:"
	PrefixHash   = "hash:"
)

// Payload paths read from enrichment objects attached to a store.
const (
	placesIDPath      = "google_places.id"
	placesAddressPath = "google_places.formattedAddress"
)

// keptPunct survives canonicalization because it distinguishes addresses
// ("Suite #4", "12-14 Main", "1/2").
const keptPunct = "&#-/"

// IdentityKey derives the key that decides whether two records are the same
// physical store. First match wins:
//
//  1. google:<places id> from an attached places payload
//  2. <platform>:<platform id>, with platform falling back to defaultPlatform
//  3. hash:<digest of canonical name and address>
//
// The structural key is low confidence: distinct stores with the same name
// and address text collide, and text differing beyond canonicalization does
// not match.
func IdentityKey(rec types.RawLocationRecord, defaultPlatform types.Platform) string {
	if id := rec.LookupString(placesIDPath); id != "" {
		return PrefixGoogle + id
	}
	if rec.ID != "" {
		platform := rec.Platform
		if platform == types.PlatformUnknown {
			platform = defaultPlatform
		}
		return string(platform) + ":" + rec.ID
	}
	return PrefixHash + StructuralDigest(rec.Name, addressOf(rec))
}

// StructuralDigest returns the first 16 hex characters of the SHA-256 of the
// canonical "name|address" string. It is stable across runs and processes.
func StructuralDigest(name, address string) string {
	sum := sha256.Sum256([]byte(Canonicalize(name) + "|" + Canonicalize(address)))
	return hex.EncodeToString(sum[:])[:16]
}

// Canonicalize applies NFKC, lower-cases, drops punctuation other than
// "&#-/" and collapses whitespace.
func Canonicalize(s string) string {
	t := transform.Chain(
		norm.NFKC,
		cases.Lower(language.Und),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.IsPunct(r) && !strings.ContainsRune(keptPunct, r)
		})),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

func addressOf(rec types.RawLocationRecord) string {
	if rec.AddressLine != "" {
		return rec.AddressLine
	}
	return rec.LookupString(placesAddressPath)
}

// displayName prefers the places display name over the platform name.
func displayName(store *types.CanonicalStoreRecord) string {
	if places, ok := store.Extra["google_places"].(map[string]interface{}); ok {
		if dn, ok := places["displayName"].(map[string]interface{}); ok {
			if text, ok := dn["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	if store.Name != "" {
		return store.Name
	}
	return "Unknown"
}
