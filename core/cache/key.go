package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Key derives "{feature}:cache:{md5(json(input))}". Equal inputs produce equal
// keys, and map inputs are stable because encoding/json sorts map keys.
func Key(feature string, input any) (string, error) {
	if feature == "" || strings.Contains(feature, ":") {
		return "", fmt.Errorf("%w: feature %q", ErrInvalidKey, feature)
	}
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	sum := md5.Sum(data)
	return feature + ":cache:" + hex.EncodeToString(sum[:]), nil
}

// MustKey is Key that panics on error.
func MustKey(feature string, input any) string {
	k, err := Key(feature, input)
	if err != nil {
		panic(err)
	}
	return k
}

// Pattern matches every entry of feature, lock keys included.
func Pattern(feature string) string { return feature + ":cache:*" }

// Feature extracts the feature segment of a key produced by Key.
func Feature(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}
