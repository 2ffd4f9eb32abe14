package device

import (
	"strings"
)

// sigBaseSuffix is the Bluetooth SIG base UUID tail that 16- and 32-bit UUIDs expand into.
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to lowercase hex without dashes or a 0x prefix.
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(strings.TrimSpace(uuid))
	s = strings.TrimPrefix(s, "0x")
	return strings.ReplaceAll(s, "-", "")
}

// ExpandUUID returns the full 128-bit dashed form of a UUID.
// 16-bit and 32-bit UUIDs are placed into the Bluetooth SIG base UUID;
// malformed input is returned normalized but otherwise unchanged.
func ExpandUUID(uuid string) string {
	s := NormalizeUUID(uuid)
	switch len(s) {
	case 4:
		s = "0000" + s + sigBaseSuffix
	case 8:
		s = s + sigBaseSuffix
	case 32:
	default:
		return s
	}
	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
}

// MatchUUID reports whether the expanded form of uuid contains fragment.
// Fragments are compared case-insensitively and may contain dashes.
func MatchUUID(uuid, fragment string) bool {
	f := strings.ToLower(strings.TrimSpace(fragment))
	if f == "" {
		return false
	}
	expanded := ExpandUUID(uuid)
	if strings.Contains(expanded, f) {
		return true
	}
	return strings.Contains(strings.ReplaceAll(expanded, "-", ""), strings.ReplaceAll(f, "-", ""))
}

// FindCharacteristic returns the first characteristic whose UUID contains fragment.
func FindCharacteristic(chars []Characteristic, fragment string) (Characteristic, error) {
	for _, c := range chars {
		if MatchUUID(c.UUID(), fragment) {
			return c, nil
		}
	}
	return nil, &NotFoundError{Resource: "characteristic", UUIDs: []string{fragment}}
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}
