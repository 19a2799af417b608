package hkp

import "strings"

// NormalizeSearch canonicalizes the search parameter of /pks/lookup.
// Clients are supposed to prefix key ids and fingerprints with 0x,
// but we are liberal in what we accept: a single leading 0x is
// stripped regardless of case and the remainder is uppercased. No
// validation happens here, length requirements belong to the
// operations themselves.
func NormalizeSearch(raw string) string {
	if len(raw) >= 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
		raw = raw[2:]
	}
	return strings.ToUpper(raw)
}
