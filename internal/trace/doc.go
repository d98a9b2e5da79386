// Package trace renders tick reports as canonical JSON.
//
// Canonical form follows RFC 8785: object keys sorted by UTF-16 code units,
// no insignificant whitespace, no HTML escaping, strings NFC normalized and
// numbers in shortest round-trip form. Identical decision sequences always
// produce byte-identical output, which makes golden files and session
// digests stable across runs and machines.
package trace
