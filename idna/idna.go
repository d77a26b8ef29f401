// Package idna converts internationalized domain name labels to and from
// their ASCII Compatible Encoding (Punycode), component G of the core.
//
// It wraps golang.org/x/net/idna, the same module the teacher already
// depends on for HTTP/2, rather than hand-rolling Punycode.
package idna

import (
	"golang.org/x/net/idna"

	"github.com/DNS-OARC/gonet/neterr"
)

// profile is shared across ToACE/ToUnicode. Lookup mirrors the validation
// a resolver should apply to a name it is about to hand to getaddrinfo.
var profile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.ValidateLabels(true),
)

// ToACE converts a Unicode domain name to its ASCII Compatible Encoding
// (e.g. "münchen.de" -> "xn--mnchen-3ya.de"). Pure-ASCII input is returned
// unchanged. Failures raise CodeIDNConversion.
func ToACE(name string) (string, error) {
	ace, err := profile.ToASCII(name)
	if err != nil {
		return "", neterr.Wrap(neterr.CodeIDNConversion, name, err)
	}
	return ace, nil
}

// ToUnicode converts an ACE-encoded domain name back to Unicode. Labels
// without an "xn--" prefix are returned unchanged.
func ToUnicode(name string) (string, error) {
	uni, err := profile.ToUnicode(name)
	if err != nil {
		return "", neterr.Wrap(neterr.CodeIDNConversion, name, err)
	}
	return uni, nil
}
