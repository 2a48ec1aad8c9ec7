// Package scan turns decoded QR payloads and manually entered strings into
// claim identifiers. Camera capture and barcode detection live on the
// device; this package only sees the resulting text.
package scan

import (
	"net/url"
	"strings"
)

type Kind string

const (
	KindToken Kind = "token"
	KindCode  Kind = "code"
)

type Identifier struct {
	Kind  Kind
	Value string
}

const maxPayloadLen = 2048

// ParsePayload recognizes three shapes:
//
//	.../claim?token=<opaque>  -> token (preferred claim path)
//	.../r/<code>              -> code (legacy short link)
//	bare alphanumeric string  -> code (manual entry)
//
// Anything else is rejected.
func ParsePayload(payload string) (Identifier, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" || len(payload) > maxPayloadLen {
		return Identifier{}, false
	}

	if u, err := url.Parse(payload); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if token := u.Query().Get("token"); token != "" {
			return Identifier{Kind: KindToken, Value: token}, true
		}
		if code, ok := shortLinkCode(u.Path); ok {
			return Identifier{Kind: KindCode, Value: code}, true
		}
		return Identifier{}, false
	}

	if isCode(payload) {
		return Identifier{Kind: KindCode, Value: payload}, true
	}
	return Identifier{}, false
}

// shortLinkCode extracts <code> from a path ending in /r/<code>.
func shortLinkCode(path string) (string, bool) {
	idx := strings.LastIndex(path, "/r/")
	if idx < 0 {
		return "", false
	}
	code := strings.Trim(path[idx+len("/r/"):], "/")
	if code == "" || strings.Contains(code, "/") || !isCode(code) {
		return "", false
	}
	return code, true
}

func isCode(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
