package session

import (
	"strings"
)

const (
	MinTenantIDLength = 7
	MaxTenantIDLength = 15
)

// NormalizeTenantID reduz um número de telefone (ou JID) a apenas dígitos.
// "+254 700-000001", "254700000001@s.whatsapp.net" e "254700000001:12@s.whatsapp.net"
// resultam todos em "254700000001".
func NormalizeTenantID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}
	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		s = s[:colon]
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	id := b.String()
	if len(id) < MinTenantIDLength || len(id) > MaxTenantIDLength {
		return "", NewValidationError("number", raw, "phone number must have between 7 and 15 digits")
	}
	return id, nil
}
