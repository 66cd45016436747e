package validation

import "regexp"

// Nombre de provider: va en paths (/account/login/{provider}) y en nombres de
// cookie, así que sólo minúsculas, dígitos, '_' y '-', 1..32 chars, empezando
// con alfanumérico.
var providerNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// ValidProviderName reporta si name sirve como nombre de provider.
func ValidProviderName(name string) bool {
	return providerNameRe.MatchString(name)
}

// ValidScope valida un scope-token de OAuth2 (RFC 6749 §3.3): 1..128 chars
// imprimibles sin espacio, comillas dobles ni backslash.
func ValidScope(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}
