// Package redact scrubs secrets from text before it is logged, persisted or
// sent to an LLM provider.
package redact

import (
	"net/url"
	"regexp"
)

var (
	// VAR=value lines, as found in pasted .env files
	envRegex = regexp.MustCompile(`(?m)^([A-Z_]+)=\S+$`)
	// api_key=... and key=... query parameters in provider URLs
	queryKeyRegex = regexp.MustCompile(`(?i)\b((?:api_)?key)=[^&\s"']+`)
	jwtRegex      = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	skRegex       = regexp.MustCompile(`sk-[a-zA-Z0-9\-]{20,}`)
	aizaRegex     = regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)
	ghpRegex      = regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`)
)

const placeholder = "[REDACTED]"

func Clean(input string) string {
	input = envRegex.ReplaceAllString(input, "${1}="+placeholder)
	input = queryKeyRegex.ReplaceAllString(input, "${1}="+placeholder)
	input = skRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = jwtRegex.ReplaceAllString(input, "[REDACTED_JWT]")
	input = aizaRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = ghpRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	return input
}

// URL returns u with its api_key and key query parameters masked.
func URL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	q := c.Query()
	for _, name := range []string{"api_key", "key"} {
		if q.Has(name) {
			q.Set(name, placeholder)
		}
	}
	c.RawQuery = q.Encode()
	return c.String()
}
