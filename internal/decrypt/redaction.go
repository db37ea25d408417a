package decrypt

import (
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// SecretPrefix marks environment variables whose values must never appear in
// logs or streamed output.
const SecretPrefix = "RADAR_SECRET_"

// RedactionFilter replaces known secret values with [REDACTED:VAR_NAME]
// placeholders. It applies to the copies of helper output that are logged or
// published, never to the aggregated result.
type RedactionFilter struct {
	secrets []secret // longest value first
}

type secret struct {
	value       string
	placeholder string
}

// NewRedactionFilter builds the replacement table from RADAR_SECRET_*
// variables in the process environment. Raw and URL-encoded forms are both
// covered. Values shorter than 4 characters are still redacted but logged as
// a false-positive risk.
func NewRedactionFilter(log zerolog.Logger) *RedactionFilter {
	return newRedactionFilter(os.Environ(), log)
}

func newRedactionFilter(environ []string, log zerolog.Logger) *RedactionFilter {
	byValue := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(name, SecretPrefix) {
			continue
		}
		if len(value) < 4 {
			log.Warn().Str("var", name).Msg("secret shorter than 4 characters; redaction may hit unrelated text")
		}
		byValue[value] = "[REDACTED:" + name + "]"
		if encoded := url.QueryEscape(value); encoded != value {
			byValue[encoded] = "[REDACTED:" + name + ":urlencoded]"
		}
	}

	rf := &RedactionFilter{secrets: make([]secret, 0, len(byValue))}
	for v, p := range byValue {
		rf.secrets = append(rf.secrets, secret{value: v, placeholder: p})
	}
	// A secret containing another must be replaced first, or the shorter one
	// leaves part of it in the output.
	sort.Slice(rf.secrets, func(i, j int) bool {
		a, b := rf.secrets[i].value, rf.secrets[j].value
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return rf
}

// Redact returns input with every known secret replaced. With no secrets
// configured it returns input unchanged.
func (rf *RedactionFilter) Redact(input string) string {
	if rf == nil {
		return input
	}
	for _, s := range rf.secrets {
		input = strings.ReplaceAll(input, s.value, s.placeholder)
	}
	return input
}
