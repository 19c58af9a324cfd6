// Package configflags parses the free-form config-flags string format used
// for passthrough options: comma-separated key=value pairs, where commas
// inside double-quoted values are preserved, and bare comma-delimited tokens
// following a pair are rejoined onto that pair's value.
package configflags

import "strings"

// Parse parses a config-flags string into a map.
//
// Supported forms:
//
//	"key1=val1, key2=val2"                     -> {key1: val1, key2: val2}
//	"key1=val1, key2=val2,val3,val4"           -> {key1: val1, key2: "val2,val3,val4"}
//	`key1="subkey1=val1,val2 subkey2=val3"`    -> {key1: `"subkey1=val1,val2 subkey2=val3"`}
//
// Double quotes protect commas from being treated as pair delimiters and are
// kept verbatim in the parsed value.
func Parse(flags string) map[string]string {
	tokens := splitOutsideQuotes(flags)
	parsed := make(map[string]string)

	for i, token := range tokens {
		if !strings.Contains(token, "=") {
			continue
		}

		key, value, _ := strings.Cut(token, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// A value may contain commas that were also used as delimiters:
		// rejoin the following tokens until the next key=value pair.
		for j := i + 1; j < len(tokens); j++ {
			if strings.Contains(tokens[j], "=") {
				break
			}
			value += "," + tokens[j]
		}

		parsed[key] = value
	}

	return parsed
}

// splitOutsideQuotes splits s on commas that are not within double quotes.
func splitOutsideQuotes(s string) []string {
	var tokens []string
	var sb strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			sb.WriteRune(r)
		case r == ',' && !inQuotes:
			tokens = append(tokens, sb.String())
			sb.Reset()
		default:
			sb.WriteRune(r)
		}
	}
	tokens = append(tokens, sb.String())

	return tokens
}
