//go:build bdd

package bdd

import (
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// splitHostPort extracts the host and port an httptest.Server is actually
// listening on, so an Identity advertises a reachable address.
func splitHostPort(rawURL string) (string, int) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "127.0.0.1", 0
	}
	port, _ := strconv.Atoi(u.Port())
	return u.Hostname(), port
}

func jsonDecode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// unquoteFeatureString strips one layer of surrounding double quotes a
// Gherkin step carries around an embedded JSON/Avro literal. Step text
// arrives exactly as written in the .feature file, so an argument written
// as "\"string\"" arrives with its quotes and backslashes and is unquoted
// here to `"string"`; a step argument written as a bare record literal is
// returned unchanged.
func unquoteFeatureString(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
	}
	return s
}

// parseIntCSV parses "[1,2,3]" or "1,2,3" into a slice of int32.
func parseIntCSV(s string) []int32 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, int32(n))
	}
	return out
}

func intSliceEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
