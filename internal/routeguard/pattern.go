package routeguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Wildcard is the only pattern group understood by Compile.
const Wildcard = "(.*)"

// Pattern is a compiled public route pattern such as "/sign-in(.*)".
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// Compile turns a route pattern into an anchored matcher. Everything except
// the (.*) wildcard is matched literally.
func Compile(pattern string) (Pattern, error) {
	pattern = strings.TrimSpace(pattern)
	if !strings.HasPrefix(pattern, "/") {
		return Pattern{}, fmt.Errorf("route pattern %q must start with /", pattern)
	}

	literals := strings.Split(pattern, Wildcard)
	for i, lit := range literals {
		if strings.ContainsAny(lit, "()") {
			return Pattern{}, fmt.Errorf("route pattern %q: only %s groups are supported", pattern, Wildcard)
		}
		literals[i] = regexp.QuoteMeta(lit)
	}

	re, err := regexp.Compile("^" + strings.Join(literals, "(.*)") + "$")
	if err != nil {
		return Pattern{}, fmt.Errorf("route pattern %q: %w", pattern, err)
	}
	return Pattern{raw: pattern, re: re}, nil
}

// MustCompile is Compile for patterns known at build time.
func MustCompile(pattern string) Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether path matches the pattern.
func (p Pattern) Match(path string) bool {
	return p.re != nil && p.re.MatchString(path)
}

func (p Pattern) String() string {
	return p.raw
}
