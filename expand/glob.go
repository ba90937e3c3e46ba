package expand

import (
	"os"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/pattern"

	"github.com/posh-shell/posh/internal/settings"
)

// globField implements spec.md §4.5 phase 6: pathname expansion of one
// unquoted field, unless noglob is set. A pattern matching nothing expands
// to itself (the literal fallback from spec.md §8's testable properties).
func (e *Expander) globField(s string) []string {
	if e.cfg.Settings.Opt(settings.NoGlob) || !pattern.HasMeta(s, 0) {
		return []string{s}
	}
	matches := globPath(s)
	if len(matches) == 0 {
		return []string{s}
	}
	return matches
}

// globPath matches s, a possibly multi-component path containing glob
// metacharacters, against the filesystem, component by component, per
// POSIX globbing rules (spec.md §4.5 phase 6): "*" any non-slash run, "?"
// any single non-slash character, "[...]" bracket classes, and hidden
// files only matching a pattern that begins with a literal ".".
func globPath(s string) []string {
	abs := strings.HasPrefix(s, "/")
	comps := strings.Split(s, "/")
	start := "."
	if abs {
		start = "/"
		comps = comps[1:]
	}
	matches := []string{start}
	for _, comp := range comps {
		if comp == "" {
			continue
		}
		var next []string
		hasMeta := pattern.HasMeta(comp, 0)
		for _, dir := range matches {
			if !hasMeta {
				candidate := joinPath(dir, comp)
				if _, err := os.Lstat(candidate); err == nil {
					next = append(next, candidate)
				}
				continue
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			re, err := pattern.Regexp(comp, pattern.EntireString)
			if err != nil {
				continue
			}
			rx, err := regexp.Compile(re)
			if err != nil {
				continue
			}
			for _, ent := range entries {
				name := ent.Name()
				if strings.HasPrefix(name, ".") && !strings.HasPrefix(comp, ".") {
					continue
				}
				if rx.MatchString(name) {
					next = append(next, joinPath(dir, name))
				}
			}
		}
		matches = next
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		if !abs && strings.HasPrefix(m, "./") {
			m = m[2:]
		}
		out[i] = m
	}
	return out
}

// MatchPattern reports whether a shell pattern (as used by "case") matches s
// in its entirety.
func MatchPattern(pat, s string) bool {
	re, err := pattern.Regexp(pat, pattern.EntireString)
	if err != nil {
		return pat == s
	}
	rx, err := regexp.Compile(re)
	if err != nil {
		return pat == s
	}
	return rx.MatchString(s)
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	if dir == "." {
		return "./" + name
	}
	return dir + "/" + name
}

// stripAnchored removes the first match of an anchored regular expression
// from s: the matched prefix (front), or for an end-anchored expression the
// matched suffix that starts furthest left, i.e. the longest one (back).
// Used by the ${p#w}/${p##w} strippers and by ${p%%w}.
func stripAnchored(s, anchoredRe string, front bool) (string, error) {
	re, err := regexp.Compile(anchoredRe)
	if err != nil {
		return s, nil
	}
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s, nil
	}
	if front {
		return s[loc[1]:], nil
	}
	return s[:loc[0]], nil
}
