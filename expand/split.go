package expand

import "strings"

// splitIFS applies spec.md §4.5 phase 5 field splitting to one unquoted
// field's raw text, leaving already-quoted text untouched: only whitespace
// IFS runs collapse, each non-whitespace IFS char is a single boundary, and
// an unset/default IFS behaves like " \t\n".
func (e *Expander) splitIFS(f field) []string {
	if f.allQuoted() && !f.anyUnquoted() {
		return []string{f.raw()}
	}
	ifsVar := e.cfg.Env.Get("IFS")
	var ifs string
	defaultIFS := !ifsVar.Set
	if ifsVar.Set {
		ifs = ifsVar.Str
	} else {
		ifs = " \t\n"
	}
	if ifs == "" {
		return []string{f.raw()}
	}

	isWS := func(r byte) bool { return r == ' ' || r == '\t' || r == '\n' }
	isIFS := func(r byte) bool { return strings.IndexByte(ifs, r) >= 0 }

	var fields []string
	var cur strings.Builder
	haveCur := false
	flush := func() {
		fields = append(fields, cur.String())
		cur.Reset()
		haveCur = false
	}

	i := 0
	n := len(f.parts)
	// Walk part by part so quoted runs are copied verbatim and never treated
	// as split points, even if they contain IFS characters.
	skippingLeadingWS := true
	for pi := 0; pi < n; pi++ {
		p := f.parts[pi]
		if p.quoted {
			cur.WriteString(p.text)
			haveCur = true
			skippingLeadingWS = false
			continue
		}
		for i = 0; i < len(p.text); i++ {
			c := p.text[i]
			if !isIFS(c) {
				cur.WriteByte(c)
				haveCur = true
				skippingLeadingWS = false
				continue
			}
			if defaultIFS || isWS(c) {
				if skippingLeadingWS {
					continue
				}
				if haveCur {
					flush()
				}
				skippingLeadingWS = true
				continue
			}
			// Non-whitespace IFS char: always a boundary, even producing an
			// empty field between two of them.
			flush()
			skippingLeadingWS = false
		}
	}
	if haveCur {
		flush()
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
