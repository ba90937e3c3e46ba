// Package expand implements C5: word expansion. It walks the externally
// parsed mvdan.cc/sh/v3/syntax AST for a single syntax.Word and produces
// either a joined string (Literal, for assignments/case labels/redirection
// targets) or a field vector (Fields, for command arguments), applying the
// seven phases from spec.md §4.5 in order: tilde, parameter, command
// substitution, arithmetic, field splitting, pathname expansion, quote
// removal.
//
// Grounded on the control-flow idiom of mvdan.cc/sh/v3/expand's expand.go
// and arith.go, rewritten from scratch against this repository's own
// env/settings state rather than imported.
package expand

import (
	"os"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/shellerr"
)

// CmdSubstRunner runs a command list in a subshell for command substitution
// and returns its captured stdout and exit status; the Expander strips
// trailing newlines itself. Implemented by the interpreter; expand only depends on this
// narrow interface to avoid an import cycle.
type CmdSubstRunner func(stmts []*syntax.Stmt) (output string, status int, err error)

// Config bundles everything the expander needs beyond the word itself.
type Config struct {
	Env        *env.Store
	Settings   *settings.Settings
	CmdSubst   CmdSubstRunner
	LastStatus func() int
	LastBgPid  func() int
	Dollar     int // $$, the shell's own pid
}

// Expander expands syntax.Word values against one Config.
type Expander struct {
	cfg Config

	// lastCmdSubstStatus and hadCmdSubst track the exit status of the most
	// recently evaluated command substitution, so a bare assignment (no
	// command word, hence nothing else to set $? from) can still report it,
	// per spec.md §4.7 "Simple command" and POSIX's $(...) status rule.
	lastCmdSubstStatus int
	hadCmdSubst        bool
}

func New(cfg Config) *Expander { return &Expander{cfg: cfg} }

// part is one contiguous run of text contributed by a single word part,
// tagged with whether it came from inside quotes (and so is exempt from
// splitting/globbing).
type part struct {
	text   string
	quoted bool
}

// field is one in-progress output field: a sequence of parts glued
// together, per spec.md §4.5 "Quoted expansions adjacent to literal text
// glue correctly".
type field struct {
	parts []part
}

func (f *field) raw() string {
	var b strings.Builder
	for _, p := range f.parts {
		b.WriteString(p.text)
	}
	return b.String()
}

// allQuoted reports whether every part of the field came from inside
// quotes, meaning it must be exempt from field splitting and globbing.
func (f *field) allQuoted() bool {
	for _, p := range f.parts {
		if !p.quoted {
			return false
		}
	}
	return len(f.parts) > 0 || true
}

func (f *field) anyUnquoted() bool {
	for _, p := range f.parts {
		if !p.quoted {
			return true
		}
	}
	return false
}

// Literal expands w in string mode: the joined result of every part with no
// field splitting or globbing, used for assignments, case labels, parameter
// names, and redirection targets, per spec.md §4.5.
func (e *Expander) Literal(w *syntax.Word) (string, error) {
	flds, err := e.expandToFields(w, true)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range flds {
		b.WriteString(f.raw())
	}
	return b.String(), nil
}

// Fields expands w in vector mode: field splitting and pathname expansion
// are applied to unquoted parts, used for command arguments, per
// spec.md §4.5.
func (e *Expander) Fields(w *syntax.Word) ([]string, error) {
	flds, err := e.expandToFields(w, false)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range flds {
		if len(f.parts) == 0 {
			continue
		}
		if f.allQuoted() && !f.anyUnquoted() {
			out = append(out, f.raw())
			continue
		}
		hasQuoted := false
		for _, p := range f.parts {
			if p.quoted {
				hasQuoted = true
				break
			}
		}
		for _, piece := range e.splitIFS(f) {
			if hasQuoted {
				out = append(out, piece)
				continue
			}
			out = append(out, e.globField(piece)...)
		}
	}
	return out, nil
}

// FieldsOfWords expands and concatenates a list of words into one field
// vector, used for `for NAME in WORDS` and similar.
func (e *Expander) FieldsOfWords(ws []syntax.Word) ([]string, error) {
	var out []string
	for i := range ws {
		fs, err := e.Fields(&ws[i])
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

// expandToFields is the shared core: it walks the word's parts, expanding
// parameter/command/arithmetic substitutions and splicing in new fields
// exactly where a "$@"-like expansion, quoted or not, demands it (string mode
// never splices; it simply concatenates).
func (e *Expander) expandToFields(w *syntax.Word, stringMode bool) ([]field, error) {
	flds := []field{{}}
	for i, wp := range w.Parts {
		switch p := wp.(type) {
		case *syntax.Lit:
			text := p.Value
			if i == 0 {
				text = e.expandTilde(text)
			}
			e.appendLast(&flds, part{text: unescapeLit(text), quoted: false})

		case *syntax.SglQuoted:
			e.appendLast(&flds, part{text: p.Value, quoted: true})

		case *syntax.DblQuoted:
			pieces, err := e.expandDblQuoted(p, stringMode)
			if err != nil {
				return nil, err
			}
			e.spliceFields(&flds, pieces, stringMode)

		case *syntax.ParamExp:
			pieces, err := e.expandParamExpFields(p, stringMode)
			if err != nil {
				return nil, err
			}
			e.spliceFields(&flds, pieces, stringMode)

		case *syntax.CmdSubst:
			out, status, err := e.runCmdSubst(p.Stmts)
			if err != nil {
				return nil, err
			}
			_ = status
			e.appendLast(&flds, part{text: out, quoted: false})

		case *syntax.ArithmExp:
			v, err := e.evalArithm(p.X)
			if err != nil {
				return nil, err
			}
			e.appendLast(&flds, part{text: strconv.FormatInt(v, 10), quoted: false})

		default:
			// Bash/non-POSIX extensions (ExtGlob, ProcSubst, ArrayExpr) are
			// out of scope; they contribute nothing to the result.
		}
	}
	return flds, nil
}

func (e *Expander) appendLast(flds *[]field, p part) {
	last := &(*flds)[len(*flds)-1]
	last.parts = append(last.parts, p)
}

// spliceFields appends pieces produced by a quoted or parameter expansion.
// In string mode everything glues into the current field. In field mode, a
// single piece glues into the current field; with more than one piece (as
// from "$@", quoted or not) the first glues and each later piece starts a new
// field, the last one staying open for following text, per spec.md §4.5
// "Special forms of $@/$*".
func (e *Expander) spliceFields(flds *[]field, pieces []part, stringMode bool) {
	if len(pieces) == 0 {
		return
	}
	if stringMode || len(pieces) == 1 {
		for _, p := range pieces {
			e.appendLast(flds, p)
		}
		return
	}
	e.appendLast(flds, pieces[0])
	for _, p := range pieces[1 : len(pieces)-1] {
		*flds = append(*flds, field{parts: []part{p}})
	}
	*flds = append(*flds, field{parts: []part{pieces[len(pieces)-1]}})
}

func (e *Expander) expandDblQuoted(dq *syntax.DblQuoted, stringMode bool) ([]part, error) {
	// "$@" and "$*" are special: they may expand to many quoted pieces or
	// to nothing at all, so they're handled before the generic join.
	if len(dq.Parts) == 1 {
		if pe, ok := dq.Parts[0].(*syntax.ParamExp); ok && pe.Param.Value == "@" && pe.Ind == nil {
			args := e.positional()
			if len(args) == 0 {
				return nil, nil
			}
			out := make([]part, len(args))
			for i, a := range args {
				out[i] = part{text: a, quoted: true}
			}
			return out, nil
		}
		if pe, ok := dq.Parts[0].(*syntax.ParamExp); ok && pe.Param.Value == "*" && pe.Ind == nil {
			sep := e.ifsFirstChar()
			return []part{{text: strings.Join(e.positional(), sep), quoted: true}}, nil
		}
	}
	var b strings.Builder
	for _, wp := range dq.Parts {
		switch p := wp.(type) {
		case *syntax.Lit:
			b.WriteString(dblQuotedUnescape(p.Value))
		case *syntax.ParamExp:
			v, err := e.expandParam(p)
			if err != nil {
				return nil, err
			}
			b.WriteString(v)
		case *syntax.CmdSubst:
			out, _, err := e.runCmdSubst(p.Stmts)
			if err != nil {
				return nil, err
			}
			b.WriteString(out)
		case *syntax.ArithmExp:
			v, err := e.evalArithm(p.X)
			if err != nil {
				return nil, err
			}
			b.WriteString(strconv.FormatInt(v, 10))
		}
	}
	return []part{{text: b.String(), quoted: true}}, nil
}

// expandParamExpFields expands a bare (not inside double quotes) $@/$*/
// ordinary parameter expansion into one or more unquoted parts.
func (e *Expander) expandParamExpFields(p *syntax.ParamExp, stringMode bool) ([]part, error) {
	if p.Param.Value == "@" && p.Ind == nil {
		args := e.positional()
		out := make([]part, len(args))
		for i, a := range args {
			out[i] = part{text: a, quoted: false}
		}
		return out, nil
	}
	v, err := e.expandParam(p)
	if err != nil {
		return nil, err
	}
	return []part{{text: v, quoted: false}}, nil
}

func (e *Expander) positional() []string { return e.cfg.Settings.Args() }

func (e *Expander) ifsFirstChar() string {
	ifs := e.cfg.Env.Get("IFS")
	if !ifs.Set {
		return " "
	}
	if ifs.Str == "" {
		return ""
	}
	return string(ifs.Str[0])
}

func (e *Expander) runCmdSubst(stmts []*syntax.Stmt) (string, int, error) {
	if e.cfg.CmdSubst == nil {
		return "", 0, shellerr.New(shellerr.InternalInvariant, "", "no command substitution runner configured")
	}
	out, status, err := e.cfg.CmdSubst(stmts)
	e.hadCmdSubst = true
	e.lastCmdSubstStatus = status
	if err != nil {
		return "", status, err
	}
	return strings.TrimRight(out, "\n"), status, nil
}

// ResetCmdSubstStatus clears the last-command-substitution tracking before
// expanding one statement's words/assignments, so a stale status from an
// earlier statement can't leak into this one's $?.
func (e *Expander) ResetCmdSubstStatus() {
	e.hadCmdSubst = false
	e.lastCmdSubstStatus = 0
}

// LastCmdSubstStatus reports the exit status of the most recent command
// substitution since the last ResetCmdSubstStatus call, and whether one ran
// at all.
func (e *Expander) LastCmdSubstStatus() (status int, ok bool) {
	return e.lastCmdSubstStatus, e.hadCmdSubst
}

// expandTilde implements spec.md §4.5 phase 1: a leading unquoted ~ (or
// ~name) expands to $HOME (or name's home), preserving any path tail.
func (e *Expander) expandTilde(lit string) string {
	if !strings.HasPrefix(lit, "~") {
		return lit
	}
	rest := lit[1:]
	name := rest
	tail := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		name = rest[:idx]
		tail = rest[idx:]
	}
	var home string
	if name == "" {
		v := e.cfg.Env.Get("HOME")
		if v.Set {
			home = v.Str
		} else if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	} else {
		home = lookupUserHome(name)
		if home == "" {
			return lit
		}
	}
	return home + tail
}

func unescapeLit(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			b.WriteByte(s[i])
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// dblQuotedUnescape handles the restricted backslash escapes valid inside
// double quotes, per spec.md §4.5 "Quoting rules".
func dblQuotedUnescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '$', '`', '"', '\\', '\n':
				i++
				if s[i] == '\n' {
					continue
				}
				b.WriteByte(s[i])
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// AssignWord expands the value side of a NAME=VALUE assignment: string
// mode, per spec.md §4.5's "variable-assignment prefix" rule.
func (e *Expander) AssignWord(w syntax.Word) (string, error) { return e.Literal(&w) }
