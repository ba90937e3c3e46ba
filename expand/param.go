package expand

import (
	"os/user"
	"regexp"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/pattern"
	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/shellerr"
)

func isSpecialParam(name string) bool {
	switch name {
	case "@", "*", "#", "?", "-", "$", "!", "0":
		return true
	}
	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		return true
	}
	return false
}

// rawParam resolves a parameter name to its raw string value and whether it
// is set, per spec.md §4.5 phase 2 and §6's special variables.
func (e *Expander) rawParam(name string) (string, bool) {
	switch name {
	case "@":
		return strings.Join(e.positional(), " "), true
	case "*":
		return strings.Join(e.positional(), e.ifsFirstChar()), true
	case "#":
		return strconv.Itoa(len(e.positional())), true
	case "?":
		return strconv.Itoa(e.cfg.LastStatus()), true
	case "-":
		return e.optionFlags(), true
	case "$":
		return strconv.Itoa(e.cfg.Dollar), true
	case "!":
		pid := e.cfg.LastBgPid()
		if pid == 0 {
			return "", false
		}
		return strconv.Itoa(pid), true
	case "0":
		return e.cfg.Settings.Name(), true
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 1 {
		args := e.positional()
		if n <= len(args) {
			return args[n-1], true
		}
		return "", false
	}
	v := e.cfg.Env.Get(name)
	if !v.Set {
		return "", false
	}
	switch v.Kind {
	case env.Indexed:
		return strings.Join(v.List, " "), true
	default:
		return v.Str, true
	}
}

func (e *Expander) optionFlags() string {
	var b strings.Builder
	for _, o := range settings.All() {
		if !e.cfg.Settings.Opt(o) {
			continue
		}
		// Only options with a single-letter flag form are shown in $-.
		for flag := byte('a'); flag <= 'z'; flag++ {
			if fo, ok := settings.OptByFlag(flag); ok && fo == o {
				b.WriteByte(flag)
			}
		}
	}
	return b.String()
}

// expandParam expands a full ParamExp node, including length and the
// modifier/pattern-stripper forms, per spec.md §4.5 phase 2.
func (e *Expander) expandParam(p *syntax.ParamExp) (string, error) {
	name := p.Param.Value
	raw, isSet := e.rawParam(name)

	if p.Length {
		if name == "@" || name == "*" {
			return strconv.Itoa(len(e.positional())), nil
		}
		return strconv.Itoa(len(raw)), nil
	}

	if p.Exp != nil {
		return e.applyExpansion(name, raw, isSet, p.Exp)
	}

	if !isSet && e.cfg.Settings.Opt(settings.NoUnset) && !isSpecialParam(name) {
		return "", shellerr.New(shellerr.ParamUnsetOrNull, name, name+": unbound variable")
	}
	return raw, nil
}

// applyExpansion implements the ${p:-w} family of modifiers and the
// ${p%w}/${p#w} pattern strippers, per spec.md §4.5 phase 2.
func (e *Expander) applyExpansion(name, raw string, isSet bool, exp *syntax.Expansion) (string, error) {
	null := !isSet || raw == ""
	switch exp.Op {
	case syntax.SubstColSub, syntax.SubstSub:
		colon := exp.Op == syntax.SubstColSub
		if (colon && null) || (!colon && !isSet) {
			return e.Literal(&exp.Word)
		}
		return raw, nil

	case syntax.SubstColAssgn, syntax.SubstAssgn:
		colon := exp.Op == syntax.SubstColAssgn
		if (colon && null) || (!colon && !isSet) {
			val, err := e.Literal(&exp.Word)
			if err != nil {
				return "", err
			}
			if isSpecialParam(name) {
				return "", shellerr.New(shellerr.ReadOnly, name, "cannot assign to a special parameter")
			}
			if err := e.cfg.Env.SetVar(name, val); err != nil {
				return "", err
			}
			return val, nil
		}
		return raw, nil

	case syntax.SubstColQuest, syntax.SubstQuest:
		colon := exp.Op == syntax.SubstColQuest
		if (colon && null) || (!colon && !isSet) {
			msg, err := e.Literal(&exp.Word)
			if err != nil {
				return "", err
			}
			if msg == "" {
				msg = "parameter null or not set"
			}
			return "", shellerr.New(shellerr.ParamUnsetOrNull, name, name+": "+msg)
		}
		return raw, nil

	case syntax.SubstColAdd, syntax.SubstAdd:
		colon := exp.Op == syntax.SubstColAdd
		set := isSet && !(colon && null)
		if colon {
			set = !null
		}
		if set {
			return e.Literal(&exp.Word)
		}
		return "", nil

	case syntax.RemSmallSuffix, syntax.RemLargeSuffix:
		return e.stripSuffix(raw, exp)
	case syntax.RemSmallPrefix, syntax.RemLargePrefix:
		return e.stripPrefix(raw, exp)
	}
	return raw, nil
}

func (e *Expander) stripRegexp(w *syntax.Word, shortest bool) (string, error) {
	pat, err := e.Literal(w)
	if err != nil {
		return "", err
	}
	mode := pattern.Mode(0)
	if shortest {
		mode = pattern.Shortest
	}
	return pattern.Regexp(pat, mode)
}

func (e *Expander) stripPrefix(raw string, exp *syntax.Expansion) (string, error) {
	re, err := e.stripRegexp(&exp.Word, exp.Op == syntax.RemSmallPrefix)
	if err != nil || re == "" {
		return raw, nil
	}
	return stripAnchored(raw, "^(?:"+re+")", true)
}

func (e *Expander) stripSuffix(raw string, exp *syntax.Expansion) (string, error) {
	shortest := exp.Op == syntax.RemSmallSuffix
	re, err := e.stripRegexp(&exp.Word, shortest)
	if err != nil || re == "" {
		return raw, nil
	}
	if shortest {
		rx, err := regexp.Compile("^(?:" + re + ")$")
		if err != nil {
			return raw, nil
		}
		for i := len(raw); i >= 0; i-- {
			if rx.MatchString(raw[i:]) {
				return raw[:i], nil
			}
		}
		return raw, nil
	}
	return stripAnchored(raw, "(?:"+re+")$", false)
}

// lookupUserHome resolves ~name to that user's home directory, or "" if
// unknown.
func lookupUserHome(name string) string {
	u, err := user.Lookup(name)
	if err != nil {
		return ""
	}
	return u.HomeDir
}
