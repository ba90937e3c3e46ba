// Package env implements C1: the shell's variable, alias, and function
// tables. It is modeled after the Variable/Environ/WriteEnviron shapes in
// mvdan.cc/sh/v3/expand, so the expander and interpreter share one
// variable-lookup contract, but the store itself is this repository's own.
package env

import (
	"fmt"
	"regexp"
	"sort"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/shellerr"
)

// Kind classifies the shape of a Variable's value.
type Kind uint8

const (
	Unset Kind = iota
	String
	Indexed
	Assoc
)

// Variable is one shell variable: its value plus the attributes that govern
// how it participates in expansion, export, and mutation.
type Variable struct {
	Set      bool
	Exported bool
	ReadOnly bool
	Kind     Kind

	Str string
	List []string
	Map  map[string]string
}

// IsSet reports whether the variable has ever been assigned, distinct from
// being merely declared read-only while unset.
func (v Variable) IsSet() bool { return v.Set }

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name is a legal shell variable/function name.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// Store holds the three disjoint variable classes (unexported, exported,
// read-only attribute set) plus the alias and function tables, per spec.md
// §3/§4.1. At most one of the unexported/exported maps is live for a given
// name; Store enforces this by keeping one map and an Exported flag per
// entry rather than two separate maps, which is equivalent but avoids
// duplicate bookkeeping when a name moves between the two.
type Store struct {
	vars      map[string]*Variable
	readOnly  map[string]bool
	aliases   map[string]string
	funcs     map[string]*syntax.Stmt
	allExport bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		vars:     make(map[string]*Variable),
		readOnly: make(map[string]bool),
		aliases:  make(map[string]string),
		funcs:    make(map[string]*syntax.Stmt),
	}
}

// SetAllExport toggles the allexport option; see spec.md §4.1.
func (s *Store) SetAllExport(on bool) { s.allExport = on }

// Get returns the value bound to name, or a zero Variable if unset.
func (s *Store) Get(name string) Variable {
	if v, ok := s.vars[name]; ok {
		return *v
	}
	return Variable{}
}

// HasReadOnlyAttr reports whether name has been marked read-only, even if
// currently unset.
func (s *Store) HasReadOnlyAttr(name string) bool { return s.readOnly[name] }

// SetReadOnlyAttr marks name read-only without changing its value.
func (s *Store) SetReadOnlyAttr(name string) error {
	if !ValidName(name) {
		return shellerr.New(shellerr.InvalidName, name, "not a valid identifier")
	}
	s.readOnly[name] = true
	if _, ok := s.vars[name]; !ok {
		s.vars[name] = &Variable{}
	}
	return nil
}

// SetVar assigns a plain string value to name, honoring allexport and the
// read-only attribute. See spec.md §4.1.
func (s *Store) SetVar(name, value string) error {
	if !ValidName(name) {
		return shellerr.New(shellerr.InvalidName, name, "not a valid identifier")
	}
	if s.readOnly[name] {
		return shellerr.New(shellerr.ReadOnly, name, fmt.Sprintf("%s: readonly variable", name))
	}
	v, ok := s.vars[name]
	if !ok {
		v = &Variable{}
		s.vars[name] = v
	}
	v.Set = true
	v.Kind = String
	v.Str = value
	v.List = nil
	v.Map = nil
	if s.allExport {
		v.Exported = true
	}
	return nil
}

// SetIndexed assigns an indexed-array value to name.
func (s *Store) SetIndexed(name string, list []string) error {
	if s.readOnly[name] {
		return shellerr.New(shellerr.ReadOnly, name, fmt.Sprintf("%s: readonly variable", name))
	}
	v, ok := s.vars[name]
	if !ok {
		v = &Variable{}
		s.vars[name] = v
	}
	v.Set = true
	v.Kind = Indexed
	v.List = list
	v.Str = ""
	v.Map = nil
	if s.allExport {
		v.Exported = true
	}
	return nil
}

// UnsetVar removes name entirely; a read-only name is refused with a
// ReadOnly error and left as it is.
func (s *Store) UnsetVar(name string) error {
	if s.readOnly[name] {
		return shellerr.New(shellerr.ReadOnly, name, fmt.Sprintf("%s: readonly variable", name))
	}
	delete(s.vars, name)
	return nil
}

// SetExported toggles whether name is materialized into the process
// environment passed to children.
func (s *Store) SetExported(name string, exported bool) error {
	if !ValidName(name) {
		return shellerr.New(shellerr.InvalidName, name, "not a valid identifier")
	}
	v, ok := s.vars[name]
	if !ok {
		v = &Variable{}
		s.vars[name] = v
	}
	v.Exported = exported
	return nil
}

// Names returns every currently-set variable name, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.vars))
	for n, v := range s.vars {
		if v.Set {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Environ materializes the exported variables as NAME=VALUE strings, in the
// form used to exec a child process.
func (s *Store) Environ() []string {
	var out []string
	for n, v := range s.vars {
		if v.Exported && v.Set && v.Kind == String {
			out = append(out, n+"="+v.Str)
		}
	}
	sort.Strings(out)
	return out
}

// Alias operations. Alias names are validated against the pattern in
// spec.md §6 ("Alias substitution rules") at the call site (interp), since
// that pattern is a command-word-position concern, not a storage concern.

func (s *Store) SetAlias(name, value string) { s.aliases[name] = value }
func (s *Store) UnsetAlias(name string)       { delete(s.aliases, name) }
func (s *Store) Alias(name string) (string, bool) {
	v, ok := s.aliases[name]
	return v, ok
}
func (s *Store) AliasNames() []string {
	names := make([]string, 0, len(s.aliases))
	for n := range s.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Function operations.

func (s *Store) SetFunc(name string, body *syntax.Stmt) error {
	if s.readOnly[name] {
		return shellerr.New(shellerr.ReadOnly, name, fmt.Sprintf("%s: readonly function", name))
	}
	s.funcs[name] = body
	return nil
}

func (s *Store) Func(name string) (*syntax.Stmt, bool) {
	f, ok := s.funcs[name]
	return f, ok
}

func (s *Store) UnsetFunc(name string) { delete(s.funcs, name) }

// Clone makes a deep-enough copy of the store for subshell isolation: value
// maps are copied so mutations inside a subshell never reach the parent, per
// spec.md §5 "Subshell semantics".
func (s *Store) Clone() *Store {
	c := New()
	c.allExport = s.allExport
	for n, v := range s.vars {
		nv := *v
		nv.List = append([]string(nil), v.List...)
		if v.Map != nil {
			nv.Map = make(map[string]string, len(v.Map))
			for k, val := range v.Map {
				nv.Map[k] = val
			}
		}
		c.vars[n] = &nv
	}
	for n, ro := range s.readOnly {
		c.readOnly[n] = ro
	}
	for n, a := range s.aliases {
		c.aliases[n] = a
	}
	for n, f := range s.funcs {
		c.funcs[n] = f
	}
	return c
}
