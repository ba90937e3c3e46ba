// Package settings implements C2: the shell's boolean option set, the
// positional-parameter stack, and option-argument scanning ("set"/the
// leading +/- argument scan described in spec.md §4.2), grounded on the
// option table idiom in mvdan.cc/sh/v3/interp (shellOptsTable/bashOptsTable)
// and the option name set in the original rsush settings.rs.
package settings

import "github.com/posh-shell/posh/internal/shellerr"

// Option identifies one of the shell's boolean options.
type Option int

const (
	AllExport Option = iota
	ErrExit
	IgnoreEOF
	Monitor
	NoClobber
	NoGlob
	NoExec
	NoLog
	Notify
	NoUnset
	Verbose
	Vi
	Emacs
	XTrace
	StrLossy
	Interactive

	numOptions
)

var names = map[Option]string{
	AllExport:   "allexport",
	ErrExit:     "errexit",
	IgnoreEOF:   "ignoreeof",
	Monitor:     "monitor",
	NoClobber:   "noclobber",
	NoGlob:      "noglob",
	NoExec:      "noexec",
	NoLog:       "nolog",
	Notify:      "notify",
	NoUnset:     "nounset",
	Verbose:     "verbose",
	Vi:          "vi",
	Emacs:       "emacs",
	XTrace:      "xtrace",
	StrLossy:    "strlossy",
	Interactive: "interactive",
}

var flags = map[byte]Option{
	'a': AllExport,
	'e': ErrExit,
	'C': NoClobber,
	'f': NoGlob,
	'n': NoExec,
	'u': NoUnset,
	'v': Verbose,
	'x': XTrace,
}

func byName(name string) (Option, bool) {
	for o, n := range names {
		if n == name {
			return o, true
		}
	}
	return 0, false
}

// ParamFrame is one positional-parameter frame: the shell/function name
// ($0) plus the ordered argument list ($1..).
type ParamFrame struct {
	Name string
	Args []string
}

// Settings holds the options, positional-argument stack, and shell name.
type Settings struct {
	opts  [numOptions]bool
	stack []ParamFrame
}

// New creates Settings with name as $0 and args as the initial positional
// parameters.
func New(name string, args []string) *Settings {
	return &Settings{stack: []ParamFrame{{Name: name, Args: args}}}
}

func (s *Settings) frame() *ParamFrame { return &s.stack[len(s.stack)-1] }

// Opt reports the current value of an option.
func (s *Settings) Opt(o Option) bool { return s.opts[o] }

// SetOpt sets an option's value.
func (s *Settings) SetOpt(o Option, v bool) { s.opts[o] = v }

// Name returns the current $0.
func (s *Settings) Name() string { return s.frame().Name }

// Args returns the current positional parameters ($1..).
func (s *Settings) Args() []string { return s.frame().Args }

// SetArgs replaces the current frame's positional parameters.
func (s *Settings) SetArgs(args []string) { s.frame().Args = args }

// Shift drops the first n positional parameters, clamped to the current
// length, per spec.md §4.8.
func (s *Settings) Shift(n int) {
	f := s.frame()
	if n > len(f.Args) {
		n = len(f.Args)
	}
	f.Args = f.Args[n:]
}

// PushFrame pushes a new positional-parameter frame for a function call.
func (s *Settings) PushFrame(name string, args []string) {
	s.stack = append(s.stack, ParamFrame{Name: name, Args: args})
}

// PopFrame pops the most recent positional-parameter frame, on function
// return.
func (s *Settings) PopFrame() {
	if len(s.stack) > 1 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// ParseResult is what ParseOptions returns on success.
type ParseResult struct {
	Index        int // index into argv of the first non-option argument
	SawDoubleDash bool
}

// UnknownOptionHook lets the caller (e.g. the interpreter's "set" builtin)
// recognize option letters this package does not itself define.
type UnknownOptionHook func(flag string, enable bool) (handled bool, err error)

// ParseOptions scans the leading +/- arguments of argv per spec.md §4.2:
// "-X"/"+X" toggle short flags, "-o NAME"/"+o NAME" toggle long-named
// options, "--" ends option parsing. Unrecognized options are delegated to
// hook; if hook is nil or declines, an error is returned.
func (s *Settings) ParseOptions(argv []string, hook UnknownOptionHook) (ParseResult, error) {
	i := 0
	for i < len(argv) {
		arg := argv[i]
		if arg == "--" {
			i++
			return ParseResult{Index: i, SawDoubleDash: true}, nil
		}
		if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
			break
		}
		if arg == "-" {
			i++
			break
		}
		enable := arg[0] == '-'
		body := arg[1:]
		if body[0] == 'o' {
			var name string
			if len(body) > 1 {
				name = body[1:]
				i++
			} else {
				i++
				if i >= len(argv) {
					return ParseResult{}, shellerr.New(shellerr.BadOption, arg, "option requires an argument")
				}
				name = argv[i]
				i++
			}
			o, ok := byName(name)
			if !ok {
				return ParseResult{}, shellerr.New(shellerr.BadOption, name, "invalid option name")
			}
			s.opts[o] = enable
			continue
		}
		for _, c := range body {
			o, ok := flags[byte(c)]
			if !ok {
				if hook != nil {
					handled, err := hook(string(c), enable)
					if err != nil {
						return ParseResult{}, err
					}
					if handled {
						continue
					}
				}
				return ParseResult{}, shellerr.New(shellerr.BadOption, string(c), "invalid option")
			}
			s.opts[o] = enable
		}
		i++
	}
	return ParseResult{Index: i}, nil
}

// Clone makes an independent copy of Settings for subshell isolation: option
// changes and positional-parameter pushes in the subshell never reach the
// parent, per spec.md §5 "Subshell semantics".
func (s *Settings) Clone() *Settings {
	c := &Settings{opts: s.opts, stack: append([]ParamFrame(nil), s.stack...)}
	return c
}

// OptByFlag resolves a short flag letter to an Option, for callers printing
// "set -o"-style listings.
func OptByFlag(flag byte) (Option, bool) { o, ok := flags[flag]; return o, ok }

// Name returns the long option name, for "set -o"-style listings.
func (o Option) Name() string { return names[o] }

// All returns every option in table order, for "set -o" with no argument.
func All() []Option {
	out := make([]Option, 0, numOptions)
	for o := Option(0); o < numOptions; o++ {
		out = append(out, o)
	}
	return out
}
