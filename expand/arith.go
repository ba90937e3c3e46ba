package expand

import (
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/shellerr"
)

// evalArithm implements spec.md §4.5 phase 4: arithmetic expansion over a
// parsed *syntax.ArithmExpr, with the operator precedence and assignment
// semantics of $((...)), grounded on
// _examples/mvdan-sh/expand/arith.go's Arithm, adapted to int64 and to this
// repository's own env.Store for variable reads/writes.
// Arithm evaluates an arithmetic expression for callers outside this
// package (ArithmCmd and the "for (( ))" arithmetic loop).
func (e *Expander) Arithm(expr syntax.ArithmExpr) (int64, error) { return e.evalArithm(expr) }

func (e *Expander) evalArithm(expr syntax.ArithmExpr) (int64, error) {
	switch x := expr.(type) {
	case *syntax.Word:
		lit, err := e.Literal(x)
		if err != nil {
			return 0, err
		}
		seen := 0
		for syntax.ValidName(lit) && seen < 8 {
			v, ok := e.rawParam(lit)
			if !ok || v == "" {
				break
			}
			lit = v
			seen++
		}
		return atoi(lit), nil

	case *syntax.ParenArithm:
		return e.evalArithm(x.X)

	case *syntax.UnaryArithm:
		if x.Op == syntax.Inc || x.Op == syntax.Dec {
			name := x.X.(*syntax.Word).Lit()
			raw, _ := e.rawParam(name)
			old := atoi(raw)
			val := old
			if x.Op == syntax.Inc {
				val++
			} else {
				val--
			}
			if err := e.cfg.Env.SetVar(name, strconv.FormatInt(val, 10)); err != nil {
				return 0, err
			}
			if x.Post {
				return old, nil
			}
			return val, nil
		}
		v, err := e.evalArithm(x.X)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case syntax.Not:
			return oneIf(v == 0), nil
		case syntax.BitNegation:
			return ^v, nil
		case syntax.Plus:
			return v, nil
		default: // syntax.Minus
			return -v, nil
		}

	case *syntax.BinaryArithm:
		switch x.Op {
		case syntax.Assgn, syntax.AddAssgn, syntax.SubAssgn,
			syntax.MulAssgn, syntax.QuoAssgn, syntax.RemAssgn,
			syntax.AndAssgn, syntax.OrAssgn, syntax.XorAssgn,
			syntax.ShlAssgn, syntax.ShrAssgn:
			return e.assignArithm(x)
		case syntax.TernQuest:
			cond, err := e.evalArithm(x.X)
			if err != nil {
				return 0, err
			}
			b2 := x.Y.(*syntax.BinaryArithm) // Op == TernColon
			if cond != 0 {
				return e.evalArithm(b2.X)
			}
			return e.evalArithm(b2.Y)
		}
		left, err := e.evalArithm(x.X)
		if err != nil {
			return 0, err
		}
		right, err := e.evalArithm(x.Y)
		if err != nil {
			return 0, err
		}
		return binArithm(x.Op, left, right)

	default:
		return 0, shellerr.New(shellerr.InternalInvariant, "", "unexpected arithmetic expression")
	}
}

func (e *Expander) assignArithm(b *syntax.BinaryArithm) (int64, error) {
	name := b.X.(*syntax.Word).Lit()
	raw, _ := e.rawParam(name)
	val := atoi(raw)
	argV, err := e.evalArithm(b.Y)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case syntax.Assgn:
		val = argV
	case syntax.AddAssgn:
		val += argV
	case syntax.SubAssgn:
		val -= argV
	case syntax.MulAssgn:
		val *= argV
	case syntax.QuoAssgn:
		if argV == 0 {
			return 0, shellerr.New(shellerr.InternalInvariant, name, "division by zero")
		}
		val /= argV
	case syntax.RemAssgn:
		if argV == 0 {
			return 0, shellerr.New(shellerr.InternalInvariant, name, "division by zero")
		}
		val %= argV
	case syntax.AndAssgn:
		val &= argV
	case syntax.OrAssgn:
		val |= argV
	case syntax.XorAssgn:
		val ^= argV
	case syntax.ShlAssgn:
		val <<= uint(argV)
	case syntax.ShrAssgn:
		val >>= uint(argV)
	}
	if err := e.cfg.Env.SetVar(name, strconv.FormatInt(val, 10)); err != nil {
		return 0, err
	}
	return val, nil
}

func oneIf(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// atoi parses s (surrounding whitespace trimmed) as a base-10 integer,
// yielding 0 for an unset or non-numeric value, including one with trailing
// non-digits such as "12abc", per spec.md §4.5 phase 4.
func atoi(s string) int64 {
	s = strings.TrimSpace(s)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func binArithm(op syntax.BinAritOperator, x, y int64) (int64, error) {
	switch op {
	case syntax.Add:
		return x + y, nil
	case syntax.Sub:
		return x - y, nil
	case syntax.Mul:
		return x * y, nil
	case syntax.Quo:
		if y == 0 {
			return 0, shellerr.New(shellerr.InternalInvariant, "", "division by zero")
		}
		return x / y, nil
	case syntax.Rem:
		if y == 0 {
			return 0, shellerr.New(shellerr.InternalInvariant, "", "division by zero")
		}
		return x % y, nil
	case syntax.Pow:
		return intPow(x, y), nil
	case syntax.Eql:
		return oneIf(x == y), nil
	case syntax.Gtr:
		return oneIf(x > y), nil
	case syntax.Lss:
		return oneIf(x < y), nil
	case syntax.Neq:
		return oneIf(x != y), nil
	case syntax.Leq:
		return oneIf(x <= y), nil
	case syntax.Geq:
		return oneIf(x >= y), nil
	case syntax.And:
		return x & y, nil
	case syntax.Or:
		return x | y, nil
	case syntax.Xor:
		return x ^ y, nil
	case syntax.Shr:
		return x >> uint(y), nil
	case syntax.Shl:
		return x << uint(y), nil
	case syntax.AndArit:
		return oneIf(x != 0 && y != 0), nil
	case syntax.OrArit:
		return oneIf(x != 0 || y != 0), nil
	default: // syntax.Comma
		return y, nil
	}
}

func intPow(a, b int64) int64 {
	p := int64(1)
	for b > 0 {
		if b&1 != 0 {
			p *= a
		}
		b >>= 1
		a *= a
	}
	return p
}
