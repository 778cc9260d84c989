// Package problem loads arithmetic satisfiability problems from YAML files.
//
// A problem file declares constants and lists assertions in infix syntax:
//
//	name: small
//	declare:
//	  x: int
//	  y: int
//	  r: real
//	assert:
//	  - "x + 2*y <= 10"
//	  - "x * y == 12 || mod(x, 3) == 1"
//	  - "r > 0.5 && r * r < 3"
//
// Infix parsing uses the expr-lang parser; only the syntax tree is used,
// nothing is compiled or evaluated.
//
// Supported syntax:
//
//   - Arithmetic: + - * / % ** ^ and unary minus
//   - Comparisons: == != < <= > >=
//   - Boolean: and or not && || ! true false
//   - Calls: abs(a) div(a, b) mod(a, b) rem(a, b) to_int(a) int(a)
//     floor(a) to_real(a) real(a) distinct(a, b, ...) implies(p, q)
//   - Numerals: integers (Int) and decimals (Real, taken exactly)
package problem

import (
	"math/big"
	"os"
	"sort"
	"strconv"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gitrdm/goslsarith/pkg/expr"
)

// ErrUnsupported is returned for syntax outside the supported subset.
var ErrUnsupported = errors.New("problem: unsupported construct")

// File is the YAML form of a problem.
type File struct {
	Name    string            `yaml:"name"`
	Declare map[string]string `yaml:"declare" validate:"required,dive,keys,required,endkeys,oneof=int real bool"`
	Assert  []string          `yaml:"assert" validate:"dive,required"`
}

// Problem is a parsed problem: its constants and assertions live in M.
type Problem struct {
	Name    string
	M       *expr.Manager
	Consts  []expr.ID
	Asserts []expr.ID
	// Sources holds the text of each assertion.
	Sources []string
}

var fileValidate = validator.New()

// Load reads and parses a problem file.
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read problem %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load problem %s", path)
	}
	return p, nil
}

// Parse parses the YAML form of a problem.
func Parse(data []byte) (*Problem, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	return f.Build()
}

// Build declares the constants of f and parses its assertions.
func (f File) Build() (*Problem, error) {
	if err := fileValidate.Struct(f); err != nil {
		return nil, errors.Wrap(err, "invalid problem")
	}
	p := &Problem{Name: f.Name, M: expr.NewManager()}
	names := make([]string, 0, len(f.Declare))
	for name := range f.Declare {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.Declare(name, f.Declare[name]); err != nil {
			return nil, err
		}
	}
	for _, src := range f.Assert {
		if err := p.Assert(src); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// New returns an empty problem.
func New(name string) *Problem {
	return &Problem{Name: name, M: expr.NewManager()}
}

// Declare adds a constant of sort "int", "real" or "bool".
func (p *Problem) Declare(name, sortName string) error {
	var s expr.Sort
	switch sortName {
	case "int":
		s = expr.SortInt
	case "real":
		s = expr.SortReal
	case "bool":
		s = expr.SortBool
	default:
		return errors.Errorf("declare %s: unknown sort %q", name, sortName)
	}
	if _, ok := p.M.Lookup(name); ok {
		return errors.Errorf("declare %s: already declared", name)
	}
	p.Consts = append(p.Consts, p.M.Const(name, s))
	return nil
}

// Assert parses src and adds it as an assertion. src must be Boolean.
func (p *Problem) Assert(src string) error {
	id, err := p.Parse(src)
	if err != nil {
		return err
	}
	if p.M.Sort(id) != expr.SortBool {
		return errors.Errorf("assert %q: not a Boolean formula", src)
	}
	p.Asserts = append(p.Asserts, id)
	p.Sources = append(p.Sources, src)
	return nil
}

// Parse converts an infix expression over the declared constants.
func (p *Problem) Parse(src string) (id expr.ID, err error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return expr.Invalid, errors.Wrapf(err, "parse %q", src)
	}
	defer func() {
		switch r := recover().(type) {
		case nil:
		case convertError:
			id, err = expr.Invalid, errors.Wrapf(r.err, "parse %q", src)
		case string:
			// expr.Manager reports sort errors by panicking with a message.
			id, err = expr.Invalid, errors.Errorf("parse %q: %s", src, r)
		default:
			panic(r)
		}
	}()
	c := converter{m: p.M}
	return c.convert(tree.Node), nil
}

// Term looks up a declared constant.
func (p *Problem) Term(name string) (expr.ID, bool) {
	return p.M.Lookup(name)
}

type convertError struct{ err error }

func fail(err error) { panic(convertError{err}) }

func unsupported(format string, args ...any) {
	fail(errors.Wrapf(ErrUnsupported, format, args...))
}

type converter struct {
	m *expr.Manager
}

func (c converter) convert(n ast.Node) expr.ID {
	switch n := n.(type) {
	case *ast.IntegerNode:
		return c.m.Int(int64(n.Value))
	case *ast.FloatNode:
		return c.m.Num(decimal(n.Value), expr.SortReal)
	case *ast.BoolNode:
		if n.Value {
			return c.m.True()
		}
		return c.m.False()
	case *ast.IdentifierNode:
		id, ok := c.m.Lookup(n.Value)
		if !ok {
			fail(errors.Errorf("undeclared constant %q", n.Value))
		}
		return id
	case *ast.UnaryNode:
		return c.unary(n.Operator, c.convert(n.Node))
	case *ast.BinaryNode:
		return c.binary(n.Operator, c.convert(n.Left), c.convert(n.Right))
	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			unsupported("call of %T", n.Callee)
		}
		return c.call(callee.Value, n.Arguments)
	case *ast.BuiltinNode:
		return c.call(n.Name, n.Arguments)
	}
	unsupported("%T", n)
	return expr.Invalid
}

// decimal converts a parsed decimal back to its shortest exact form, so
// 0.1 is 1/10 rather than the nearest binary fraction.
func decimal(f float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
	if !ok {
		fail(errors.Errorf("numeral %v", f))
	}
	return r
}

func (c converter) unary(op string, a expr.ID) expr.ID {
	switch op {
	case "-":
		if r, ok := c.m.Numeral(a); ok {
			return c.m.Num(new(big.Rat).Neg(r), c.m.Sort(a))
		}
		return c.m.Neg(a)
	case "+":
		c.arith(op, a)
		return a
	case "not", "!":
		return c.m.Not(a)
	}
	unsupported("unary operator %s", op)
	return expr.Invalid
}

func (c converter) binary(op string, a, b expr.ID) expr.ID {
	switch op {
	case "+":
		return c.m.Add(a, b)
	case "-":
		return c.m.Sub(a, b)
	case "*":
		return c.m.Mul(a, b)
	case "/":
		return c.m.Div(a, b)
	case "%":
		return c.m.Mod(a, b)
	case "**", "^":
		return c.m.Power(a, b)
	case "==":
		return c.m.Eq(a, b)
	case "!=":
		if c.m.IsArith(a) {
			return c.m.Distinct(a, b)
		}
		return c.m.Not(c.m.Eq(a, b))
	case "<":
		return c.m.Lt(a, b)
	case "<=":
		return c.m.Le(a, b)
	case ">":
		return c.m.Gt(a, b)
	case ">=":
		return c.m.Ge(a, b)
	case "and", "&&":
		return c.m.And(a, b)
	case "or", "||":
		return c.m.Or(a, b)
	}
	unsupported("operator %s", op)
	return expr.Invalid
}

func (c converter) call(name string, nodes []ast.Node) expr.ID {
	args := make([]expr.ID, len(nodes))
	for i, n := range nodes {
		args[i] = c.convert(n)
	}
	arity := func(n int) {
		if len(args) != n {
			fail(errors.Errorf("%s takes %d arguments, got %d", name, n, len(args)))
		}
	}
	switch name {
	case "abs":
		arity(1)
		return c.m.Abs(args[0])
	case "div":
		arity(2)
		return c.m.IDiv(args[0], args[1])
	case "mod":
		arity(2)
		return c.m.Mod(args[0], args[1])
	case "rem":
		arity(2)
		return c.m.Rem(args[0], args[1])
	case "to_int", "int", "floor":
		arity(1)
		return c.m.ToInt(args[0])
	case "to_real", "real", "float":
		arity(1)
		return c.m.ToReal(args[0])
	case "distinct":
		if len(args) < 2 {
			fail(errors.Errorf("distinct takes at least 2 arguments, got %d", len(args)))
		}
		return c.m.Distinct(args...)
	case "implies":
		arity(2)
		return c.m.Implies(args[0], args[1])
	}
	unsupported("function %s", name)
	return expr.Invalid
}

func (c converter) arith(op string, a expr.ID) {
	if !c.m.IsArith(a) {
		fail(errors.Errorf("operator %s needs an arithmetic argument", op))
	}
}
