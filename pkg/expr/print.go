package expr

import (
	"math/big"
	"strings"
)

// String renders id in SMT-LIB style.
//
// Examples:
//
//	(+ x (* 2 y))
//	(<= x (- 3))
//	(/ 3 4)
func (m *Manager) String(id ID) string {
	var b strings.Builder
	m.write(&b, id)
	return b.String()
}

func (m *Manager) write(b *strings.Builder, id ID) {
	n := m.nodes[id]
	switch n.kind {
	case KindConst:
		b.WriteString(n.name)
	case KindNumeral:
		b.WriteString(FormatNumeral(n.num, n.sort))
	case KindTrue, KindFalse:
		b.WriteString(n.kind.String())
	default:
		b.WriteByte('(')
		b.WriteString(n.kind.String())
		for _, a := range n.args {
			b.WriteByte(' ')
			m.write(b, a)
		}
		b.WriteByte(')')
	}
}

// FormatNumeral renders r the way String renders a numeral of sort s:
// "3", "(- 3)", "(/ 3 4)", "(- (/ 3 4))". Real integers get a ".0" suffix.
func FormatNumeral(r *big.Rat, s Sort) string {
	abs := new(big.Rat).Abs(r)
	var body string
	switch {
	case abs.IsInt() && s == SortReal:
		body = abs.Num().String() + ".0"
	case abs.IsInt():
		body = abs.Num().String()
	default:
		body = "(/ " + abs.Num().String() + " " + abs.Denom().String() + ")"
	}
	if r.Sign() < 0 {
		return "(- " + body + ")"
	}
	return body
}
