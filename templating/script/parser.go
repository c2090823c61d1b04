package script

import (
	"fmt"
)

// Program is a parsed statement list.
type Program struct {
	Body []Stmt
}

// Parse tokenizes and parses program text.
func Parse(src string) (*Program, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}

	ps := &parser{toks: toks}

	body, err := ps.program()
	if err != nil {
		return nil, err
	}

	return &Program{Body: body}, nil
}

type parser struct {
	toks []Token
	i    int
}

// binding powers
const (
	bpCond    = 5
	bpOr      = 10
	bpAnd     = 20
	bpNot     = 30
	bpCompare = 40
	bpAdd     = 60
	bpMul     = 70
	bpUnary   = 80
	bpPow     = 90
)

func (ps *parser) peek() Token {
	if ps.i >= len(ps.toks) {
		return ps.toks[len(ps.toks)-1]
	}

	return ps.toks[ps.i]
}

func (ps *parser) peekN(n int) Token {
	if ps.i+n >= len(ps.toks) {
		return ps.toks[len(ps.toks)-1]
	}

	return ps.toks[ps.i+n]
}

func (ps *parser) next() Token {
	tk := ps.peek()
	if ps.i < len(ps.toks) {
		ps.i++
	}

	return tk
}

func (ps *parser) isOp(text string) bool {
	tk := ps.peek()
	return tk.Kind == OP && tk.Text == text
}

func (ps *parser) isKeyword(word string) bool {
	tk := ps.peek()
	return tk.Kind == KEYWORD && tk.Text == word
}

func (ps *parser) errAt(tk Token, format string, args ...any) error {
	return &SyntaxError{Line: tk.Pos.Line, Col: tk.Pos.Col, Msg: fmt.Sprintf(format, args...)}
}

func (ps *parser) unexpected() error {
	tk := ps.peek()
	return ps.errAt(tk, "unexpected %s", tk)
}

func (ps *parser) needOp(text string) (Token, error) {
	if !ps.isOp(text) {
		tk := ps.peek()
		return tk, ps.errAt(tk, "expected %q, got %s", text, tk)
	}

	return ps.next(), nil
}

func (ps *parser) needKeyword(word string) error {
	if !ps.isKeyword(word) {
		tk := ps.peek()
		return ps.errAt(tk, "expected %q, got %s", word, tk)
	}

	ps.next()

	return nil
}

func (ps *parser) needEndOfLine() error {
	switch ps.peek().Kind {
	case NEWLINE:
		ps.next()
		return nil
	case EOF, DEDENT:
		return nil
	}

	return ps.unexpected()
}

// statements

func (ps *parser) program() ([]Stmt, error) {
	var body []Stmt

	for {
		switch ps.peek().Kind {
		case EOF:
			return body, nil
		case NEWLINE:
			ps.next()
			continue
		case INDENT:
			return nil, ps.errAt(ps.peek(), "unexpected indent")
		}

		st, err := ps.statement()
		if err != nil {
			return nil, err
		}

		body = append(body, st)
	}
}

func (ps *parser) statement() (Stmt, error) {
	tk := ps.peek()

	if tk.Kind == KEYWORD {
		switch tk.Text {
		case "if":
			return ps.ifStmt()
		case "for":
			return ps.forStmt()
		case "while":
			return ps.whileStmt()
		case "break", "continue", "pass":
			ps.next()
			if err := ps.needEndOfLine(); err != nil {
				return nil, err
			}

			switch tk.Text {
			case "break":
				return &BreakStmt{At: tk.Pos}, nil
			case "continue":
				return &ContinueStmt{At: tk.Pos}, nil
			}

			return &PassStmt{At: tk.Pos}, nil
		case "elif", "else":
			return nil, ps.errAt(tk, "%q without matching if", tk.Text)
		}
	}

	return ps.simpleStmt()
}

var augOps = map[string]string{
	"+=":  "+",
	"-=":  "-",
	"*=":  "*",
	"/=":  "/",
	"//=": "//",
	"%=":  "%",
	"**=": "**",
}

func (ps *parser) simpleStmt() (Stmt, error) {
	start := ps.peek()

	first, err := ps.expr(0)
	if err != nil {
		return nil, err
	}

	exprs := []Expr{first}
	for ps.isOp(",") {
		ps.next()

		if ps.peek().Kind == NEWLINE || ps.isOp("=") {
			break
		}

		ex, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		exprs = append(exprs, ex)
	}

	tk := ps.peek()

	switch {
	case tk.Kind == OP && tk.Text == "=":
		for _, tg := range exprs {
			if !assignable(tg) {
				return nil, ps.errAt(tk, "cannot assign to expression")
			}
		}
		ps.next()

		val, err := ps.tupleOrExpr()
		if err != nil {
			return nil, err
		}

		if err := ps.needEndOfLine(); err != nil {
			return nil, err
		}

		return &AssignStmt{At: start.Pos, Targets: exprs, Value: val}, nil
	case tk.Kind == OP && augOps[tk.Text] != "":
		if len(exprs) != 1 || !assignable(first) {
			return nil, ps.errAt(tk, "illegal target for augmented assignment")
		}
		ps.next()

		val, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		if err := ps.needEndOfLine(); err != nil {
			return nil, err
		}

		return &AugAssignStmt{
			At: start.Pos, Target: first, Op: augOps[tk.Text], Value: val,
		}, nil
	}

	if err := ps.needEndOfLine(); err != nil {
		return nil, err
	}

	if len(exprs) > 1 {
		return &ExprStmt{At: start.Pos, X: &ListExpr{At: start.Pos, Elems: exprs}}, nil
	}

	return &ExprStmt{At: start.Pos, X: first}, nil
}

// tupleOrExpr parses "a" or "a, b, ..." (the latter as a list).
func (ps *parser) tupleOrExpr() (Expr, error) {
	start := ps.peek()

	first, err := ps.expr(0)
	if err != nil {
		return nil, err
	}

	if !ps.isOp(",") {
		return first, nil
	}

	elems := []Expr{first}
	for ps.isOp(",") {
		ps.next()

		if ps.peek().Kind == NEWLINE || ps.peek().Kind == EOF {
			break
		}

		ex, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		elems = append(elems, ex)
	}

	return &ListExpr{At: start.Pos, Elems: elems}, nil
}

func assignable(ex Expr) bool {
	switch ex.(type) {
	case *Ident, *AttrExpr, *IndexExpr:
		return true
	}

	return false
}

// block parses ":" followed by either an inline simple statement or an
// indented suite. A suite may be empty.
func (ps *parser) block() ([]Stmt, error) {
	if _, err := ps.needOp(":"); err != nil {
		return nil, err
	}

	if ps.peek().Kind != NEWLINE {
		st, err := ps.simpleStmt()
		if err != nil {
			return nil, err
		}

		return []Stmt{st}, nil
	}

	ps.next()

	if ps.peek().Kind != INDENT {
		return nil, nil
	}

	ps.next()

	var body []Stmt

	for {
		switch ps.peek().Kind {
		case DEDENT:
			ps.next()
			return body, nil
		case EOF:
			return body, nil
		case NEWLINE:
			ps.next()
			continue
		}

		st, err := ps.statement()
		if err != nil {
			return nil, err
		}

		body = append(body, st)
	}
}

func (ps *parser) ifStmt() (Stmt, error) {
	at := ps.next().Pos
	st := &IfStmt{At: at}

	for {
		cond, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		body, err := ps.block()
		if err != nil {
			return nil, err
		}

		st.Branches = append(st.Branches, CondBlock{Cond: cond, Body: body})

		if !ps.isKeyword("elif") {
			break
		}

		ps.next()
	}

	if ps.isKeyword("else") {
		ps.next()

		body, err := ps.block()
		if err != nil {
			return nil, err
		}

		st.Else = body
	}

	return st, nil
}

func (ps *parser) forStmt() (Stmt, error) {
	at := ps.next().Pos

	var names []string

	paren := ps.isOp("(")
	if paren {
		ps.next()
	}

	for {
		tk := ps.peek()
		if tk.Kind != NAME {
			return nil, ps.errAt(tk, "expected loop variable, got %s", tk)
		}

		ps.next()
		names = append(names, tk.Text)

		if !ps.isOp(",") {
			break
		}

		ps.next()
	}

	if paren {
		if _, err := ps.needOp(")"); err != nil {
			return nil, err
		}
	}

	if err := ps.needKeyword("in"); err != nil {
		return nil, err
	}

	iter, err := ps.expr(0)
	if err != nil {
		return nil, err
	}

	body, err := ps.block()
	if err != nil {
		return nil, err
	}

	return &ForStmt{At: at, Names: names, Iter: iter, Body: body}, nil
}

func (ps *parser) whileStmt() (Stmt, error) {
	at := ps.next().Pos

	cond, err := ps.expr(0)
	if err != nil {
		return nil, err
	}

	body, err := ps.block()
	if err != nil {
		return nil, err
	}

	return &WhileStmt{At: at, Cond: cond, Body: body}, nil
}

// expressions

func infixBP(tk Token) (int, bool) {
	switch tk.Kind {
	case KEYWORD:
		switch tk.Text {
		case "if":
			return bpCond, true
		case "or":
			return bpOr, true
		case "and":
			return bpAnd, true
		case "in", "is", "not":
			return bpCompare, true
		}
	case OP:
		switch tk.Text {
		case "==", "!=", "<", "<=", ">", ">=":
			return bpCompare, true
		case "+", "-":
			return bpAdd, true
		case "*", "/", "//", "%":
			return bpMul, true
		case "**":
			return bpPow, true
		}
	}

	return 0, false
}

func (ps *parser) expr(minBP int) (Expr, error) {
	left, err := ps.prefix()
	if err != nil {
		return nil, err
	}

	for {
		tk := ps.peek()

		bp, ok := infixBP(tk)
		if !ok || bp < minBP {
			return left, nil
		}

		switch {
		case tk.Kind == KEYWORD && tk.Text == "if":
			left, err = ps.condTail(left)
		case bp == bpCompare:
			left, err = ps.compareTail(left)
		case tk.Kind == KEYWORD:
			ps.next()

			var right Expr

			right, err = ps.expr(bp + 1)
			if err == nil {
				left = &BoolExpr{At: tk.Pos, Op: tk.Text, X: left, Y: right}
			}
		default:
			ps.next()

			nextBP := bp + 1
			if tk.Text == "**" {
				nextBP = bp
			}

			var right Expr

			right, err = ps.expr(nextBP)
			if err == nil {
				left = &BinaryExpr{At: tk.Pos, Op: tk.Text, X: left, Y: right}
			}
		}

		if err != nil {
			return nil, err
		}
	}
}

func (ps *parser) condTail(then Expr) (Expr, error) {
	at := ps.next().Pos

	cond, err := ps.expr(bpCond + 1)
	if err != nil {
		return nil, err
	}

	if err := ps.needKeyword("else"); err != nil {
		return nil, err
	}

	otherwise, err := ps.expr(bpCond)
	if err != nil {
		return nil, err
	}

	return &CondExpr{At: at, Cond: cond, Then: then, Otherwise: otherwise}, nil
}

// compareTail collects a comparison chain starting at the current
// operator.
func (ps *parser) compareTail(first Expr) (Expr, error) {
	ce := &CompareExpr{At: ps.peek().Pos, First: first}

	for {
		tk := ps.peek()

		var op string

		switch {
		case tk.Kind == OP:
			switch tk.Text {
			case "==", "!=", "<", "<=", ">", ">=":
				op = tk.Text
			}
		case tk.Kind == KEYWORD && tk.Text == "in":
			op = "in"
		case tk.Kind == KEYWORD && tk.Text == "not":
			nx := ps.peekN(1)
			if nx.Kind != KEYWORD || nx.Text != "in" {
				return nil, ps.errAt(nx, "expected \"in\" after \"not\"")
			}
			ps.next()
			op = "not in"
		case tk.Kind == KEYWORD && tk.Text == "is":
			op = "is"
			if nx := ps.peekN(1); nx.Kind == KEYWORD && nx.Text == "not" {
				ps.next()
				op = "is not"
			}
		}

		if op == "" {
			return ce, nil
		}

		ps.next()

		right, err := ps.expr(bpCompare + 1)
		if err != nil {
			return nil, err
		}

		ce.Ops = append(ce.Ops, op)
		ce.Rest = append(ce.Rest, right)
	}
}

func (ps *parser) prefix() (Expr, error) {
	tk := ps.peek()

	switch {
	case tk.Kind == KEYWORD && tk.Text == "not":
		ps.next()

		x, err := ps.expr(bpNot)
		if err != nil {
			return nil, err
		}

		return &UnaryExpr{At: tk.Pos, Op: "not", X: x}, nil
	case tk.Kind == OP && (tk.Text == "-" || tk.Text == "+"):
		ps.next()

		x, err := ps.expr(bpUnary)
		if err != nil {
			return nil, err
		}

		return &UnaryExpr{At: tk.Pos, Op: tk.Text, X: x}, nil
	}

	atom, err := ps.atom()
	if err != nil {
		return nil, err
	}

	return ps.postfix(atom)
}

func (ps *parser) atom() (Expr, error) {
	tk := ps.next()

	switch tk.Kind {
	case INT, FLOAT:
		return &Literal{At: tk.Pos, Value: tk.Value}, nil
	case STRING:
		s, _ := tk.Value.(string)
		for ps.peek().Kind == STRING {
			more, _ := ps.next().Value.(string)
			s += more
		}

		return &Literal{At: tk.Pos, Value: s}, nil
	case NAME:
		return &Ident{At: tk.Pos, Name: tk.Text}, nil
	case KEYWORD:
		switch tk.Text {
		case "True":
			return &Literal{At: tk.Pos, Value: true}, nil
		case "False":
			return &Literal{At: tk.Pos, Value: false}, nil
		case "None":
			return &Literal{At: tk.Pos, Value: nil}, nil
		}
	case OP:
		switch tk.Text {
		case "(":
			return ps.parenExpr(tk)
		case "[":
			elems, err := ps.exprList("]")
			if err != nil {
				return nil, err
			}

			return &ListExpr{At: tk.Pos, Elems: elems}, nil
		case "{":
			return ps.dictExpr(tk)
		}
	}

	return nil, ps.errAt(tk, "unexpected %s", tk)
}

func (ps *parser) parenExpr(open Token) (Expr, error) {
	if ps.isOp(")") {
		ps.next()
		return &ListExpr{At: open.Pos}, nil
	}

	first, err := ps.expr(0)
	if err != nil {
		return nil, err
	}

	if ps.isOp(")") {
		ps.next()
		return first, nil
	}

	if !ps.isOp(",") {
		return nil, ps.unexpected()
	}

	ps.next()

	rest, err := ps.exprList(")")
	if err != nil {
		return nil, err
	}

	return &ListExpr{At: open.Pos, Elems: append([]Expr{first}, rest...)}, nil
}

// exprList parses comma-separated expressions up to and including the
// closing bracket; a trailing comma is allowed.
func (ps *parser) exprList(closer string) ([]Expr, error) {
	var elems []Expr

	for {
		if ps.isOp(closer) {
			ps.next()
			return elems, nil
		}

		ex, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		elems = append(elems, ex)

		if ps.isOp(",") {
			ps.next()
			continue
		}

		if _, err := ps.needOp(closer); err != nil {
			return nil, err
		}

		return elems, nil
	}
}

func (ps *parser) dictExpr(open Token) (Expr, error) {
	de := &DictExpr{At: open.Pos}

	for {
		if ps.isOp("}") {
			ps.next()
			return de, nil
		}

		key, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		if _, err := ps.needOp(":"); err != nil {
			return nil, err
		}

		val, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		de.Keys = append(de.Keys, key)
		de.Values = append(de.Values, val)

		if ps.isOp(",") {
			ps.next()
			continue
		}

		if _, err := ps.needOp("}"); err != nil {
			return nil, err
		}

		return de, nil
	}
}

func (ps *parser) postfix(left Expr) (Expr, error) {
	for {
		tk := ps.peek()
		if tk.Kind != OP {
			return left, nil
		}

		switch tk.Text {
		case "(":
			ps.next()

			if ps.peek().Kind == NAME && ps.peekN(1).Kind == OP && ps.peekN(1).Text == "=" {
				return nil, ps.errAt(ps.peek(), "keyword arguments are not supported")
			}

			args, err := ps.exprList(")")
			if err != nil {
				return nil, err
			}

			left = &CallExpr{At: tk.Pos, Fn: left, Args: args}
		case "[":
			ps.next()

			ix, err := ps.subscript(left, tk)
			if err != nil {
				return nil, err
			}

			left = ix
		case ".":
			ps.next()

			name := ps.next()
			if name.Kind != NAME && name.Kind != KEYWORD {
				return nil, ps.errAt(name, "expected attribute name, got %s", name)
			}

			left = &AttrExpr{At: tk.Pos, X: left, Name: name.Text}
		default:
			return left, nil
		}
	}
}

func (ps *parser) subscript(x Expr, open Token) (Expr, error) {
	var lo, hi Expr

	if !ps.isOp(":") {
		ex, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		if ps.isOp("]") {
			ps.next()
			return &IndexExpr{At: open.Pos, X: x, Index: ex}, nil
		}

		lo = ex
	}

	if _, err := ps.needOp(":"); err != nil {
		return nil, err
	}

	if !ps.isOp("]") {
		ex, err := ps.expr(0)
		if err != nil {
			return nil, err
		}

		hi = ex
	}

	if _, err := ps.needOp("]"); err != nil {
		return nil, err
	}

	return &SliceExpr{At: open.Pos, X: x, Lo: lo, Hi: hi}, nil
}
