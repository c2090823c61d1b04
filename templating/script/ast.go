package script

// Node is implemented by every statement and expression.
type Node interface {
	Position() Pos
}

// Stmt is an executable statement.
type Stmt interface {
	Node
	stmt()
}

// Expr is an evaluable expression.
type Expr interface {
	Node
	expr()
}

type (
	// ExprStmt evaluates X for its side effects.
	ExprStmt struct {
		At Pos
		X  Expr
	}

	// AssignStmt binds the value of Value to every target in Targets;
	// more than one target means tuple unpacking.
	AssignStmt struct {
		At      Pos
		Targets []Expr
		Value   Expr
	}

	// AugAssignStmt is "target op= value".
	AugAssignStmt struct {
		At     Pos
		Target Expr
		Op     string
		Value  Expr
	}

	// IfStmt holds an if/elif chain and an optional else body.
	IfStmt struct {
		At       Pos
		Branches []CondBlock
		Else     []Stmt
	}

	// CondBlock is one if or elif arm.
	CondBlock struct {
		Cond Expr
		Body []Stmt
	}

	ForStmt struct {
		At    Pos
		Names []string
		Iter  Expr
		Body  []Stmt
	}

	WhileStmt struct {
		At   Pos
		Cond Expr
		Body []Stmt
	}

	BreakStmt    struct{ At Pos }
	ContinueStmt struct{ At Pos }
	PassStmt     struct{ At Pos }
)

type (
	Ident struct {
		At   Pos
		Name string
	}

	// Literal is a constant: nil, bool, int64, float64 or string.
	Literal struct {
		At    Pos
		Value any
	}

	ListExpr struct {
		At    Pos
		Elems []Expr
	}

	DictExpr struct {
		At     Pos
		Keys   []Expr
		Values []Expr
	}

	AttrExpr struct {
		At   Pos
		X    Expr
		Name string
	}

	IndexExpr struct {
		At    Pos
		X     Expr
		Index Expr
	}

	// SliceExpr is x[lo:hi]; either bound may be nil.
	SliceExpr struct {
		At Pos
		X  Expr
		Lo Expr
		Hi Expr
	}

	CallExpr struct {
		At   Pos
		Fn   Expr
		Args []Expr
	}

	UnaryExpr struct {
		At Pos
		Op string
		X  Expr
	}

	BinaryExpr struct {
		At Pos
		Op string
		X  Expr
		Y  Expr
	}

	// CompareExpr is a chain such as a < b <= c.
	CompareExpr struct {
		At    Pos
		First Expr
		Ops   []string
		Rest  []Expr
	}

	// BoolExpr is a short-circuit "and" / "or".
	BoolExpr struct {
		At Pos
		Op string
		X  Expr
		Y  Expr
	}

	// CondExpr is "then if cond else otherwise".
	CondExpr struct {
		At        Pos
		Cond      Expr
		Then      Expr
		Otherwise Expr
	}
)

func (s *ExprStmt) Position() Pos      { return s.At }
func (s *AssignStmt) Position() Pos    { return s.At }
func (s *AugAssignStmt) Position() Pos { return s.At }
func (s *IfStmt) Position() Pos        { return s.At }
func (s *ForStmt) Position() Pos       { return s.At }
func (s *WhileStmt) Position() Pos     { return s.At }
func (s *BreakStmt) Position() Pos     { return s.At }
func (s *ContinueStmt) Position() Pos  { return s.At }
func (s *PassStmt) Position() Pos      { return s.At }

func (*ExprStmt) stmt()      {}
func (*AssignStmt) stmt()    {}
func (*AugAssignStmt) stmt() {}
func (*IfStmt) stmt()        {}
func (*ForStmt) stmt()       {}
func (*WhileStmt) stmt()     {}
func (*BreakStmt) stmt()     {}
func (*ContinueStmt) stmt()  {}
func (*PassStmt) stmt()      {}

func (e *Ident) Position() Pos       { return e.At }
func (e *Literal) Position() Pos     { return e.At }
func (e *ListExpr) Position() Pos    { return e.At }
func (e *DictExpr) Position() Pos    { return e.At }
func (e *AttrExpr) Position() Pos    { return e.At }
func (e *IndexExpr) Position() Pos   { return e.At }
func (e *SliceExpr) Position() Pos   { return e.At }
func (e *CallExpr) Position() Pos    { return e.At }
func (e *UnaryExpr) Position() Pos   { return e.At }
func (e *BinaryExpr) Position() Pos  { return e.At }
func (e *CompareExpr) Position() Pos { return e.At }
func (e *BoolExpr) Position() Pos    { return e.At }
func (e *CondExpr) Position() Pos    { return e.At }

func (*Ident) expr()       {}
func (*Literal) expr()     {}
func (*ListExpr) expr()    {}
func (*DictExpr) expr()    {}
func (*AttrExpr) expr()    {}
func (*IndexExpr) expr()   {}
func (*SliceExpr) expr()   {}
func (*CallExpr) expr()    {}
func (*UnaryExpr) expr()   {}
func (*BinaryExpr) expr()  {}
func (*CompareExpr) expr() {}
func (*BoolExpr) expr()    {}
func (*CondExpr) expr()    {}
