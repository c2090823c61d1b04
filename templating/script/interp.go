package script

import (
	"errors"
	"fmt"
)

// Interpreter executes programs against one mutable scope. Assignments
// write straight into Scope, so callers observe them after Exec returns.
type Interpreter struct {
	Scope map[string]any
}

// NewInterpreter returns an interpreter bound to scope; a nil scope is
// replaced by an empty one.
func NewInterpreter(scope map[string]any) *Interpreter {
	if scope == nil {
		scope = make(map[string]any)
	}

	return &Interpreter{Scope: scope}
}

// Exec runs every statement of prog in order and stops at the first
// error.
func (ip *Interpreter) Exec(prog *Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{Msg: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	err = ip.execBlock(prog.Body)

	switch {
	case errors.Is(err, errBreak):
		return &RuntimeError{Msg: "'break' outside loop"}
	case errors.Is(err, errContinue):
		return &RuntimeError{Msg: "'continue' outside loop"}
	}

	return err
}

func (ip *Interpreter) execBlock(body []Stmt) error {
	for _, st := range body {
		if err := ip.exec(st); err != nil {
			return err
		}
	}

	return nil
}

func (ip *Interpreter) exec(st Stmt) error {
	switch st := st.(type) {
	case *ExprStmt:
		_, err := ip.Eval(st.X)
		return err
	case *AssignStmt:
		val, err := ip.Eval(st.Value)
		if err != nil {
			return err
		}

		return ip.assignTargets(st.At, st.Targets, val)
	case *AugAssignStmt:
		cur, err := ip.Eval(st.Target)
		if err != nil {
			return err
		}

		rhs, err := ip.Eval(st.Value)
		if err != nil {
			return err
		}

		val, err := Arith(st.Op, cur, rhs)
		if err != nil {
			return wrapRuntime(st.At, "augmented assignment", err)
		}

		return ip.assign(st.Target, val)
	case *IfStmt:
		for _, br := range st.Branches {
			cond, err := ip.Eval(br.Cond)
			if err != nil {
				return err
			}

			if Truthy(cond) {
				return ip.execBlock(br.Body)
			}
		}

		return ip.execBlock(st.Else)
	case *ForStmt:
		return ip.execFor(st)
	case *WhileStmt:
		for {
			cond, err := ip.Eval(st.Cond)
			if err != nil {
				return err
			}

			if !Truthy(cond) {
				return nil
			}

			err = ip.execBlock(st.Body)

			switch {
			case errors.Is(err, errBreak):
				return nil
			case errors.Is(err, errContinue), err == nil:
				continue
			}

			return err
		}
	case *BreakStmt:
		return errBreak
	case *ContinueStmt:
		return errContinue
	case *PassStmt:
		return nil
	}

	return rtErrorf(st.Position(), "unsupported statement %T", st)
}

func (ip *Interpreter) execFor(st *ForStmt) error {
	iter, err := ip.Eval(st.Iter)
	if err != nil {
		return err
	}

	elems, err := Iterate(iter)
	if err != nil {
		return wrapRuntime(st.At, "for loop", err)
	}

	for _, el := range elems {
		if err := ip.bindLoopVars(st, el); err != nil {
			return err
		}

		err := ip.execBlock(st.Body)

		switch {
		case errors.Is(err, errBreak):
			return nil
		case errors.Is(err, errContinue), err == nil:
			continue
		}

		return err
	}

	return nil
}

func (ip *Interpreter) bindLoopVars(st *ForStmt, el any) error {
	if len(st.Names) == 1 {
		ip.Scope[st.Names[0]] = el
		return nil
	}

	parts, err := Iterate(el)
	if err != nil || len(parts) != len(st.Names) {
		return rtErrorf(st.At, "cannot unpack %s into %d loop variables", Repr(el), len(st.Names))
	}

	for i, name := range st.Names {
		ip.Scope[name] = parts[i]
	}

	return nil
}

func (ip *Interpreter) assignTargets(at Pos, targets []Expr, val any) error {
	if len(targets) == 1 {
		return ip.assign(targets[0], val)
	}

	parts, err := Iterate(val)
	if err != nil || len(parts) != len(targets) {
		return rtErrorf(at, "cannot unpack %s into %d targets", Repr(val), len(targets))
	}

	for i, tg := range targets {
		if err := ip.assign(tg, parts[i]); err != nil {
			return err
		}
	}

	return nil
}

func (ip *Interpreter) assign(target Expr, val any) error {
	switch tg := target.(type) {
	case *Ident:
		ip.Scope[tg.Name] = val
		return nil
	case *IndexExpr:
		obj, err := ip.Eval(tg.X)
		if err != nil {
			return err
		}

		idx, err := ip.Eval(tg.Index)
		if err != nil {
			return err
		}

		if err := SetIndex(obj, idx, val); err != nil {
			return wrapRuntime(tg.At, "item assignment", err)
		}

		return nil
	case *AttrExpr:
		obj, err := ip.Eval(tg.X)
		if err != nil {
			return err
		}

		if err := SetAttr(obj, tg.Name, val); err != nil {
			return wrapRuntime(tg.At, "attribute assignment", err)
		}

		return nil
	}

	return rtErrorf(target.Position(), "cannot assign to %T", target)
}

// Eval evaluates an expression in the interpreter scope.
func (ip *Interpreter) Eval(ex Expr) (any, error) {
	switch ex := ex.(type) {
	case *Literal:
		return ex.Value, nil
	case *Ident:
		val, ok := ip.Scope[ex.Name]
		if !ok {
			msg := fmt.Sprintf("name %q is not defined", ex.Name)
			if hint := closestName(ip.Scope, ex.Name); hint != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", hint)
			}

			return nil, &RuntimeError{Line: ex.At.Line, Col: ex.At.Col, Msg: msg, Err: ErrUndefined}
		}

		return Normalize(val), nil
	case *ListExpr:
		out := make([]any, len(ex.Elems))
		for i, el := range ex.Elems {
			val, err := ip.Eval(el)
			if err != nil {
				return nil, err
			}

			out[i] = val
		}

		return out, nil
	case *DictExpr:
		out := NewDict()
		for i := range ex.Keys {
			key, err := ip.Eval(ex.Keys[i])
			if err != nil {
				return nil, err
			}

			val, err := ip.Eval(ex.Values[i])
			if err != nil {
				return nil, err
			}

			if err := out.Set(key, val); err != nil {
				return nil, wrapRuntime(ex.At, "dict literal", err)
			}
		}

		return out, nil
	case *AttrExpr:
		obj, err := ip.Eval(ex.X)
		if err != nil {
			return nil, err
		}

		val, err := GetAttr(obj, ex.Name)
		if err != nil {
			return nil, wrapRuntime(ex.At, "attribute access", err)
		}

		return val, nil
	case *IndexExpr:
		obj, err := ip.Eval(ex.X)
		if err != nil {
			return nil, err
		}

		idx, err := ip.Eval(ex.Index)
		if err != nil {
			return nil, err
		}

		val, err := Index(obj, idx)
		if err != nil {
			return nil, wrapRuntime(ex.At, "subscript", err)
		}

		return val, nil
	case *SliceExpr:
		return ip.evalSlice(ex)
	case *CallExpr:
		return ip.evalCall(ex)
	case *UnaryExpr:
		return ip.evalUnary(ex)
	case *BinaryExpr:
		lhs, err := ip.Eval(ex.X)
		if err != nil {
			return nil, err
		}

		rhs, err := ip.Eval(ex.Y)
		if err != nil {
			return nil, err
		}

		val, err := Arith(ex.Op, lhs, rhs)
		if err != nil {
			return nil, wrapRuntime(ex.At, "operator "+ex.Op, err)
		}

		return val, nil
	case *CompareExpr:
		return ip.evalCompare(ex)
	case *BoolExpr:
		lhs, err := ip.Eval(ex.X)
		if err != nil {
			return nil, err
		}

		if (ex.Op == "and") != Truthy(lhs) {
			return lhs, nil
		}

		return ip.Eval(ex.Y)
	case *CondExpr:
		cond, err := ip.Eval(ex.Cond)
		if err != nil {
			return nil, err
		}

		if Truthy(cond) {
			return ip.Eval(ex.Then)
		}

		return ip.Eval(ex.Otherwise)
	}

	return nil, rtErrorf(ex.Position(), "unsupported expression %T", ex)
}

func (ip *Interpreter) evalSlice(ex *SliceExpr) (any, error) {
	obj, err := ip.Eval(ex.X)
	if err != nil {
		return nil, err
	}

	var lo, hi any

	if ex.Lo != nil {
		if lo, err = ip.Eval(ex.Lo); err != nil {
			return nil, err
		}
	}

	if ex.Hi != nil {
		if hi, err = ip.Eval(ex.Hi); err != nil {
			return nil, err
		}
	}

	val, err := Slice(obj, lo, hi)
	if err != nil {
		return nil, wrapRuntime(ex.At, "slice", err)
	}

	return val, nil
}

func (ip *Interpreter) evalCall(ex *CallExpr) (any, error) {
	fn, err := ip.Eval(ex.Fn)
	if err != nil {
		return nil, err
	}

	args := make([]any, len(ex.Args))
	for i, arg := range ex.Args {
		if args[i], err = ip.Eval(arg); err != nil {
			return nil, err
		}
	}

	val, err := Call(fn, args)
	if err != nil {
		return nil, wrapRuntime(ex.At, "calling "+callName(ex.Fn), err)
	}

	return Normalize(val), nil
}

func callName(fn Expr) string {
	switch fn := fn.(type) {
	case *Ident:
		return fn.Name + "()"
	case *AttrExpr:
		return fn.Name + "()"
	}

	return "function"
}

func (ip *Interpreter) evalUnary(ex *UnaryExpr) (any, error) {
	val, err := ip.Eval(ex.X)
	if err != nil {
		return nil, err
	}

	switch ex.Op {
	case "not":
		return !Truthy(val), nil
	case "+":
		if _, ok := toFloat(Normalize(val)); ok {
			return Normalize(val), nil
		}
	case "-":
		switch tv := Normalize(val).(type) {
		case int64:
			return -tv, nil
		case float64:
			return -tv, nil
		}
	}

	return nil, rtErrorf(ex.At, "bad operand type for unary %s: %s", ex.Op, TypeName(val))
}

func (ip *Interpreter) evalCompare(ex *CompareExpr) (any, error) {
	left, err := ip.Eval(ex.First)
	if err != nil {
		return nil, err
	}

	for i, op := range ex.Ops {
		right, err := ip.Eval(ex.Rest[i])
		if err != nil {
			return nil, err
		}

		ok, err := compareOp(op, left, right)
		if err != nil {
			return nil, wrapRuntime(ex.At, "comparison "+op, err)
		}

		if !ok {
			return false, nil
		}

		left = right
	}

	return true, nil
}

func compareOp(op string, a, b any) (bool, error) {
	switch op {
	case "==":
		return Equal(a, b), nil
	case "!=":
		return !Equal(a, b), nil
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	case "in":
		return Contains(b, a)
	case "not in":
		ok, err := Contains(b, a)
		return !ok, err
	}

	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}

	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}

	return false, fmt.Errorf("unknown comparison %s", op)
}

// identical backs "is": None and booleans compare by value, everything
// else by equality of scalars.
func identical(a, b any) bool {
	a, b = Normalize(a), Normalize(b)

	switch a.(type) {
	case nil, bool, int64, float64, string:
		return a == b
	}

	return false
}
