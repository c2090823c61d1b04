package script

import (
	"errors"
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var ugcPolicy = sync.OnceValue(bluemonday.UGCPolicy)

// Builtins returns a fresh set of built-in functions. Callers merge it
// into the scope before executing a program.
func Builtins() map[string]any {
	return map[string]any{
		"range":     Func(builtinRange),
		"len":       Func(builtinLen),
		"str":       unaryFunc("str", func(v any) (any, error) { return Str(v), nil }),
		"repr":      unaryFunc("repr", func(v any) (any, error) { return Repr(v), nil }),
		"int":       unaryFunc("int", func(v any) (any, error) { return ToInt(v) }),
		"float":     unaryFunc("float", func(v any) (any, error) { return ToFloat(v) }),
		"bool":      unaryFunc("bool", func(v any) (any, error) { return Truthy(v), nil }),
		"list":      unaryFunc("list", builtinList),
		"dict":      Func(builtinDict),
		"sorted":    unaryFunc("sorted", builtinSorted),
		"reversed":  unaryFunc("reversed", builtinReversed),
		"enumerate": Func(builtinEnumerate),
		"zip":       Func(builtinZip),
		"min":       Func(func(args ...any) (any, error) { return extreme("min", -1, args) }),
		"max":       Func(func(args ...any) (any, error) { return extreme("max", 1, args) }),
		"abs":       unaryFunc("abs", builtinAbs),
		"sum":       unaryFunc("sum", builtinSum),
		"round":     Func(builtinRound),
		"join":      Func(builtinJoin),
		"escape":    unaryFunc("escape", func(v any) (any, error) { return html.EscapeString(Str(v)), nil }),
		"sanitize":  unaryFunc("sanitize", func(v any) (any, error) { return ugcPolicy().Sanitize(Str(v)), nil }),
		"type":      unaryFunc("type", func(v any) (any, error) { return TypeName(v), nil }),
	}
}

func unaryFunc(name string, fn func(any) (any, error)) Func {
	return func(args ...any) (any, error) {
		if err := argCount(name, args, 1, 1); err != nil {
			return nil, err
		}

		return fn(args[0])
	}
}

func builtinRange(args ...any) (any, error) {
	if err := argCount("range", args, 1, 3); err != nil {
		return nil, err
	}

	bounds := make([]int64, len(args))

	for i, arg := range args {
		iv, ok := Normalize(arg).(int64)
		if !ok {
			return nil, fmt.Errorf("range() arguments must be integers, not %s", TypeName(arg))
		}

		bounds[i] = iv
	}

	start, stop, step := int64(0), bounds[0], int64(1)
	if len(bounds) >= 2 {
		start, stop = bounds[0], bounds[1]
	}

	if len(bounds) == 3 {
		step = bounds[2]
	}

	if step == 0 {
		return nil, errors.New("range() step must not be zero")
	}

	var out []any

	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
	}

	if out == nil {
		out = []any{}
	}

	return out, nil
}

func builtinLen(args ...any) (any, error) {
	if err := argCount("len", args, 1, 1); err != nil {
		return nil, err
	}

	return Length(args[0])
}

func builtinList(v any) (any, error) {
	elems, err := Iterate(v)
	if err != nil {
		return nil, err
	}

	return append([]any{}, elems...), nil
}

func builtinDict(args ...any) (any, error) {
	if err := argCount("dict", args, 0, 1); err != nil {
		return nil, err
	}

	if len(args) == 0 {
		return NewDict(), nil
	}

	return ToDict(args[0])
}

func builtinSorted(v any) (any, error) {
	elems, err := Iterate(v)
	if err != nil {
		return nil, err
	}

	out := append([]any{}, elems...)

	var cmpErr error

	sort.SliceStable(out, func(i, j int) bool {
		c, err := Compare(out[i], out[j])
		if err != nil && cmpErr == nil {
			cmpErr = err
		}

		return c < 0
	})

	if cmpErr != nil {
		return nil, cmpErr
	}

	return out, nil
}

func builtinReversed(v any) (any, error) {
	elems, err := Iterate(v)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(elems))
	for i, el := range elems {
		out[len(elems)-1-i] = el
	}

	return out, nil
}

func builtinEnumerate(args ...any) (any, error) {
	if err := argCount("enumerate", args, 1, 2); err != nil {
		return nil, err
	}

	elems, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}

	start := int64(0)
	if len(args) == 2 {
		if start, err = ToInt(args[1]); err != nil {
			return nil, err
		}
	}

	out := make([]any, len(elems))
	for i, el := range elems {
		out[i] = []any{start + int64(i), el}
	}

	return out, nil
}

func builtinZip(args ...any) (any, error) {
	lists := make([][]any, len(args))
	shortest := -1

	for i, arg := range args {
		elems, err := Iterate(arg)
		if err != nil {
			return nil, err
		}

		lists[i] = elems
		if shortest < 0 || len(elems) < shortest {
			shortest = len(elems)
		}
	}

	out := make([]any, 0, max(shortest, 0))

	for i := 0; i < shortest; i++ {
		row := make([]any, len(lists))
		for j := range lists {
			row[j] = lists[j][i]
		}

		out = append(out, row)
	}

	return out, nil
}

// extreme returns min (sign -1) or max (sign 1) of one iterable argument
// or of several arguments.
func extreme(name string, sign int, args []any) (any, error) {
	elems := args
	if len(args) == 1 {
		var err error
		if elems, err = Iterate(args[0]); err != nil {
			return nil, err
		}
	}

	if len(elems) == 0 {
		return nil, fmt.Errorf("%s() arg is an empty sequence", name)
	}

	best := elems[0]

	for _, el := range elems[1:] {
		c, err := Compare(el, best)
		if err != nil {
			return nil, err
		}

		if c == sign {
			best = el
		}
	}

	return best, nil
}

func builtinAbs(v any) (any, error) {
	switch tv := Normalize(v).(type) {
	case int64:
		if tv < 0 {
			return -tv, nil
		}

		return tv, nil
	case float64:
		return math.Abs(tv), nil
	}

	return nil, fmt.Errorf("bad operand type for abs(): %s", TypeName(v))
}

func builtinSum(v any) (any, error) {
	elems, err := Iterate(v)
	if err != nil {
		return nil, err
	}

	var total any = int64(0)

	for _, el := range elems {
		if total, err = Arith("+", total, el); err != nil {
			return nil, err
		}
	}

	return total, nil
}

func builtinRound(args ...any) (any, error) {
	if err := argCount("round", args, 1, 2); err != nil {
		return nil, err
	}

	fv, err := ToFloat(args[0])
	if err != nil {
		return nil, err
	}

	if len(args) == 1 {
		return int64(math.RoundToEven(fv)), nil
	}

	nd, err := ToInt(args[1])
	if err != nil {
		return nil, err
	}

	pow := math.Pow(10, float64(nd))

	return math.RoundToEven(fv*pow) / pow, nil
}

// builtinJoin is join(items) or join(items, sep).
func builtinJoin(args ...any) (any, error) {
	if err := argCount("join", args, 1, 2); err != nil {
		return nil, err
	}

	sep := ""
	if len(args) == 2 {
		sep = Str(args[1])
	}

	return joinValues(sep, args[0])
}

// Names returns the sorted names of a scope, for diagnostics.
func Names(scope map[string]any) []string {
	out := make([]string, 0, len(scope))
	for k := range scope {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// closestName suggests a bound name similar to missing.
func closestName(scope map[string]any, missing string) string {
	best, bestDist := "", 3

	for _, name := range Names(scope) {
		if d := editDistance(strings.ToLower(name), strings.ToLower(missing)); d < bestDist {
			best, bestDist = name, d
		}
	}

	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		cur[0] = i

		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}

		prev = cur
	}

	return prev[len(b)]
}
