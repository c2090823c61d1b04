package script

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Func is a callable value.
type Func func(args ...any) (any, error)

// Dict is an insertion-ordered mapping created by dict literals. Keys are
// nil, bool, int64, float64 or string.
type Dict struct {
	keys []any
	m    map[any]any
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{m: make(map[any]any)}
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []any {
	out := make([]any, len(d.keys))
	copy(out, d.keys)

	return out
}

// Get looks up key.
func (d *Dict) Get(key any) (any, bool) {
	v, ok := d.m[hashKey(key)]
	return v, ok
}

// Set inserts or replaces key.
func (d *Dict) Set(key, val any) error {
	hk := hashKey(key)
	if !hashable(hk) {
		return fmt.Errorf("unhashable dict key of type %s", TypeName(key))
	}

	if _, ok := d.m[hk]; !ok {
		d.keys = append(d.keys, hk)
	}
	d.m[hk] = val

	return nil
}

// Delete removes key if present.
func (d *Dict) Delete(key any) {
	hk := hashKey(key)
	if _, ok := d.m[hk]; !ok {
		return
	}

	delete(d.m, hk)

	for i, k := range d.keys {
		if k == hk {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

func hashKey(key any) any {
	key = Normalize(key)
	// 1.0 and 1 are the same key
	if fv, ok := key.(float64); ok && fv == math.Trunc(fv) && math.Abs(fv) < 1<<53 {
		return int64(fv)
	}

	return key
}

func hashable(key any) bool {
	switch key.(type) {
	case nil, bool, int64, float64, string:
		return true
	}

	return false
}

// Normalize maps Go scalar kinds onto the interpreter's canonical types:
// all integers become int64, all floats float64 and named string or bool
// types their base type. Composite values are returned unchanged.
func Normalize(v any) any {
	switch tv := v.(type) {
	case nil, bool, int64, float64, string, []any, *Dict, Func:
		return v
	case int:
		return int64(tv)
	case int32:
		return int64(tv)
	case float32:
		return float64(tv)
	case func(...any) (any, error):
		return Func(tv)
	case error:
		return v
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()) //nolint:gosec // wraps like the source value would
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		if _, ok := v.(fmt.Stringer); ok {
			return v
		}

		return rv.String()
	}

	return v
}

// TypeName returns a short, user-facing type name for v.
func TypeName(v any) string {
	switch Normalize(v).(type) {
	case nil:
		return "None"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []any:
		return "list"
	case *Dict:
		return "dict"
	case Func:
		return "function"
	}

	return reflect.TypeOf(v).String()
}

// Truthy reports the boolean value of v.
func Truthy(v any) bool {
	switch tv := Normalize(v).(type) {
	case nil:
		return false
	case bool:
		return tv
	case int64:
		return tv != 0
	case float64:
		return tv != 0
	case string:
		return tv != ""
	case []any:
		return len(tv) > 0
	case *Dict:
		return tv.Len() > 0
	case Func:
		return tv != nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}

	return true
}

// Str converts v to its display string, the way write() renders it.
func Str(v any) string {
	switch tv := Normalize(v).(type) {
	case string:
		return tv
	case fmt.Stringer:
		return tv.String()
	}

	return Repr(v)
}

// Repr converts v to its literal-like representation, quoting strings.
func Repr(v any) string {
	switch tv := Normalize(v).(type) {
	case nil:
		return "None"
	case bool:
		if tv {
			return "True"
		}

		return "False"
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return formatFloat(tv)
	case string:
		return quote(tv)
	case []any:
		parts := make([]string, len(tv))
		for i, el := range tv {
			parts[i] = Repr(el)
		}

		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		parts := make([]string, 0, tv.Len())
		for _, k := range tv.keys {
			parts = append(parts, Repr(k)+": "+Repr(tv.m[k]))
		}

		return "{" + strings.Join(parts, ", ") + "}"
	case Func:
		return "<function>"
	case error:
		return tv.Error()
	case fmt.Stringer:
		return tv.String()
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}

		elems, _ := Iterate(v)

		return Repr(elems)
	case reflect.Map:
		keys := sortedMapKeys(rv)
		parts := make([]string, 0, len(keys))

		for _, k := range keys {
			parts = append(parts, Repr(k.Interface())+": "+Repr(rv.MapIndex(k).Interface()))
		}

		return "{" + strings.Join(parts, ", ") + "}"
	case reflect.Ptr:
		if rv.IsNil() {
			return "None"
		}

		return Repr(rv.Elem().Interface())
	}

	return fmt.Sprint(v)
}

func quote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, "\"") {
		return strconv.Quote(s)
	}

	q := strconv.Quote(s)
	body := strings.ReplaceAll(q[1:len(q)-1], `\"`, `"`)

	return "'" + strings.ReplaceAll(body, "'", `\'`) + "'"
}

func formatFloat(fv float64) string {
	switch {
	case math.IsInf(fv, 1):
		return "inf"
	case math.IsInf(fv, -1):
		return "-inf"
	case math.IsNaN(fv):
		return "nan"
	}

	abs := math.Abs(fv)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(fv, 'e', -1, 64)
	}

	s := strconv.FormatFloat(fv, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

func sortedMapKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		a, b := Normalize(keys[i].Interface()), Normalize(keys[j].Interface())
		if c, err := Compare(a, b); err == nil {
			return c < 0
		}

		return fmt.Sprint(a) < fmt.Sprint(b)
	})

	return keys
}

// Equal reports value equality with numeric cross-type comparison.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)

	if af, bf, ok := numericPair(a, b); ok {
		return af == bf
	}

	switch ta := a.(type) {
	case nil:
		return b == nil
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}

		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}

		return true
	case *Dict:
		tb, ok := b.(*Dict)
		if !ok || ta.Len() != tb.Len() {
			return false
		}

		for _, k := range ta.keys {
			bv, ok := tb.m[k]
			if !ok || !Equal(ta.m[k], bv) {
				return false
			}
		}

		return true
	case Func:
		return false
	}

	if b == nil {
		return false
	}

	return reflect.DeepEqual(a, b)
}

// numericPair converts two numbers to float64. It reports false unless
// both are int64 or float64.
func numericPair(a, b any) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	return af, bf, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int64:
		return float64(tv), true
	case float64:
		return tv, true
	}

	return 0, false
}

// Compare orders numbers, strings and lists. It returns -1, 0 or 1.
func Compare(a, b any) (int, error) {
	a, b = Normalize(a), Normalize(b)

	if ai, ok := a.(int64); ok {
		if bi, ok := b.(int64); ok {
			return cmp3(ai < bi, ai > bi), nil
		}
	}

	if af, bf, ok := numericPair(a, b); ok {
		return cmp3(af < bf, af > bf), nil
	}

	switch ta := a.(type) {
	case string:
		if tb, ok := b.(string); ok {
			return strings.Compare(ta, tb), nil
		}
	case []any:
		if tb, ok := b.([]any); ok {
			for i := 0; i < len(ta) && i < len(tb); i++ {
				c, err := Compare(ta[i], tb[i])
				if err != nil {
					return 0, err
				}

				if c != 0 {
					return c, nil
				}
			}

			return cmp3(len(ta) < len(tb), len(ta) > len(tb)), nil
		}
	case bool:
		if tb, ok := b.(bool); ok {
			return cmp3(!ta && tb, ta && !tb), nil
		}
	}

	return 0, fmt.Errorf("cannot compare %s and %s", TypeName(a), TypeName(b))
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}

	return 0
}

var errDivZero = errors.New("division by zero")

// Arith applies a binary arithmetic operator.
func Arith(op string, a, b any) (any, error) {
	a, b = Normalize(a), Normalize(b)

	ai, aInt := a.(int64)
	bi, bInt := b.(int64)

	if aInt && bInt {
		return intArith(op, ai, bi)
	}

	if af, bf, ok := numericPair(a, b); ok {
		return floatArith(op, af, bf)
	}

	switch op {
	case "+":
		switch ta := a.(type) {
		case string:
			if tb, ok := b.(string); ok {
				return ta + tb, nil
			}
		case []any:
			if tb, ok := b.([]any); ok {
				out := make([]any, 0, len(ta)+len(tb))
				return append(append(out, ta...), tb...), nil
			}
		}
	case "*":
		if s, ok := a.(string); ok && bInt {
			return repeatString(s, bi)
		}

		if s, ok := b.(string); ok && aInt {
			return repeatString(s, ai)
		}

		if l, ok := a.([]any); ok && bInt {
			return repeatList(l, bi)
		}

		if l, ok := b.([]any); ok && aInt {
			return repeatList(l, ai)
		}
	case "%":
		if s, ok := a.(string); ok {
			return percentFormat(s, b)
		}
	}

	return nil, fmt.Errorf(
		"unsupported operand types for %s: %s and %s",
		op, TypeName(a), TypeName(b),
	)
}

// maxSequenceLen bounds the length of a string or list built by
// repetition.
const maxSequenceLen = 1 << 28

var errSequenceTooLong = errors.New("repeated sequence too long")

// repeatCount returns how many copies of a size-long sequence to make.
func repeatCount(size int, n int64) (int, error) {
	if n <= 0 || size == 0 {
		return 0, nil
	}

	if n > int64(maxSequenceLen/size) {
		return 0, fmt.Errorf("%w: %d * %d exceeds %d", errSequenceTooLong, size, n, maxSequenceLen)
	}

	return int(n), nil
}

func repeatString(s string, n int64) (any, error) {
	count, err := repeatCount(len(s), n)
	if err != nil {
		return nil, err
	}

	return strings.Repeat(s, count), nil
}

func repeatList(l []any, n int64) (any, error) {
	count, err := repeatCount(len(l), n)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(l)*count)
	for range count {
		out = append(out, l...)
	}

	return out, nil
}

func intArith(op string, a, b int64) (any, error) {
	switch op {
	case "+":
		if sum, ok := addInt(a, b); ok {
			return sum, nil
		}

		return float64(a) + float64(b), nil
	case "-":
		if b == math.MinInt64 && a < 0 {
			return a - b, nil
		}

		if b != math.MinInt64 {
			if diff, ok := addInt(a, -b); ok {
				return diff, nil
			}
		}

		return float64(a) - float64(b), nil
	case "*":
		if prod, ok := mulInt(a, b); ok {
			return prod, nil
		}

		return float64(a) * float64(b), nil
	case "/":
		if b == 0 {
			return nil, errDivZero
		}

		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, errDivZero
		}

		if a == math.MinInt64 && b == -1 {
			return -float64(a), nil
		}

		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}

		return q, nil
	case "%":
		if b == 0 {
			return nil, errDivZero
		}

		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}

		return m, nil
	case "**":
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}

		if out, ok := powInt(a, b); ok {
			return out, nil
		}

		return math.Pow(float64(a), float64(b)), nil
	}

	return nil, fmt.Errorf("unknown operator %s", op)
}

// Integer results that do not fit in int64 fall back to float64.

func addInt(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}

	return sum, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}

	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}

	prod := a * b
	if prod/b != a {
		return 0, false
	}

	return prod, true
}

// powInt computes a**b for b >= 0 by repeated squaring.
func powInt(a, b int64) (int64, bool) {
	out := int64(1)

	for b > 0 {
		if b&1 == 1 {
			var ok bool
			if out, ok = mulInt(out, a); !ok {
				return 0, false
			}
		}

		b >>= 1
		if b == 0 {
			break
		}

		var ok bool
		if a, ok = mulInt(a, a); !ok {
			return 0, false
		}
	}

	return out, true
}

func floatArith(op string, a, b float64) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, errDivZero
		}

		return a / b, nil
	case "//":
		if b == 0 {
			return nil, errDivZero
		}

		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, errDivZero
		}

		m := math.Mod(a, b)
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}

		return m, nil
	case "**":
		return math.Pow(a, b), nil
	}

	return nil, fmt.Errorf("unknown operator %s", op)
}

// percentFormat implements "fmt % args" for %s, %r, %d, %i, %f, %x and %%.
func percentFormat(format string, arg any) (any, error) {
	args, ok := arg.([]any)
	if !ok {
		args = []any{arg}
	}

	var sb strings.Builder

	next := 0

	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			sb.WriteByte(ch)
			continue
		}

		j := i + 1
		for j < len(format) && strings.IndexByte("0123456789.-+ ", format[j]) >= 0 {
			j++
		}

		if j >= len(format) {
			return nil, errors.New("incomplete format")
		}

		verb := format[j]
		flags := format[i+1 : j]
		i = j

		if verb == '%' {
			sb.WriteByte('%')
			continue
		}

		if next >= len(args) {
			return nil, errors.New("not enough arguments for format string")
		}

		av := Normalize(args[next])
		next++

		switch verb {
		case 's':
			sb.WriteString(fmt.Sprintf("%"+flags+"s", Str(av)))
		case 'r':
			sb.WriteString(fmt.Sprintf("%"+flags+"s", Repr(av)))
		case 'd', 'i':
			iv, err := ToInt(av)
			if err != nil {
				return nil, err
			}
			sb.WriteString(fmt.Sprintf("%"+flags+"d", iv))
		case 'f', 'e', 'g':
			fv, err := ToFloat(av)
			if err != nil {
				return nil, err
			}
			sb.WriteString(fmt.Sprintf("%"+flags+string(verb), fv))
		case 'x', 'X', 'o':
			iv, err := ToInt(av)
			if err != nil {
				return nil, err
			}
			sb.WriteString(fmt.Sprintf("%"+flags+string(verb), iv))
		default:
			return nil, fmt.Errorf("unsupported format character %q", verb)
		}
	}

	if next < len(args) {
		return nil, errors.New("not all arguments converted during string formatting")
	}

	return sb.String(), nil
}

// ToInt converts numbers, bools and numeric strings to int64.
func ToInt(v any) (int64, error) {
	switch tv := Normalize(v).(type) {
	case int64:
		return tv, nil
	case float64:
		return int64(tv), nil
	case bool:
		if tv {
			return 1, nil
		}

		return 0, nil
	case string:
		iv, err := strconv.ParseInt(strings.TrimSpace(tv), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid literal for int(): %s", quote(tv))
		}

		return iv, nil
	}

	return 0, fmt.Errorf("int() argument must be a number or string, not %s", TypeName(v))
}

// ToFloat converts numbers, bools and numeric strings to float64.
func ToFloat(v any) (float64, error) {
	switch tv := Normalize(v).(type) {
	case int64:
		return float64(tv), nil
	case float64:
		return tv, nil
	case bool:
		if tv {
			return 1, nil
		}

		return 0, nil
	case string:
		fv, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert string to float: %s", quote(tv))
		}

		return fv, nil
	}

	return 0, fmt.Errorf("float() argument must be a number or string, not %s", TypeName(v))
}

// Iterate returns the elements v yields in a for loop: list items,
// string characters, dict keys (insertion order) or Go map keys (sorted).
func Iterate(v any) ([]any, error) {
	switch tv := Normalize(v).(type) {
	case []any:
		return tv, nil
	case string:
		out := make([]any, 0, len(tv))
		for _, r := range tv {
			out = append(out, string(r))
		}

		return out, nil
	case *Dict:
		return tv.Keys(), nil
	case nil:
		return nil, errors.New("None is not iterable")
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}

		return out, nil
	case reflect.Map:
		keys := sortedMapKeys(rv)
		out := make([]any, len(keys))

		for i, k := range keys {
			out[i] = Normalize(k.Interface())
		}

		return out, nil
	}

	return nil, fmt.Errorf("%s is not iterable", TypeName(v))
}

// Length returns len(v).
func Length(v any) (int64, error) {
	switch tv := Normalize(v).(type) {
	case string:
		return int64(len([]rune(tv))), nil
	case []any:
		return int64(len(tv)), nil
	case *Dict:
		return int64(tv.Len()), nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return int64(rv.Len()), nil
	}

	return 0, fmt.Errorf("object of type %s has no len()", TypeName(v))
}

// Contains implements the "in" operator.
func Contains(container, item any) (bool, error) {
	switch tc := Normalize(container).(type) {
	case string:
		s, ok := Normalize(item).(string)
		if !ok {
			return false, fmt.Errorf("'in <string>' requires string as left operand, not %s", TypeName(item))
		}

		return strings.Contains(tc, s), nil
	case *Dict:
		_, ok := tc.Get(item)
		return ok, nil
	}

	rv := reflect.ValueOf(container)
	if rv.Kind() == reflect.Map {
		kv, err := convertArg(item, rv.Type().Key())
		if err != nil {
			return false, nil //nolint:nilerr // key of another type is simply absent
		}

		return rv.MapIndex(kv).IsValid(), nil
	}

	elems, err := Iterate(container)
	if err != nil {
		return false, fmt.Errorf("argument of type %s is not iterable", TypeName(container))
	}

	for _, el := range elems {
		if Equal(el, item) {
			return true, nil
		}
	}

	return false, nil
}

// Index implements x[i].
func Index(x, i any) (any, error) {
	x = Normalize(x)

	switch tx := x.(type) {
	case []any:
		n, err := seqIndex(i, len(tx))
		if err != nil {
			return nil, err
		}

		return tx[n], nil
	case string:
		runes := []rune(tx)

		n, err := seqIndex(i, len(runes))
		if err != nil {
			return nil, err
		}

		return string(runes[n]), nil
	case *Dict:
		v, ok := tx.Get(i)
		if !ok {
			return nil, fmt.Errorf("key %s not found", Repr(i))
		}

		return v, nil
	case nil:
		return nil, errors.New("None is not subscriptable")
	}

	rv := reflect.ValueOf(x)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n, err := seqIndex(i, rv.Len())
		if err != nil {
			return nil, err
		}

		return Normalize(rv.Index(n).Interface()), nil
	case reflect.Map:
		kv, err := convertArg(i, rv.Type().Key())
		if err != nil {
			return nil, fmt.Errorf("key %s not found", Repr(i))
		}

		mv := rv.MapIndex(kv)
		if !mv.IsValid() {
			return nil, fmt.Errorf("key %s not found", Repr(i))
		}

		return Normalize(mv.Interface()), nil
	}

	return nil, fmt.Errorf("%s is not subscriptable", TypeName(x))
}

func seqIndex(i any, n int) (int, error) {
	iv, ok := Normalize(i).(int64)
	if !ok {
		return 0, fmt.Errorf("indices must be integers, not %s", TypeName(i))
	}

	if iv < 0 {
		iv += int64(n)
	}

	if iv < 0 || iv >= int64(n) {
		return 0, errors.New("index out of range")
	}

	return int(iv), nil
}

// Slice implements x[lo:hi]; nil bounds mean the sequence ends.
func Slice(x, lo, hi any) (any, error) {
	x = Normalize(x)

	var n int

	switch tx := x.(type) {
	case string:
		n = len([]rune(tx))
	default:
		ln, err := Length(x)
		if err != nil {
			return nil, fmt.Errorf("%s is not sliceable", TypeName(x))
		}

		n = int(ln)
	}

	from, err := sliceBound(lo, 0, n)
	if err != nil {
		return nil, err
	}

	to, err := sliceBound(hi, n, n)
	if err != nil {
		return nil, err
	}

	if to < from {
		to = from
	}

	switch tx := x.(type) {
	case string:
		return string([]rune(tx)[from:to]), nil
	case []any:
		out := make([]any, to-from)
		copy(out, tx[from:to])

		return out, nil
	}

	elems, err := Iterate(x)
	if err != nil {
		return nil, err
	}

	return append([]any(nil), elems[from:to]...), nil
}

func sliceBound(v any, def, n int) (int, error) {
	if v == nil {
		return def, nil
	}

	iv, ok := Normalize(v).(int64)
	if !ok {
		return 0, fmt.Errorf("slice indices must be integers, not %s", TypeName(v))
	}

	if iv < 0 {
		iv += int64(n)
	}

	return int(min(max(iv, 0), int64(n))), nil
}

// GetAttr implements x.name: built-in methods first, then dict keys,
// then exported struct fields and methods.
func GetAttr(x any, name string) (any, error) {
	if fn, ok := method(x, name); ok {
		return fn, nil
	}

	switch tx := Normalize(x).(type) {
	case *Dict:
		if v, ok := tx.Get(name); ok {
			return v, nil
		}
	case nil:
		return nil, fmt.Errorf("None has no attribute %q", name)
	}

	rv := reflect.ValueOf(x)
	if rv.IsValid() {
		if mv := rv.MethodByName(name); mv.IsValid() {
			return reflectFunc(mv), nil
		}
	}

	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil has no attribute %q", name)
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		fv := rv.FieldByName(name)
		if fv.IsValid() && fv.CanInterface() {
			return Normalize(fv.Interface()), nil
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
			if mv.IsValid() {
				return Normalize(mv.Interface()), nil
			}
		}
	}

	return nil, fmt.Errorf("%s has no attribute %q", TypeName(x), name)
}

// SetIndex implements x[i] = v.
func SetIndex(x, i, v any) error {
	switch tx := Normalize(x).(type) {
	case []any:
		n, err := seqIndex(i, len(tx))
		if err != nil {
			return err
		}

		tx[n] = v

		return nil
	case *Dict:
		return tx.Set(i, v)
	}

	rv := reflect.ValueOf(x)

	switch rv.Kind() {
	case reflect.Map:
		kv, err := convertArg(i, rv.Type().Key())
		if err != nil {
			return err
		}

		vv, err := convertArg(v, rv.Type().Elem())
		if err != nil {
			return err
		}

		rv.SetMapIndex(kv, vv)

		return nil
	case reflect.Slice:
		n, err := seqIndex(i, rv.Len())
		if err != nil {
			return err
		}

		vv, err := convertArg(v, rv.Type().Elem())
		if err != nil {
			return err
		}

		rv.Index(n).Set(vv)

		return nil
	}

	return fmt.Errorf("%s does not support item assignment", TypeName(x))
}

// SetAttr implements x.name = v for dicts, string-keyed maps and
// pointers to structs.
func SetAttr(x any, name string, v any) error {
	if d, ok := x.(*Dict); ok {
		return d.Set(name, v)
	}

	rv := reflect.ValueOf(x)

	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		return SetIndex(x, name, v)
	}

	if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		fv := rv.Elem().FieldByName(name)
		if fv.IsValid() && fv.CanSet() {
			vv, err := convertArg(v, fv.Type())
			if err != nil {
				return err
			}

			fv.Set(vv)

			return nil
		}
	}

	return fmt.Errorf("cannot set attribute %q on %s", name, TypeName(x))
}

// Call invokes fn with args. Besides Func, any Go function value is
// accepted; its results may be (), (T), (error) or (T, error).
func Call(fn any, args []any) (any, error) {
	switch tf := fn.(type) {
	case Func:
		return tf(args...)
	case func(...any) (any, error):
		return tf(args...)
	case nil:
		return nil, errors.New("None is not callable")
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not callable", TypeName(fn))
	}

	return reflectFunc(rv)(args...)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func reflectFunc(fv reflect.Value) Func {
	return func(args ...any) (any, error) {
		ft := fv.Type()

		nin := ft.NumIn()
		if ft.IsVariadic() {
			if len(args) < nin-1 {
				return nil, fmt.Errorf("expected at least %d arguments, got %d", nin-1, len(args))
			}
		} else if len(args) != nin {
			return nil, fmt.Errorf("expected %d arguments, got %d", nin, len(args))
		}

		in := make([]reflect.Value, len(args))

		for i, arg := range args {
			var at reflect.Type
			if ft.IsVariadic() && i >= nin-1 {
				at = ft.In(nin - 1).Elem()
			} else {
				at = ft.In(i)
			}

			av, err := convertArg(arg, at)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}

			in[i] = av
		}

		out := fv.Call(in)

		switch len(out) {
		case 0:
			return nil, nil
		case 1:
			if ft.Out(0) == errorType {
				err, _ := out[0].Interface().(error)
				return nil, err
			}

			return Normalize(out[0].Interface()), nil
		default:
			err, _ := out[len(out)-1].Interface().(error)
			if err != nil {
				return nil, err
			}

			return Normalize(out[0].Interface()), nil
		}
	}
}

func convertArg(arg any, to reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch to.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
			return reflect.Zero(to), nil
		}

		return reflect.Value{}, fmt.Errorf("cannot use None as %s", to)
	}

	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(to) {
		return av, nil
	}

	switch {
	case isNumberKind(av.Kind()) && isNumberKind(to.Kind()):
		return av.Convert(to), nil
	case av.Kind() == reflect.String && to.Kind() == reflect.String:
		return av.Convert(to), nil
	case av.Kind() == reflect.Slice && to.Kind() == reflect.Slice:
		out := reflect.MakeSlice(to, av.Len(), av.Len())

		for i := 0; i < av.Len(); i++ {
			ev, err := convertArg(av.Index(i).Interface(), to.Elem())
			if err != nil {
				return reflect.Value{}, err
			}

			out.Index(i).Set(ev)
		}

		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", TypeName(arg), to)
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}
