package script

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// method returns a bound built-in method of x, if name is one.
func method(x any, name string) (Func, bool) {
	switch tx := Normalize(x).(type) {
	case string:
		return stringMethod(tx, name)
	case []any:
		return listMethod(tx, name)
	case *Dict:
		return dictMethod(tx, name)
	case nil:
		return nil, false
	}

	return goMethod(x, name)
}

// goMethod gives Go maps and slices the read-only dict and list methods.
// Methods that mutate would only change a copy, so they are not offered.
func goMethod(x any, name string) (Func, bool) {
	rv := reflect.ValueOf(x)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if !readOnlyDictMethods[name] {
			return nil, false
		}

		d, err := ToDict(rv.Interface())
		if err != nil {
			return nil, false
		}

		return dictMethod(d, name)
	case reflect.Slice, reflect.Array:
		l, err := Iterate(rv.Interface())
		if err != nil {
			return nil, false
		}

		return listMethod(l, name)
	}

	return nil, false
}

var readOnlyDictMethods = map[string]bool{
	"keys": true, "values": true, "items": true, "get": true,
}

func argCount(name string, args []any, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("%s() takes %d arguments (%d given)", name, lo, len(args))
		}

		return fmt.Errorf("%s() takes %d to %d arguments (%d given)", name, lo, hi, len(args))
	}

	return nil
}

func strArg(name string, v any) (string, error) {
	s, ok := Normalize(v).(string)
	if !ok {
		return "", fmt.Errorf("%s() argument must be str, not %s", name, TypeName(v))
	}

	return s, nil
}

func stringMethod(s, name string) (Func, bool) {
	unary := map[string]func(string) string{
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"title":      titleCase,
		"capitalize": capitalize,
	}

	if fn, ok := unary[name]; ok {
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 0, 0); err != nil {
				return nil, err
			}

			return fn(s), nil
		}, true
	}

	switch name {
	case "strip", "lstrip", "rstrip":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 0, 1); err != nil {
				return nil, err
			}

			cutset := " \t\n\r\v\f"
			if len(args) == 1 && args[0] != nil {
				cs, err := strArg(name, args[0])
				if err != nil {
					return nil, err
				}
				cutset = cs
			}

			switch name {
			case "lstrip":
				return strings.TrimLeft(s, cutset), nil
			case "rstrip":
				return strings.TrimRight(s, cutset), nil
			}

			return strings.Trim(s, cutset), nil
		}, true
	case "split":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 0, 1); err != nil {
				return nil, err
			}

			var parts []string

			if len(args) == 0 || args[0] == nil {
				parts = strings.Fields(s)
			} else {
				sep, err := strArg(name, args[0])
				if err != nil {
					return nil, err
				}

				if sep == "" {
					return nil, errors.New("empty separator")
				}

				parts = strings.Split(s, sep)
			}

			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}

			return out, nil
		}, true
	case "splitlines":
		return func(args ...any) (any, error) {
			lines := strings.Split(strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n"), "\n")
			if s == "" {
				lines = nil
			}

			out := make([]any, len(lines))
			for i, l := range lines {
				out[i] = l
			}

			return out, nil
		}, true
	case "join":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 1); err != nil {
				return nil, err
			}

			return joinValues(s, args[0])
		}, true
	case "replace":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 2, 2); err != nil {
				return nil, err
			}

			oldS, err := strArg(name, args[0])
			if err != nil {
				return nil, err
			}

			newS, err := strArg(name, args[1])
			if err != nil {
				return nil, err
			}

			return strings.ReplaceAll(s, oldS, newS), nil
		}, true
	case "startswith", "endswith", "find", "count":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 1); err != nil {
				return nil, err
			}

			sub, err := strArg(name, args[0])
			if err != nil {
				return nil, err
			}

			switch name {
			case "startswith":
				return strings.HasPrefix(s, sub), nil
			case "endswith":
				return strings.HasSuffix(s, sub), nil
			case "count":
				return int64(strings.Count(s, sub)), nil
			}

			idx := strings.Index(s, sub)
			if idx < 0 {
				return int64(-1), nil
			}

			return int64(len([]rune(s[:idx]))), nil
		}, true
	case "format":
		return func(args ...any) (any, error) {
			return braceFormat(s, args)
		}, true
	case "ljust", "rjust", "center":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 1); err != nil {
				return nil, err
			}

			width, err := ToInt(args[0])
			if err != nil {
				return nil, err
			}

			pad := int(width) - len([]rune(s))
			if pad <= 0 {
				return s, nil
			}

			switch name {
			case "ljust":
				return s + strings.Repeat(" ", pad), nil
			case "rjust":
				return strings.Repeat(" ", pad) + s, nil
			}

			left := pad / 2

			return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left), nil
		}, true
	}

	return nil, false
}

func titleCase(s string) string {
	out := []rune(s)
	prev := ' '

	for i, r := range out {
		if isLetter(prev) {
			out[i] = []rune(strings.ToLower(string(r)))[0]
		} else {
			out[i] = []rune(strings.ToUpper(string(r)))[0]
		}
		prev = r
	}

	return string(out)
}

func isLetter(r rune) bool {
	return strings.ToUpper(string(r)) != strings.ToLower(string(r))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	rs := []rune(strings.ToLower(s))

	return strings.ToUpper(string(rs[0])) + string(rs[1:])
}

func joinValues(sep string, v any) (any, error) {
	elems, err := Iterate(v)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(elems))
	for i, el := range elems {
		parts[i] = Str(el)
	}

	return strings.Join(parts, sep), nil
}

// braceFormat implements "{} {0} {name}"-style str.format with
// positional arguments; a trailing dict argument supplies names.
func braceFormat(format string, args []any) (any, error) {
	var sb strings.Builder

	auto := 0

	for i := 0; i < len(format); i++ {
		ch := format[i]

		switch {
		case ch == '{' && i+1 < len(format) && format[i+1] == '{':
			sb.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(format) && format[i+1] == '}':
			sb.WriteByte('}')
			i++
		case ch == '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return nil, errors.New("single '{' encountered in format string")
			}

			field := format[i+1 : i+end]
			i += end

			val, err := formatField(field, args, &auto)
			if err != nil {
				return nil, err
			}

			sb.WriteString(Str(val))
		default:
			sb.WriteByte(ch)
		}
	}

	return sb.String(), nil
}

func formatField(field string, args []any, auto *int) (any, error) {
	if field == "" {
		if *auto >= len(args) {
			return nil, errors.New("not enough arguments for format string")
		}

		v := args[*auto]
		*auto++

		return v, nil
	}

	if n, err := ToInt(field); err == nil {
		if n < 0 || int(n) >= len(args) {
			return nil, fmt.Errorf("format index %d out of range", n)
		}

		return args[n], nil
	}

	for _, arg := range args {
		if v, err := GetAttr(arg, field); err == nil {
			return v, nil
		}
	}

	return nil, fmt.Errorf("format field %q not found", field)
}

func listMethod(l []any, name string) (Func, bool) {
	switch name {
	case "index":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 1); err != nil {
				return nil, err
			}

			for i, el := range l {
				if Equal(el, args[0]) {
					return int64(i), nil
				}
			}

			return nil, fmt.Errorf("%s is not in list", Repr(args[0]))
		}, true
	case "count":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 1); err != nil {
				return nil, err
			}

			n := int64(0)
			for _, el := range l {
				if Equal(el, args[0]) {
					n++
				}
			}

			return n, nil
		}, true
	}

	return nil, false
}

func dictMethod(d *Dict, name string) (Func, bool) {
	switch name {
	case "keys":
		return func(args ...any) (any, error) {
			return d.Keys(), nil
		}, true
	case "values":
		return func(args ...any) (any, error) {
			out := make([]any, 0, d.Len())
			for _, k := range d.keys {
				out = append(out, d.m[k])
			}

			return out, nil
		}, true
	case "items":
		return func(args ...any) (any, error) {
			out := make([]any, 0, d.Len())
			for _, k := range d.keys {
				out = append(out, []any{k, d.m[k]})
			}

			return out, nil
		}, true
	case "get":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 2); err != nil {
				return nil, err
			}

			if v, ok := d.Get(args[0]); ok {
				return v, nil
			}

			if len(args) == 2 {
				return args[1], nil
			}

			return nil, nil
		}, true
	case "pop":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 2); err != nil {
				return nil, err
			}

			v, ok := d.Get(args[0])
			if !ok {
				if len(args) == 2 {
					return args[1], nil
				}

				return nil, fmt.Errorf("key %s not found", Repr(args[0]))
			}

			d.Delete(args[0])

			return v, nil
		}, true
	case "update":
		return func(args ...any) (any, error) {
			if err := argCount(name, args, 1, 1); err != nil {
				return nil, err
			}

			src, err := ToDict(args[0])
			if err != nil {
				return nil, err
			}

			for _, k := range src.keys {
				if err := d.Set(k, src.m[k]); err != nil {
					return nil, err
				}
			}

			return nil, nil
		}, true
	}

	return nil, false
}

// ToDict converts a Dict, a Go map or a list of pairs into a new Dict.
func ToDict(v any) (*Dict, error) {
	out := NewDict()

	if d, ok := v.(*Dict); ok {
		for _, k := range d.keys {
			_ = out.Set(k, d.m[k]) //nolint:errcheck // keys are already hashable
		}

		return out, nil
	}

	keys, err := Iterate(v)
	if err != nil {
		return nil, err
	}

	if _, isList := Normalize(v).([]any); isList {
		for _, pair := range keys {
			kv, err := Iterate(pair)
			if err != nil || len(kv) != 2 {
				return nil, errors.New("dict() sequence elements must be pairs")
			}

			if err := out.Set(kv[0], kv[1]); err != nil {
				return nil, err
			}
		}

		return out, nil
	}

	for _, k := range keys {
		val, err := Index(v, k)
		if err != nil {
			return nil, err
		}

		if err := out.Set(k, val); err != nil {
			return nil, err
		}
	}

	return out, nil
}
