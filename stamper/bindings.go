package stamper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/byte4ever/templite/templating"
	"github.com/byte4ever/templite/templating/script"
)

// Bindings lists the sources of template variables. Later sources win:
// stamps, then data files, then defines, then imports.
type Bindings struct {
	// StampInfoFiles hold "KEY VALUE" lines; every key becomes a variable.
	StampInfoFiles []string
	// DataFiles are YAML (every document merged in order) or JSON
	// objects; every top-level key becomes a variable.
	DataFiles []string
	// Defines are NAME=VALUE pairs. {KEY} placeholders in VALUE are
	// replaced from the stamps. Each define is also reachable as
	// variables["NAME"].
	Defines []string
	// Imports are NAME=FILE pairs. FILE is rendered at render time with
	// the variables bound so far and stored as imports["NAME"].
	Imports []string
}

// Namespace loads every source and returns the resulting bindings.
// Imports compile with en.
func (bd Bindings) Namespace(en *templating.Engine) (*templating.Namespace, error) {
	const errCtx = "building namespace"

	stamps, err := LoadStamps(bd.StampInfoFiles)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	ns := templating.NamespaceFrom(stamps)

	for _, df := range bd.DataFiles {
		data, err := LoadData(df)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		for _, key := range data.Keys() {
			val, _ := data.Get(key)
			ns.Set(script.Str(key), val)
		}
	}

	defines, err := ParseDefines(bd.Defines, stamps)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if len(bd.Defines) > 0 {
		for _, key := range defines.Keys() {
			val, _ := defines.Get(key)
			ns.Set(script.Str(key), val)
		}

		ns.Set("variables", defines)
	}

	if len(bd.Imports) > 0 {
		imports, err := parsePairs("import", "NAME=FILE", bd.Imports)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		ns.SetLazy("imports", importer(en, imports, stamps))
	}

	return ns, nil
}

// ParseDefines splits NAME=VALUE pairs into an ordered dict, replacing
// {KEY} placeholders in each value from stamps. Unknown placeholders are
// kept as-is.
func ParseDefines(
	defines []string,
	stamps Stamps,
) (*script.Dict, error) {
	const errCtx = "parsing defines"

	pairs, err := parsePairs("define", "NAME=VALUE", defines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	out := script.NewDict()

	for _, pr := range pairs {
		if err := out.Set(pr[0], stamps.Apply(pr[1])); err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	return out, nil
}

func parsePairs(what, format string, raw []string) ([][2]string, error) {
	out := make([][2]string, 0, len(raw))

	for _, item := range raw {
		name, val, ok := strings.Cut(item, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%s must be %s, got %s", what, format, item)
		}

		out = append(out, [2]string{name, val})
	}

	return out, nil
}

func importer(
	en *templating.Engine,
	imports [][2]string,
	stamps Stamps,
) templating.LazyFunc {
	return func(scope map[string]any) (any, error) {
		const errCtx = "rendering imports"

		out := script.NewDict()

		for _, im := range imports {
			tpl, err := en.CompileFile(im[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", errCtx, err)
			}

			text, err := tpl.Render(templating.NamespaceFrom(scope))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", errCtx, err)
			}

			if err := out.Set(im[0], stamps.Apply(text)); err != nil {
				return nil, fmt.Errorf("%s: %w", errCtx, err)
			}
		}

		return out, nil
	}
}

// LoadData reads a data file into an ordered dict. Files ending in
// .json are decoded as one JSON object; anything else as YAML, merging
// the top-level mappings of every document in order.
func LoadData(path string) (*script.Dict, error) {
	const errCtx = "loading data"

	content, err := os.ReadFile(path) //nolint:gosec // paths from CLI flags
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var out *script.Dict

	if strings.EqualFold(filepath.Ext(path), ".json") {
		out, err = decodeJSON(content)
	} else {
		out, err = decodeYAML(content)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	return out, nil
}

func decodeJSON(content []byte) (*script.Dict, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	val, err := toValue(doc)
	if err != nil {
		return nil, err
	}

	return val.(*script.Dict), nil //nolint:forcetypeassert // maps convert to dicts
}

func decodeYAML(content []byte) (*script.Dict, error) {
	out := script.NewDict()
	dec := yaml.NewDecoder(bytes.NewReader(content), yaml.UseOrderedMap())

	for {
		var doc any

		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return nil, err
		}

		if doc == nil {
			continue
		}

		val, err := toValue(doc)
		if err != nil {
			return nil, err
		}

		dict, ok := val.(*script.Dict)
		if !ok {
			return nil, fmt.Errorf("document must be a mapping, got %s", script.TypeName(val))
		}

		for _, key := range dict.Keys() {
			item, _ := dict.Get(key)
			if err := out.Set(key, item); err != nil {
				return nil, err
			}
		}
	}
}

// toValue converts decoded YAML or JSON into directive-language values,
// keeping mapping order where the decoder preserved it.
func toValue(v any) (any, error) {
	switch tv := v.(type) {
	case yaml.MapSlice:
		out := script.NewDict()

		for _, item := range tv {
			val, err := toValue(item.Value)
			if err != nil {
				return nil, err
			}

			if err := out.Set(script.Normalize(item.Key), val); err != nil {
				return nil, err
			}
		}

		return out, nil
	case map[string]any:
		out := script.NewDict()

		keys := make([]string, 0, len(tv))
		for key := range tv {
			keys = append(keys, key)
		}

		slices.Sort(keys)

		for _, key := range keys {
			val, err := toValue(tv[key])
			if err != nil {
				return nil, err
			}

			if err := out.Set(key, val); err != nil {
				return nil, err
			}
		}

		return out, nil
	case json.Number:
		if iv, err := tv.Int64(); err == nil {
			return iv, nil
		}

		return tv.Float64()
	case []any:
		out := make([]any, len(tv))

		for i, el := range tv {
			val, err := toValue(el)
			if err != nil {
				return nil, err
			}

			out[i] = val
		}

		return out, nil
	}

	return script.Normalize(v), nil
}
