package templating

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/byte4ever/templite/templating/script"
)

// Names injected into every render scope.
const (
	primWrite    = "write"
	primTrimPrev = "_trim_prev"
	primTrimNext = "_trim_next"
	primRelpath  = "relpath"
	primAbspath  = "abspath"
	primInclude  = "include"
	varFile      = "__file__"
	varDir       = "__dir__"
	varCwd       = "__cwd__"
)

var primitives = map[string]bool{
	primWrite:    true,
	primTrimPrev: true,
	primTrimNext: true,
	primRelpath:  true,
	primAbspath:  true,
	primInclude:  true,
	varFile:      true,
	varDir:       true,
	varCwd:       true,
}

// Template is a compiled template bound to the engine that compiled it.
// It is immutable and safe for concurrent renders.
type Template struct {
	// File is the absolute path of the template source, empty for
	// templates compiled from text.
	File string

	program *Program
	engine  *Engine
}

// Program returns the compiled program.
func (tp *Template) Program() *Program { return tp.program }

// Render executes the template against ns and returns the output. On
// failure it returns "" and a *RenderError.
func (tp *Template) Render(ns *Namespace) (string, error) {
	var stack []string
	if tp.File != "" {
		stack = []string{tp.File}
	}

	return tp.execute(nil, ns, stack)
}

type renderer struct {
	tpl   *Template
	dir   string
	buf   outBuffer
	scope map[string]any
	stack []string
}

// execute renders with base as the starting scope. Include passes the
// parent scope as base; top-level renders pass nil.
func (tp *Template) execute(
	base map[string]any,
	ns *Namespace,
	stack []string,
) (string, error) {
	rd := &renderer{tpl: tp, dir: tp.dir(), stack: stack}

	scope := script.Builtins()
	maps.Copy(scope, base)
	rd.inject(scope)
	rd.scope = scope

	if err := ns.resolveInto(scope, primitives); err != nil {
		return "", tp.renderError(err, 0)
	}

	if err := script.NewInterpreter(scope).Exec(tp.program.code); err != nil {
		line := 0

		var re *script.RuntimeError
		if errors.As(err, &re) {
			line = tp.program.TemplateLine(re.Line)
		}

		return "", tp.renderError(err, line)
	}

	return rd.buf.String(), nil
}

func (tp *Template) renderError(err error, line int) *RenderError {
	return &RenderError{
		File:    tp.File,
		Line:    line,
		Err:     err,
		Snippet: snippet(tp.program.text, line),
	}
}

// dir is the directory relative paths resolve against.
func (tp *Template) dir() string {
	if tp.File != "" {
		return filepath.Dir(tp.File)
	}

	return tp.engine.workDir()
}

func (rd *renderer) inject(scope map[string]any) {
	scope[primWrite] = script.Func(rd.write)
	scope[primTrimPrev] = script.Func(func(...any) (any, error) {
		rd.buf.mark(chunkStripPrev)
		return nil, nil
	})
	scope[primTrimNext] = script.Func(func(...any) (any, error) {
		rd.buf.mark(chunkStripNext)
		return nil, nil
	})
	scope[primRelpath] = script.Func(func(args ...any) (any, error) {
		path, err := pathArg(primRelpath, args)
		if err != nil {
			return nil, err
		}

		return rd.relpath(path)
	})
	scope[primAbspath] = script.Func(func(args ...any) (any, error) {
		path, err := pathArg(primAbspath, args)
		if err != nil {
			return nil, err
		}

		return rd.abspath(path), nil
	})
	scope[primInclude] = script.Func(rd.include)
	scope[varFile] = rd.tpl.File
	scope[varDir] = rd.dir
	scope[varCwd] = rd.dir
}

func (rd *renderer) write(args ...any) (any, error) {
	for _, arg := range args {
		rd.buf.write(script.Str(arg))
	}

	return nil, nil
}

func pathArg(name string, args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s() takes exactly one argument (%d given)", name, len(args))
	}

	path, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%s() argument must be str, not %s", name, script.TypeName(args[0]))
	}

	return path, nil
}

// relpath makes an absolute path relative to the current directory and
// passes relative paths through.
func (rd *renderer) relpath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return path, nil
	}

	rel, err := filepath.Rel(rd.dir, path)
	if err != nil {
		return "", fmt.Errorf("relpath(): %w", err)
	}

	return rel, nil
}

// abspath joins a relative path onto the current directory and passes
// absolute paths through.
func (rd *renderer) abspath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(rd.dir, path)
}

func (rd *renderer) include(args ...any) (any, error) {
	path, err := pathArg(primInclude, args)
	if err != nil {
		return nil, err
	}

	path = rd.abspath(path)

	if slices.Contains(rd.stack, path) {
		chain := append(slices.Clone(rd.stack), path)
		return nil, fmt.Errorf("%w: %s", ErrCyclicInclude, strings.Join(chain, " -> "))
	}

	en := rd.tpl.engine
	en.logger().Debug("including template", "file", path, "from", rd.tpl.File)

	child, err := en.CompileFile(path)
	if err != nil {
		return nil, err
	}

	out, err := child.execute(rd.scope, nil, append(slices.Clone(rd.stack), path))
	if err != nil {
		return nil, err
	}

	rd.buf.write(out)

	return nil, nil
}

func (en *Engine) workDir() string {
	if en.WorkDir != "" {
		if abs, err := filepath.Abs(en.WorkDir); err == nil {
			return abs
		}

		return en.WorkDir
	}

	wd, err := os.Getwd()
	if err != nil {
		return "."
	}

	return wd
}
