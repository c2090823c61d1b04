package templating

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/byte4ever/templite/digester"
)

// Engine compiles and renders templates. The zero value is ready to use:
// default delimiters, UTF-8, no cache, the process working directory.
// An Engine must not be modified once it has compiled a template.
type Engine struct {
	Delimiters Delimiters
	// Encoding is the IANA name of the character set of template files
	// and Expand output.
	Encoding string
	Cache    Cache
	// WorkDir anchors relative paths of templates compiled from text.
	WorkDir string
	// Dump receives the generated program of every compiled template,
	// as text or, with DumpJSON, as JSON.
	Dump     io.Writer
	DumpJSON bool
	// KeepLineContinuations leaves backslash-newline in literal text.
	KeepLineContinuations bool
	// SkipUnchanged makes Expand leave an output file alone when it
	// already holds the rendered bytes.
	SkipUnchanged bool
	// OnLoad is called with the absolute path of every template file
	// compiled, includes included.
	OnLoad func(path string)
	// Stdin and Stdout replace the process streams in Expand.
	Stdin  io.Reader
	Stdout io.Writer
	Logger *slog.Logger
}

// Validate reports ErrConfig for a bad delimiter set or an unknown
// encoding.
func (en *Engine) Validate() error {
	const errCtx = "validating engine"

	if _, err := en.delimiters(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := en.codec(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// Compile compiles template text. Relative paths used by the template
// resolve against WorkDir.
func (en *Engine) Compile(text string) (*Template, error) {
	const errCtx = "compiling template"

	tpl, err := en.compile(text, "", "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return tpl, nil
}

// CompileFile reads and compiles the template at path, decoding it with
// the configured encoding.
func (en *Engine) CompileFile(path string) (*Template, error) {
	const errCtx = "compiling template file"

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if en.OnLoad != nil {
		en.OnLoad(abs)
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	// Files are keyed by identity and modification time so a cache hit
	// costs one stat.
	stamp := abs + "@" + strconv.FormatInt(fi.ModTime().UnixNano(), 10) +
		"+" + strconv.FormatInt(fi.Size(), 10)

	if tpl, ok := en.cached(stamp, abs); ok {
		return tpl, nil
	}

	raw, err := en.readTemplate(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	text, err := en.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	tpl, err := en.compile(text, abs, stamp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return tpl, nil
}

// Expand reads a template, renders it against ns and writes the result.
// An empty tplPath reads stdin and an empty outPath writes stdout. If
// executable is true the output file receives mode 0777 instead of 0666.
// Nothing is written when rendering fails.
func (en *Engine) Expand(
	tplPath string,
	outPath string,
	ns *Namespace,
	executable bool,
) error {
	const errCtx = "expanding template"

	tpl, err := en.load(tplPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	result, err := tpl.Render(ns)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	data, err := en.encode(result)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if outPath != "" && en.SkipUnchanged {
		same, err := digester.Unchanged(outPath, data)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		if same {
			en.logger().Debug("output unchanged", "output", outPath)
			return nil
		}
	}

	out, closer, err := en.openOutput(outPath, executable)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if closer != nil {
		defer closer()
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func (en *Engine) load(tplPath string) (*Template, error) {
	if tplPath != "" {
		return en.CompileFile(tplPath)
	}

	raw, err := en.readTemplate("")
	if err != nil {
		return nil, err
	}

	text, err := en.decode(raw)
	if err != nil {
		return nil, err
	}

	return en.Compile(text)
}

func (en *Engine) compile(text, file, stamp string) (*Template, error) {
	dl, err := en.delimiters()
	if err != nil {
		return nil, err
	}

	if stamp == "" {
		stamp = "text:" + digester.DigestStrings(text)
	}

	key := en.cacheKey(dl, stamp)

	// CompileFile consults the cache before reading the file.
	if file == "" {
		if tpl, ok := en.cached(stamp, file); ok {
			return tpl, nil
		}
	}

	pg, err := en.build(text, dl)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			ce.File = file
			ce.Snippet = snippet(text, ce.Line)
		}

		return nil, err
	}

	en.logger().Debug(
		"compiled template",
		"file", file,
		"instructions", len(pg.Instructions),
	)

	if err := en.dump(pg, file); err != nil {
		return nil, err
	}

	if en.Cache != nil {
		en.Cache.Set(key, pg)
	}

	return &Template{File: file, program: pg, engine: en}, nil
}

func (en *Engine) build(text string, dl Delimiters) (*Program, error) {
	segs, err := Scan(text, dl)
	if err != nil {
		return nil, err
	}

	instrs, err := CompileSegments(segs, !en.KeepLineContinuations)
	if err != nil {
		return nil, err
	}

	return Build(instrs, text)
}

func (en *Engine) cacheKey(dl Delimiters, stamp string) string {
	return digester.DigestStrings(
		dl.String(),
		strconv.FormatBool(en.KeepLineContinuations),
		strings.ToLower(en.Encoding),
		stamp,
	)
}

func (en *Engine) cached(stamp, file string) (*Template, bool) {
	if en.Cache == nil {
		return nil, false
	}

	dl, err := en.delimiters()
	if err != nil {
		return nil, false
	}

	pg, ok := en.Cache.Get(en.cacheKey(dl, stamp))
	if !ok {
		return nil, false
	}

	en.logger().Debug("template cache hit", "file", file)

	return &Template{File: file, program: pg, engine: en}, true
}

func (en *Engine) dump(pg *Program, file string) error {
	const errCtx = "dumping program"

	if en.Dump == nil {
		return nil
	}

	name := file
	if name == "" {
		name = "<text>"
	}

	if en.DumpJSON {
		data, err := json.Marshal(struct {
			File    string   `json:"file"`
			Program *Program `json:"program"`
		}{File: name, Program: pg})
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		data = append(data, '\n')

		if _, err := en.Dump.Write(data); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		return nil
	}

	if _, err := fmt.Fprintf(en.Dump, "# %s\n%s", name, pg.Source); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func (en *Engine) delimiters() (Delimiters, error) {
	dl := en.Delimiters.withDefaults()
	if err := dl.Validate(); err != nil {
		return Delimiters{}, err
	}

	return dl, nil
}

// codec returns the configured encoding, or nil for UTF-8.
func (en *Engine) codec() (encoding.Encoding, error) {
	switch strings.ToLower(en.Encoding) {
	case "", "utf-8", "utf8":
		return nil, nil //nolint:nilnil // nil means no transcoding
	}

	enc, err := ianaindex.IANA.Encoding(en.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %q: %w", ErrConfig, en.Encoding, err)
	}

	if enc == nil {
		return nil, fmt.Errorf("%w: encoding %q is not supported", ErrConfig, en.Encoding)
	}

	return enc, nil
}

func (en *Engine) decode(raw []byte) (string, error) {
	const errCtx = "decoding template"

	enc, err := en.codec()
	if err != nil {
		return "", err
	}

	if enc == nil {
		return string(raw), nil
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return string(out), nil
}

func (en *Engine) encode(text string) ([]byte, error) {
	const errCtx = "encoding output"

	enc, err := en.codec()
	if err != nil {
		return nil, err
	}

	if enc == nil {
		return []byte(text), nil
	}

	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return out, nil
}

func (en *Engine) logger() *slog.Logger {
	if en.Logger != nil {
		return en.Logger
	}

	return slog.Default()
}

// readTemplate reads the template from a file path. If
// tplPath is empty it reads from stdin.
func (en *Engine) readTemplate(
	tplPath string,
) ([]byte, error) {
	const errCtx = "reading template"

	if tplPath != "" {
		content, err := os.ReadFile(tplPath) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return content, nil
	}

	in := en.Stdin
	if in == nil {
		in = os.Stdin
	}

	content, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: reading stdin: %w", errCtx, err,
		)
	}

	return content, nil
}

// openOutput returns a writer for the result. When
// outPath is empty it returns stdout. The returned
// closer function must be called to finalize the file
// (may be nil for stdout).
func (en *Engine) openOutput(
	outPath string,
	executable bool,
) (io.Writer, func(), error) {
	const errCtx = "opening output"

	if outPath == "" {
		if en.Stdout != nil {
			return en.Stdout, nil, nil
		}

		return os.Stdout, nil, nil
	}

	var perm os.FileMode = 0o666
	if executable {
		perm = 0o777
	}

	fi, err := os.OpenFile( //nolint:gosec // paths from CLI flags
		outPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC,
		perm,
	)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return fi, func() {
		_ = fi.Close() //nolint:errcheck // best-effort close
	}, nil
}
