package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/byte4ever/templite/stamper"
	"github.com/byte4ever/templite/templating"
	"github.com/byte4ever/templite/watcher"
)

// options holds the flags that are not read through viper. Repeatable
// flags stay out of viper, which would split their values on commas.
type options struct {
	input      string
	output     string
	defines    []string
	stampFiles []string
	dataFiles  []string
	imports    []string
	dump       string
	executable bool
	watch      bool
	cfgFile    string
}

// delimiterFlags maps each delimiter flag to the field it sets.
var delimiterFlags = []struct {
	name  string
	usage string
	field func(dl *templating.Delimiters) *string
}{
	{"expr-open", "expression open marker", func(dl *templating.Delimiters) *string { return &dl.ExprOpen }},
	{"expr-close", "expression close marker", func(dl *templating.Delimiters) *string { return &dl.ExprClose }},
	{"stmt-open", "statement open marker", func(dl *templating.Delimiters) *string { return &dl.StmtOpen }},
	{"stmt-close", "statement close marker", func(dl *templating.Delimiters) *string { return &dl.StmtClose }},
	{"comment-open", "comment open marker", func(dl *templating.Delimiters) *string { return &dl.CommentOpen }},
	{"comment-close", "comment close marker", func(dl *templating.Delimiters) *string { return &dl.CommentClose }},
}

func newRootCmd(
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) *cobra.Command {
	var opts options

	v := viper.New()

	cmd := &cobra.Command{
		Use:   "templite",
		Short: "A light-weight, general purpose templating engine",
		Long: `templite renders a template against variables given on the command line.

Templates mix literal text with {{ expressions }}, {% statements %} and
{# comments #}. A statement starting with ":" closes the current block.

Examples:
  templite -i page.tpl -o page.html -D title=Home
  templite -i deploy.sh.tpl -o deploy.sh --executable --data values.yaml
  templite -i page.tpl -o page.html --watch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig(v, opts.cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v, opts, stdin, stdout, stderr)
		},
	}

	fl := cmd.Flags()

	fl.StringVarP(&opts.input, "input", "i", "", "read template from this file (default: stdin)")
	fl.StringVarP(&opts.output, "output", "o", "",
		"write the generated text to this file, {VAR} stamps allowed (default: stdout)")
	fl.StringArrayVarP(&opts.defines, "define", "D", nil, "variable in NAME=VALUE format (repeatable)")
	fl.StringArrayVar(&opts.stampFiles, "stamp-info-file", nil, "workspace status file (repeatable)")
	fl.StringArrayVar(&opts.dataFiles, "data", nil, "YAML or JSON file of variables (repeatable)")
	fl.StringArrayVar(&opts.imports, "import", nil, "rendered file in NAME=FILE format (repeatable)")
	fl.StringVar(&opts.dump, "dump", "", "write generated programs to this file, - for stderr")
	fl.BoolVar(&opts.executable, "executable", false, "set the executable bit on the output file")
	fl.BoolVar(&opts.watch, "watch", false, "re-render whenever an input file changes")
	fl.StringVar(&opts.cfgFile, "config", "", "config file (default .templite.yaml)")

	fl.StringP("encoding", "e", "utf-8", "encoding of template files and output")
	fl.String("log-level", "info", "log level (debug, info, warn, error)")
	fl.String("dump-format", "text", "dump format (text, json)")
	fl.String("delimiters", "", "six space-separated markers: expression, statement, comment open/close pairs")
	fl.Bool("keep-line-continuations", false, "keep backslash-newline in literal text")
	fl.Bool("skip-unchanged", false, "leave the output file alone when its content would not change")
	fl.Duration("debounce", 100*time.Millisecond, "quiet period before re-rendering in watch mode")

	for _, df := range delimiterFlags {
		fl.String(df.name, "", df.usage)
	}

	_ = v.BindPFlags(fl) //nolint:errcheck // flags are defined above

	return cmd
}

// loadConfig layers the config file and TEMPLITE_* variables under the
// flags. A missing default config file is not an error.
func loadConfig(v *viper.Viper, cfgFile string) error {
	const errCtx = "loading config"

	v.SetEnvPrefix("TEMPLITE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".templite")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &nf) {
			return nil
		}

		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func run(
	ctx context.Context,
	v *viper.Viper,
	opts options,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) error {
	const errCtx = "templite"

	logger, err := newLogger(stderr, v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	en, closeDump, err := newEngine(v, opts, stderr, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	defer closeDump()

	en.Stdin = stdin
	en.Stdout = stdout

	stamps, err := stamper.LoadStamps(opts.stampFiles)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	bindings := stamper.Bindings{
		StampInfoFiles: opts.stampFiles,
		DataFiles:      opts.dataFiles,
		Defines:        opts.defines,
		Imports:        opts.imports,
	}

	output := stamps.Apply(opts.output)

	expand := func() error {
		ns, err := bindings.Namespace(en)
		if err != nil {
			return err
		}

		logger.Debug("expanding", "input", opts.input, "output", output, "bindings", ns.Len())

		return en.Expand(opts.input, output, ns, opts.executable)
	}

	if !opts.watch {
		if err := expand(); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		return nil
	}

	if err := watch(ctx, v, opts, en, expand, stderr, logger); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func watch(
	ctx context.Context,
	v *viper.Viper,
	opts options,
	en *templating.Engine,
	expand func() error,
	stderr io.Writer,
	logger *slog.Logger,
) error {
	if opts.input == "" {
		return errors.New("--watch needs --input")
	}

	wa, err := watcher.New(v.GetDuration("debounce"), logger)
	if err != nil {
		return err
	}

	defer func() { _ = wa.Close() }() //nolint:errcheck // best-effort close

	en.Cache = templating.NewMemoryCache(0)

	// Includes are discovered while rendering.
	var addErr error

	en.OnLoad = func(path string) {
		if err := wa.Add(path); err != nil && addErr == nil {
			addErr = err
		}
	}

	sources := append(append([]string{opts.input}, opts.stampFiles...), opts.dataFiles...)
	for _, im := range opts.imports {
		if _, file, ok := strings.Cut(im, "="); ok {
			sources = append(sources, file)
		}
	}

	for _, src := range sources {
		if err := wa.Add(src); err != nil {
			return err
		}
	}

	rerender := func(changed []string) error {
		if changed != nil {
			logger.Info("re-rendering", "changed", changed)
		}

		if err := expand(); err != nil {
			logger.Error("render failed", "error", err)

			if detail := templating.Detail(err); detail != "" {
				fmt.Fprint(stderr, detail)
			}

			return nil
		}

		if addErr != nil {
			logger.Warn("cannot watch include", "error", addErr)
			addErr = nil
		}

		logger.Info("rendered", "input", opts.input, "watching", len(wa.Files()))

		return nil
	}

	if err := rerender(nil); err != nil {
		return err
	}

	return wa.Run(ctx, rerender)
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// newEngine builds the engine from viper settings. The returned func
// closes the dump file, if one was opened.
func newEngine(
	v *viper.Viper,
	opts options,
	stderr io.Writer,
	logger *slog.Logger,
) (*templating.Engine, func(), error) {
	const errCtx = "configuring engine"

	noop := func() {}

	var dl templating.Delimiters

	if markers := v.GetString("delimiters"); markers != "" {
		parsed, err := templating.ParseDelimiters(markers)
		if err != nil {
			return nil, noop, fmt.Errorf("%s: %w", errCtx, err)
		}

		dl = parsed
	}

	for _, df := range delimiterFlags {
		if val := v.GetString(df.name); val != "" {
			*df.field(&dl) = val
		}
	}

	en := &templating.Engine{
		Delimiters:            dl,
		Encoding:              v.GetString("encoding"),
		KeepLineContinuations: v.GetBool("keep-line-continuations"),
		SkipUnchanged:         v.GetBool("skip-unchanged"),
		Logger:                logger,
	}

	if err := en.Validate(); err != nil {
		return nil, noop, fmt.Errorf("%s: %w", errCtx, err)
	}

	switch format := v.GetString("dump-format"); format {
	case "text":
	case "json":
		en.DumpJSON = true
	default:
		return nil, noop, fmt.Errorf("%s: unknown dump format %q", errCtx, format)
	}

	switch opts.dump {
	case "":
		return en, noop, nil
	case "-":
		en.Dump = stderr
		return en, noop, nil
	}

	fi, err := os.Create(opts.dump) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, noop, fmt.Errorf("%s: %w", errCtx, err)
	}

	en.Dump = fi

	return en, func() { _ = fi.Close() }, nil //nolint:errcheck // best-effort close
}
