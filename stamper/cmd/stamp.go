package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/byte4ever/templite/stamper"
)

var errFormatConflict = errors.New("only one of --format or --format-file may be given")

type stampOptions struct {
	stampFiles []string
	format     string
	formatFile string
	output     string
}

func newStampCmd(stdout io.Writer) *cobra.Command {
	var opts stampOptions

	cmd := &cobra.Command{
		Use:   "stamp",
		Short: "Substitute workspace status values into text",
		Long: `stamp replaces {KEY} placeholders with the values read from workspace
status files. Unknown keys are left as they are.

Examples:
  stamp --stamp-info-file status.txt --format "v{BUILD_VERSION}"
  stamp --stamp-info-file status.txt --format-file tag.txt -o tag.out`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return stamp(opts, stdout)
		},
	}

	fl := cmd.Flags()

	fl.StringArrayVar(&opts.stampFiles, "stamp-info-file", nil, "workspace status file (repeatable)")
	fl.StringVar(&opts.format, "format", "", "format string holding {KEY} placeholders")
	fl.StringVar(&opts.formatFile, "format-file", "", "file holding {KEY} placeholders")
	fl.StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func stamp(opts stampOptions, stdout io.Writer) error {
	const errCtx = "stamping"

	if opts.format != "" && opts.formatFile != "" {
		return fmt.Errorf("%s: %w", errCtx, errFormatConflict)
	}

	format := opts.format

	if opts.formatFile != "" {
		content, err := os.ReadFile(opts.formatFile) //nolint:gosec // path from CLI flag
		if err != nil {
			return fmt.Errorf("%s: reading format file: %w", errCtx, err)
		}

		format = string(content)
	}

	stamps, err := stamper.LoadStamps(opts.stampFiles)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	result := stamps.Apply(format)

	if opts.output == "" {
		if _, err := io.WriteString(stdout, result); err != nil {
			return fmt.Errorf("%s: writing to stdout: %w", errCtx, err)
		}

		return nil
	}

	if err := os.WriteFile(opts.output, []byte(result), 0o644); err != nil { //nolint:gosec // generated text is not secret
		return fmt.Errorf("%s: writing output: %w", errCtx, err)
	}

	return nil
}
