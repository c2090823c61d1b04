package stamper

import (
	"fmt"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"
)

// Stamps maps workspace status keys to their values.
type Stamps map[string]any

// LoadStamps reads workspace status files and merges them
// into a single map. Each line is "KEY VALUE" with the
// first space as delimiter; later files override earlier
// ones. Lines without a space are skipped.
func LoadStamps(
	infoFiles []string,
) (Stamps, error) {
	const errCtx = "loading stamps"

	stamps := make(Stamps)

	for _, sf := range infoFiles {
		content, err := os.ReadFile(sf) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		for _, line := range strings.Split(
			string(content), "\n",
		) {
			key, val, ok := strings.Cut(
				strings.TrimRight(line, "\r"), " ",
			)
			if ok && key != "" {
				stamps[key] = val
			}
		}
	}

	return stamps, nil
}

// Apply substitutes {VAR} placeholders in format. Unknown
// variables are preserved as-is.
func (st Stamps) Apply(format string) string {
	if len(st) == 0 {
		return format
	}

	return fasttemplate.ExecuteStringStd(
		format, "{", "}", st,
	)
}
