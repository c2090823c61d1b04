package digester

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// CalculateDigest computes the SHA256 hex digest of the file at
// path. Returns empty string with no error if the file does not
// exist.
func CalculateDigest(path string) (result string, retErr error) {
	const errCtx = "calculating digest"

	fi, err := os.Open(path) //nolint:gosec // path is caller-provided by design
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if closeErr := fi.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("%s: %w", errCtx, closeErr)
		}
	}()

	ha := sha256.New()

	if _, err := io.Copy(ha, fi); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return hex.EncodeToString(ha.Sum(nil)), nil
}

// DigestBytes returns the SHA256 hex digest of data.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestStrings digests the parts as one stream, each part terminated
// by a NUL byte so ("ab", "c") and ("a", "bc") differ.
func DigestStrings(parts ...string) string {
	ha := sha256.New()

	for _, pt := range parts {
		_, _ = io.WriteString(ha, pt) //nolint:errcheck // hash writes never fail
		_, _ = ha.Write([]byte{0})    //nolint:errcheck // hash writes never fail
	}

	return hex.EncodeToString(ha.Sum(nil))
}

// Unchanged reports whether the file at path already holds exactly data.
// A missing file is reported as changed.
func Unchanged(path string, data []byte) (bool, error) {
	const errCtx = "comparing digest"

	cur, err := CalculateDigest(path)
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cur != "" && cur == DigestBytes(data), nil
}
