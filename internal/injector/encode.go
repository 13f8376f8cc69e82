package injector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/whispin/modloader/internal/target"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var errEmptyPath = errors.New("module path cannot be empty")

// EncodePath converts a module path into the bytes the loader expects,
// including a single terminator of the charset's width.
func EncodePath(path string, cs target.Charset) ([]byte, error) {
	if path == "" {
		return nil, errEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return nil, fmt.Errorf("module path contains NUL: %q", path)
	}

	var enc *encoding.Encoder
	switch cs {
	case target.UTF16:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	case target.ANSI:
		enc = charmap.Windows1252.NewEncoder()
	default:
		return nil, fmt.Errorf("unknown charset %d", cs)
	}

	b, err := enc.Bytes([]byte(path))
	if err != nil {
		return nil, fmt.Errorf("encode module path as %s: %w", cs, err)
	}
	return append(b, make([]byte, cs.Width())...), nil
}
