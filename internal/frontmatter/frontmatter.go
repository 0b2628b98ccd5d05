// Package frontmatter splits YAML frontmatter from markdown page sources
// and parses it into the untyped map the hydration payload carries.
package frontmatter

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/tabi-dev/tabi/internal/errors"
)

var delimiter = []byte("---")

// Split separates a leading "---" delimited YAML block from the markdown
// body. Documents without a frontmatter block return had=false and the
// full input as body. A missing closing delimiter is an error: silently
// treating half a YAML block as content hides typos from authors.
func Split(content []byte) (fm, body []byte, had bool, err error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	open := append(append([]byte{}, delimiter...), '\n')
	if !bytes.HasPrefix(normalized, open) {
		return nil, content, false, nil
	}

	rest := normalized[len(open):]

	// An immediately closed block is empty frontmatter.
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, nil
	}

	closeSeq := []byte("\n---\n")
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		// A final "---" without a trailing newline still closes the block.
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")+1], []byte{}, true, nil
		}

		return nil, nil, false, errors.NewManifestError(
			errors.ErrCodeScanFailed,
			"frontmatter opened but never closed",
			nil,
		)
	}

	fm = rest[:idx+1]
	body = rest[idx+len(closeSeq):]

	return fm, body, true, nil
}

// Parse splits content and decodes the YAML block into a map. Pages
// without frontmatter yield an empty map, never nil, so payload encoding
// always emits an object.
func Parse(content []byte) (map[string]any, []byte, error) {
	fm, body, had, err := Split(content)
	if err != nil {
		return nil, nil, err
	}

	if !had || len(bytes.TrimSpace(fm)) == 0 {
		return map[string]any{}, body, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		return nil, nil, errors.NewManifestError(
			errors.ErrCodeScanFailed,
			"frontmatter is not valid YAML",
			err,
		)
	}

	if fields == nil {
		fields = map[string]any{}
	}

	return fields, body, nil
}
