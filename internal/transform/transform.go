package transform

// Package transform holds the pluggable content-transform strategy the
// attachment orchestrator applies to staged files whose MIME type matches a
// configured allow-list. The transform replaces content, name suffix and
// MIME type as one unit.

// Result is the rewritten file content produced by a Transformer.
// Suffix is appended to the original file name (e.g. ".webp").
type Result struct {
	Content  []byte
	Suffix   string
	MimeType string
}

// Transformer rewrites file content. Implementations must either return a
// complete Result or an error; a partial rewrite is not a valid outcome.
type Transformer interface {
	Transform(content []byte, mimeType string) (Result, error)
}

// Func adapts a plain function to the Transformer interface.
type Func func(content []byte, mimeType string) (Result, error)

func (f Func) Transform(content []byte, mimeType string) (Result, error) {
	return f(content, mimeType)
}
