package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// LocalFile serves files from a local directory rooted at basePath.
// Request path "/" maps to defaultFile (when set) per the exact-root-path
// rule; any other path is joined onto basePath verbatim.
type LocalFile struct {
	basePath    string
	defaultFile string
}

// NewLocalFile constructs a source rooted at basePath. defaultFile is
// always empty for the current "file:" grammar (LocalPathProxyPass has no
// default-file form) but the parameter exists so the request-path "/"
// substitution logic is shared with FileOverSsh's ";default=" form.
func NewLocalFile(basePath, defaultFile string) *LocalFile {
	return &LocalFile{basePath: basePath, defaultFile: defaultFile}
}

// Execute reads the requested file synchronously; ctx cancellation is not
// observed mid-read since os.ReadFile has no cancellable variant, but the
// read itself is a local filesystem operation with no network wait.
func (l *LocalFile) Execute(ctx context.Context, req *IncomingRequest) (*Response, error) {
	resolved := l.resolvePath(req.Path)

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return bufferedResponse(200, DetectContentType(resolved), data), nil
}

func (l *LocalFile) resolvePath(requestPath string) string {
	if requestPath == "/" && l.defaultFile != "" {
		return filepath.Join(l.basePath, l.defaultFile)
	}
	return filepath.Join(l.basePath, strings.TrimPrefix(requestPath, "/"))
}
