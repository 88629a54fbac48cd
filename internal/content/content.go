// Package content implements the lazily-connected content sources a
// Location's proxy_pass_to resolves to: remote HTTP(S), HTTP over an SSH
// tunnel, a local file, a file fetched over SSH/SFTP, a canned static
// response, and raw TCP. Callers see a uniform Execute (request/response)
// for the HTTP-shaped sources, or a Dial for the two raw-TCP ones.
package content

import (
	"errors"
	"mime"
	"path/filepath"
)

// ErrNotFound is returned by LocalFile when the target path does not
// exist; the Proxy Pass Engine maps it to an HTTP 404. FileOverSsh
// reports a missing remote file as a not-found *sshpool.FileError instead.
var ErrNotFound = errors.New("content: not found")

// DetectContentType guesses a MIME type from a path's extension, falling
// back to a generic octet-stream when the extension is unknown -- the Go
// analogue of the original WebContentType::detect_by_extension table.
func DetectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
