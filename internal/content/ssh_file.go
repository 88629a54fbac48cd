package content

import (
	"context"
	"time"

	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

// FileOverSsh fetches a file via SFTP through a pooled SSH session,
// grounded on ssh_file_content_src.rs: request path "/" substitutes
// defaultFile when set, any other path is appended to the configured
// remote basePath verbatim, and a leading "~" in the resulting path is
// expanded against the session's cached $HOME.
type FileOverSsh struct {
	pool        *sshpool.Pool
	creds       *settings.SshCredentials
	basePath    string
	defaultFile string
	timeout     time.Duration
}

// NewFileOverSsh constructs a source rooted at basePath on the remote
// host reached through creds.
func NewFileOverSsh(pool *sshpool.Pool, creds *settings.SshCredentials, basePath, defaultFile string, timeout time.Duration) *FileOverSsh {
	return &FileOverSsh{pool: pool, creds: creds, basePath: basePath, defaultFile: defaultFile, timeout: timeout}
}

func (f *FileOverSsh) Execute(ctx context.Context, req *IncomingRequest) (*Response, error) {
	remotePath := f.resolvePath(req.Path)

	sess, err := f.pool.GetOrCreate(ctx, f.creds, f.timeout)
	if err != nil {
		return nil, err
	}

	data, err := sess.DownloadFile(ctx, remotePath, f.timeout)
	if err != nil {
		// A not-found *sshpool.FileError is returned as is: the Proxy Pass
		// Engine answers it with 404 "Not found".
		return nil, err
	}
	return bufferedResponse(200, DetectContentType(remotePath), data), nil
}

func (f *FileOverSsh) resolvePath(requestPath string) string {
	if requestPath == "/" && f.defaultFile != "" {
		return f.basePath + "/" + f.defaultFile
	}
	return f.basePath + requestPath
}
