// Package sshpool implements the shared, lazily-established SSH session
// pool from spec.md §4.3: sessions are keyed by a digest of their
// credentials and re-established on next use once marked unhealthy by a
// failed or timed-out operation. Sessions are not reference-counted: the
// pool replaces an unhealthy session at its next lookup whether or not
// other callers still hold it.
package sshpool

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"my-reverse-proxy/internal/settings"
)

// Session wraps one authenticated SSH connection plus the lazily-created
// SFTP subsystem used for DownloadFile, and the cached $HOME expansion
// for "~"-prefixed remote paths.
type Session struct {
	client *ssh.Client

	mu       sync.Mutex
	sftp     *sftp.Client
	homeOnce sync.Once
	home     string
	homeErr  error

	healthy atomic.Bool
}

// markUnhealthy flags the session for eviction on the pool's next lookup.
// A failed or timed-out operation calls this; the session itself is not
// torn down synchronously -- Pool.GetOrCreate re-dials on next use.
func (s *Session) markUnhealthy() {
	s.healthy.Store(false)
}

// Healthy reports whether no operation on this session has failed or
// timed out yet; once cleared, the flag stays cleared.
func (s *Session) Healthy() bool {
	return s.healthy.Load()
}

// Close releases the underlying SSH connection (and SFTP subsystem, if
// one was opened).
func (s *Session) Close() error {
	s.mu.Lock()
	if s.sftp != nil {
		s.sftp.Close()
	}
	s.mu.Unlock()
	return s.client.Close()
}

// OpenTCPChannel opens a direct-tcpip channel to remote "host:port",
// mirroring the teacher's server-side direct-tcpip handling but from the
// client side (spec.md §4.3 open_tcp_channel).
func (s *Session) OpenTCPChannel(ctx context.Context, remoteHost string, remotePort int, timeout time.Duration) (net.Conn, error) {
	addr := net.JoinHostPort(remoteHost, fmt.Sprintf("%d", remotePort))

	type dialResult struct {
		conn net.Conn
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		conn, err := s.client.Dial("tcp", addr)
		done <- dialResult{conn, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			s.markUnhealthy()
			return nil, fmt.Errorf("ssh open_tcp_channel %s: %w", addr, res.err)
		}
		return res.conn, nil
	case <-time.After(timeout):
		s.markUnhealthy()
		return nil, fmt.Errorf("ssh open_tcp_channel %s: %w", addr, errTimeout)
	case <-ctx.Done():
		s.markUnhealthy()
		return nil, ctx.Err()
	}
}

// DownloadFile fetches path's content over SFTP, expanding a leading "~"
// against the session's cached $HOME first (spec.md §4.3).
func (s *Session) DownloadFile(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	expanded, err := s.expandHome(ctx, path, timeout)
	if err != nil {
		return nil, err
	}

	sc, err := s.sftpClient()
	if err != nil {
		s.markUnhealthy()
		return nil, err
	}

	type readResult struct {
		data []byte
		err  error
	}
	done := make(chan readResult, 1)
	go func() {
		f, err := sc.Open(expanded)
		if err != nil {
			done <- readResult{nil, err}
			return
		}
		defer f.Close()
		var buf []byte
		chunk := make([]byte, 32*1024)
		for {
			n, rerr := f.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if rerr != nil {
				if rerr.Error() == "EOF" {
					rerr = nil
				}
				done <- readResult{buf, rerr}
				return
			}
		}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			s.markUnhealthy()
			return nil, &FileError{Path: expanded, Err: res.err}
		}
		return res.data, nil
	case <-time.After(timeout):
		s.markUnhealthy()
		return nil, fmt.Errorf("ssh download_file %s: %w", expanded, errTimeout)
	case <-ctx.Done():
		s.markUnhealthy()
		return nil, ctx.Err()
	}
}

// Exec runs cmd over a fresh SSH session and returns captured stdout
// (spec.md §4.3 exec).
func (s *Session) Exec(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	type execResult struct {
		out string
		err error
	}
	done := make(chan execResult, 1)
	go func() {
		sess, err := s.client.NewSession()
		if err != nil {
			done <- execResult{"", err}
			return
		}
		defer sess.Close()
		out, err := sess.Output(cmd)
		done <- execResult{string(out), err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			s.markUnhealthy()
			return "", fmt.Errorf("ssh exec %q: %w", cmd, res.err)
		}
		return res.out, nil
	case <-time.After(timeout):
		s.markUnhealthy()
		return "", fmt.Errorf("ssh exec %q: %w", cmd, errTimeout)
	case <-ctx.Done():
		s.markUnhealthy()
		return "", ctx.Err()
	}
}

// expandHome substitutes a single leading "~" in path with the session's
// $HOME, resolved once per session via `echo $HOME` and cached
// thereafter. The expansion is not recursive and never touches a "~"
// that isn't the first character.
func (s *Session) expandHome(ctx context.Context, path string, timeout time.Duration) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	s.homeOnce.Do(func() {
		out, err := s.Exec(ctx, "echo $HOME", timeout)
		if err != nil {
			s.homeErr = err
			return
		}
		s.home = strings.TrimSpace(out)
	})
	if s.homeErr != nil {
		return "", s.homeErr
	}
	return s.home + strings.TrimPrefix(path, "~"), nil
}

func (s *Session) sftpClient() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sftp != nil {
		return s.sftp, nil
	}
	sc, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("starting sftp subsystem: %w", err)
	}
	s.sftp = sc
	return sc, nil
}

// FileError wraps an SFTP error together with the path that failed, so
// callers (internal/content) can distinguish "not found" from other
// failures the way spec.md §4.4 requires (SSH error -28 -> 404).
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("ssh file %q: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// NotFound reports whether the wrapped SFTP error is the "no such file"
// case (the Go pkg/sftp analogue of Rust's ssh2::ErrorCode::Session(-28)).
func (e *FileError) NotFound() bool {
	return os.IsNotExist(e.Err) || sftp.ErrSSHFxNoSuchFile == e.Err
}

var errTimeout = fmt.Errorf("operation timed out")

// dial establishes a fresh *ssh.Client for creds.
func dial(creds *settings.SshCredentials, timeout time.Duration) (*ssh.Client, error) {
	authMethods, err := buildAuthMethods(creds.Auth)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	client, err := ssh.Dial("tcp", creds.Addr(), config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", creds.Addr(), err)
	}
	return client, nil
}

func buildAuthMethods(auth settings.AuthMethod) ([]ssh.AuthMethod, error) {
	switch a := auth.(type) {
	case settings.PasswordAuth:
		return []ssh.AuthMethod{ssh.Password(a.Password)}, nil
	case settings.PrivateKeyAuth:
		keyBytes, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, fmt.Errorf("reading private key %s: %w", a.Path, err)
		}
		var signer ssh.Signer
		if a.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(a.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", a.Path, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case settings.AgentAuth:
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, fmt.Errorf("agent auth requested but SSH_AUTH_SOCK is not set")
		}
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, fmt.Errorf("connecting to ssh-agent: %w", err)
		}
		ag := agent.NewClient(conn)
		return []ssh.AuthMethod{ssh.PublicKeysCallback(ag.Signers)}, nil
	default:
		return nil, fmt.Errorf("unsupported ssh auth method")
	}
}

