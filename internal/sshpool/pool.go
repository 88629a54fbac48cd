package sshpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"my-reverse-proxy/internal/settings"
)

// Pool is the shared SSH session pool from spec.md §4.3: one *Session per
// distinct set of credentials, established lazily on first use and kept
// around across requests until it is marked unhealthy, at which point the
// next lookup discards it and dials fresh.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*Session
	creating map[string]*sync.WaitGroup
}

// NewPool constructs an empty session pool.
func NewPool() *Pool {
	return &Pool{
		sessions: make(map[string]*Session),
		creating: make(map[string]*sync.WaitGroup),
	}
}

// GetOrCreate returns the pooled session for creds, dialing a new one if
// none exists yet or the existing one was marked unhealthy. Concurrent
// callers requesting the same credentials block behind a single dial
// rather than racing to establish duplicate connections.
func (p *Pool) GetOrCreate(ctx context.Context, creds *settings.SshCredentials, connectTimeout time.Duration) (*Session, error) {
	key := credentialsKey(creds)

	for {
		p.mu.Lock()
		if sess, ok := p.sessions[key]; ok && sess.Healthy() {
			p.mu.Unlock()
			return sess, nil
		}
		if wg, ok := p.creating[key]; ok {
			p.mu.Unlock()
			wg.Wait()
			continue
		}

		wg := &sync.WaitGroup{}
		wg.Add(1)
		p.creating[key] = wg
		p.mu.Unlock()

		sess, err := p.establish(creds, connectTimeout)

		p.mu.Lock()
		if err == nil {
			p.sessions[key] = sess
		} else {
			delete(p.sessions, key)
		}
		delete(p.creating, key)
		p.mu.Unlock()
		wg.Done()

		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func (p *Pool) establish(creds *settings.SshCredentials, connectTimeout time.Duration) (*Session, error) {
	logrus.WithFields(logrus.Fields{
		"host": creds.Host,
		"port": creds.Port,
		"user": creds.User,
	}).Debug("sshpool: dialing new session")

	client, err := dial(creds, connectTimeout)
	if err != nil {
		logrus.WithError(err).WithField("host", creds.Host).Warn("sshpool: dial failed")
		return nil, fmt.Errorf("sshpool: %w", err)
	}

	sess := &Session{client: client}
	sess.healthy.Store(true)
	return sess, nil
}

// Evict removes creds' session from the pool immediately, closing its
// underlying connection. Callers use it after OpenTCPChannel fails, so the
// session is dropped at once rather than at the next lookup.
func (p *Pool) Evict(creds *settings.SshCredentials) {
	key := credentialsKey(creds)
	p.mu.Lock()
	sess, ok := p.sessions[key]
	delete(p.sessions, key)
	p.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// Close tears down every pooled session. Called during shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, sess := range p.sessions {
		sess.Close()
		delete(p.sessions, key)
	}
}
