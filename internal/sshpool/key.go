package sshpool

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"my-reverse-proxy/internal/settings"
)

// credentialsKey returns a stable digest of an SshCredentials value,
// suitable for keying the session pool's concurrent map.
func credentialsKey(creds *settings.SshCredentials) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s", creds.Host, creds.Port, creds.User, authKind(creds.Auth))
	return hex.EncodeToString(h.Sum(nil))
}

func authKind(auth settings.AuthMethod) string {
	switch a := auth.(type) {
	case settings.PasswordAuth:
		return "password:" + a.Password
	case settings.PrivateKeyAuth:
		return "key:" + a.Path + ":" + a.Passphrase
	case settings.AgentAuth:
		return "agent"
	default:
		return "unknown"
	}
}
