package app

import "github.com/google/uuid"

// tokenKeyLen is the fixed size of the derived symmetric token-signing key.
const tokenKeyLen = 48

// deriveTokenSecretKey implements the wrap-and-consume derivation from
// spec.md §4.1: repeatedly pop a byte off the tail of the source key,
// wrapping back to a fresh copy of the source once it is exhausted, until
// 48 bytes are collected. Deriving twice from the same sessionKey always
// yields the same 48 bytes (spec.md §8 invariant), which is the point: a
// configured session key survives a restart without being persisted
// anywhere else.
//
// When sessionKey is empty, a random UUIDv4 is generated once and used as
// the wrap-and-consume source instead.
func deriveTokenSecretKey(sessionKey []byte) [tokenKeyLen]byte {
	var result [tokenKeyLen]byte

	source := sessionKey
	if len(source) == 0 {
		id := uuid.New()
		source = id[:]
	}

	key := append([]byte(nil), source...)
	for i := 0; i < tokenKeyLen; i++ {
		if len(key) == 0 {
			key = append([]byte(nil), source...)
		}
		last := len(key) - 1
		result[i] = key[last]
		key = key[:last]
	}

	return result
}
