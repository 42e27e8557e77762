// Package identity derives hashed rate-limit and quota keys from raw caller identities.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const unknownIP = "unknown"

// Hasher produces keyed BLAKE2b-256 digests. Keys are stable for the lifetime
// of a Hasher; share a salt across processes to share keys in Redis.
type Hasher struct {
	key []byte
}

// NewHasher derives the hash key from salt. An empty salt yields a random
// per-process key.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate identity salt: %w", err)
		}
		return &Hasher{key: buf}, nil
	}
	sum := sha256.Sum256([]byte(salt))
	return &Hasher{key: sum[:]}, nil
}

func (h *Hasher) sum(kind, raw string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key is always 32 bytes
		panic(err)
	}
	mac.Write([]byte(kind))
	mac.Write([]byte{0})
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// User returns the key for an authenticated user id.
func (h *Hasher) User(userID string) string {
	return "u_" + h.sum("user", userID)
}

// IP returns the key for a client address. Empty addresses share one key.
func (h *Hasher) IP(ip string) string {
	if ip == "" {
		ip = unknownIP
	}
	return "ip_" + h.sum("ip", ip)
}

// Learner picks the user key when authenticated, else the IP key.
func (h *Hasher) Learner(userID, ip string) string {
	if userID != "" {
		return h.User(userID)
	}
	return h.IP(ip)
}

// Short trims a key for log lines.
func Short(key string) string {
	if len(key) > 14 {
		return key[:14]
	}
	return key
}

// ClientIP returns the caller address, honouring X-Forwarded-For when the
// gateway sits behind a trusted proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first := strings.TrimSpace(strings.Split(fwd, ",")[0])
			if first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
