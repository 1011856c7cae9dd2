package security

import (
	"bufio"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/apr1_crypt"
	descrypt "github.com/amoghe/go-crypt"
	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/restbackup/pkg/apierr"
)

// CredentialStore verifies HTTP Basic credentials against an Apache
// htpasswd-format file (component C3, spec.md §4.3). It is loaded
// once at startup and never mutated for the life of the process.
type CredentialStore struct {
	hashes map[string]string // user -> hash, including its family prefix
}

// LoadCredentialStore reads a "user:hash" file. Comment lines (# ...)
// and blank lines are skipped; any other malformed line is fatal, per
// spec.md §4.3.
func LoadCredentialStore(path string) (*CredentialStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to open credentials file", err)
	}
	defer f.Close()
	return parseCredentialStore(f)
}

func parseCredentialStore(r io.Reader) (*CredentialStore, error) {
	hashes := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 || idx == len(line)-1 {
			return nil, apierr.New(apierr.Internal, fmt.Sprintf("malformed credentials line %d", lineNo))
		}
		user, hash := line[:idx], line[idx+1:]
		hashes[user] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to read credentials file", err)
	}
	return &CredentialStore{hashes: hashes}, nil
}

// Verify reports whether password is correct for user. The hash
// family is auto-detected from its prefix. A missing user still runs
// a dummy comparison against a fixed reference hash so that overall
// latency does not betray which usernames exist.
func (c *CredentialStore) Verify(user, password string) bool {
	hash, ok := c.hashes[user]
	if !ok {
		verifyHash(dummyHash, password)
		return false
	}
	return verifyHash(hash, password)
}

// dummyHash is never matched by any real password; it exists only so
// Verify always pays the cost of one hash comparison.
const dummyHash = "$apr1$00000000$QGcTAgZaLjDJ1amdVJgvC."

func verifyHash(hash, password string) bool {
	switch {
	case strings.HasPrefix(hash, "$2y$"), strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case strings.HasPrefix(hash, "$apr1$"):
		c, err := crypt.NewFromHash(hash)
		if err != nil {
			return false
		}
		return c.Verify(hash, []byte(password)) == nil
	case strings.HasPrefix(hash, "{SHA}"):
		sum := sha1.Sum([]byte(password))
		return constantTimeEqual(hash, "{SHA}"+base64.StdEncoding.EncodeToString(sum[:]))
	default:
		return verifyCryptDES(hash, password)
	}
}

func verifyCryptDES(hash, password string) bool {
	if len(hash) < 2 {
		return false
	}
	computed, err := descrypt.Crypt(password, hash[:2])
	if err != nil {
		return false
	}
	return constantTimeEqual(hash, computed)
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		// still perform a comparison so the early return itself isn't
		// a useful timing oracle against hashes of a known length.
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
