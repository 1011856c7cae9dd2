package security

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/GehirnInc/crypt/apr1_crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseCredentialStoreSkipsBlankAndCommentLines(t *testing.T) {
	body := "# a comment\n\nalice:$2y$05$abcdefghijklmnopqrstuuVQhH8jXWgHn9qaNUv0ExqRlXVYsnMEG\n"
	cs, err := parseCredentialStore(strings.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, cs.hashes, 1)
}

func TestParseCredentialStoreMalformedLineIsFatal(t *testing.T) {
	_, err := parseCredentialStore(strings.NewReader("not-a-valid-line\n"))
	assert.Error(t, err)

	_, err = parseCredentialStore(strings.NewReader("alice:\n"))
	assert.Error(t, err)
}

func TestVerifyBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	cs := &CredentialStore{hashes: map[string]string{"alice": string(hash)}}

	assert.True(t, cs.Verify("alice", "s3cret"))
	assert.False(t, cs.Verify("alice", "wrong"))
}

func TestVerifySHA1(t *testing.T) {
	sum := sha1.Sum([]byte("password"))
	hash := "{SHA}" + base64.StdEncoding.EncodeToString(sum[:])
	cs := &CredentialStore{hashes: map[string]string{"bob": hash}}

	assert.True(t, cs.Verify("bob", "password"))
	assert.False(t, cs.Verify("bob", "wrong"))
}

func TestVerifyApr1(t *testing.T) {
	hash, err := apr1_crypt.New().Generate([]byte("secret"), nil)
	require.NoError(t, err)
	cs := &CredentialStore{hashes: map[string]string{"carol": hash}}

	assert.True(t, cs.Verify("carol", "secret"))
	assert.False(t, cs.Verify("carol", "wrong"))
}

func TestVerifyUnknownUserRunsDummyComparison(t *testing.T) {
	cs := &CredentialStore{hashes: map[string]string{}}
	assert.False(t, cs.Verify("nobody", "whatever"))
}
