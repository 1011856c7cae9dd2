package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/restbackup/pkg/acl"
	"github.com/cuemby/restbackup/pkg/security"
	"github.com/cuemby/restbackup/pkg/storage"
	"github.com/cuemby/restbackup/pkg/types"
)

const dataName = "ab0123000000000000000000000000000000000000000000000000000000cdef"

func newOpenDispatcher(t *testing.T) (*Dispatcher, storage.Backend) {
	t.Helper()
	backend, err := storage.NewFSBackend(t.TempDir(), 0)
	require.NoError(t, err)
	policy := types.GlobalPolicy{DisableAuth: true, DisableACL: true}
	engine := acl.New(acl.Table{}, policy)
	return NewDispatcher(backend, nil, engine, policy, "restbackup", nil), backend
}

func TestDispatcherHealthBypassesEverything(t *testing.T) {
	d, _ := newOpenDispatcher(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	d.Routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "live", w.Body.String())
}

func TestDispatcherCreateRepoThenWriteThenRead(t *testing.T) {
	d, _ := newOpenDispatcher(t)
	routes := d.Routes()

	createReq := httptest.NewRequest(http.MethodPost, "/alice/photos?create=true", nil)
	createW := httptest.NewRecorder()
	routes.ServeHTTP(createW, createReq)
	require.Equal(t, http.StatusOK, createW.Code)

	writeReq := httptest.NewRequest(http.MethodPost, "/alice/photos/data/"+dataName, strings.NewReader("hello"))
	writeW := httptest.NewRecorder()
	routes.ServeHTTP(writeW, writeReq)
	require.Equal(t, http.StatusOK, writeW.Code)

	readReq := httptest.NewRequest(http.MethodGet, "/alice/photos/data/"+dataName, nil)
	readW := httptest.NewRecorder()
	routes.ServeHTTP(readW, readReq)
	assert.Equal(t, http.StatusOK, readW.Code)
	assert.Equal(t, "hello", readW.Body.String())
}

func TestDispatcherOverwriteRejected(t *testing.T) {
	d, _ := newOpenDispatcher(t)
	routes := d.Routes()

	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r?create=true", nil))
	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r/data/"+dataName, strings.NewReader("first")))

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/r/data/"+dataName, strings.NewReader("second")))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDispatcherRangeRead(t *testing.T) {
	d, _ := newOpenDispatcher(t)
	routes := d.Routes()

	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r?create=true", nil))
	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r/data/"+dataName, strings.NewReader("hello")))

	req := httptest.NewRequest(http.MethodGet, "/r/data/"+dataName, nil)
	req.Header.Set("Range", "bytes=0-1")
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 0-1/5", w.Header().Get("Content-Range"))
	assert.Equal(t, "he", w.Body.String())
}

func TestDispatcherAppendOnlyBlocksDelete(t *testing.T) {
	backend, err := storage.NewFSBackend(t.TempDir(), 0)
	require.NoError(t, err)
	policy := types.GlobalPolicy{DisableAuth: true, DisableACL: true, AppendOnly: true}
	engine := acl.New(acl.Table{}, policy)
	d := NewDispatcher(backend, nil, engine, policy, "restbackup", nil)
	routes := d.Routes()

	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r?create=true", nil))
	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r/data/"+dataName, strings.NewReader("hello")))

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/r/data/"+dataName, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDispatcherListingV1AndV2(t *testing.T) {
	d, _ := newOpenDispatcher(t)
	routes := d.Routes()

	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r?create=true", nil))
	routes.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/r/data/"+dataName, strings.NewReader("hello")))

	v1 := httptest.NewRequest(http.MethodGet, "/r/data/", nil)
	w1 := httptest.NewRecorder()
	routes.ServeHTTP(w1, v1)
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Contains(t, w1.Body.String(), dataName)
	assert.NotContains(t, w1.Body.String(), "size")

	v2 := httptest.NewRequest(http.MethodGet, "/r/data/", nil)
	v2.Header.Set("Accept", mediaTypeV2)
	w2 := httptest.NewRecorder()
	routes.ServeHTTP(w2, v2)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), `"size"`)
}

func TestDispatcherWritingToMissingRepoIs404(t *testing.T) {
	d, _ := newOpenDispatcher(t)
	routes := d.Routes()

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/nope/data/"+dataName, strings.NewReader("x")))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispatcherAuthChallenge(t *testing.T) {
	dir := t.TempDir()
	htpasswdPath := filepath.Join(dir, "htpasswd")
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(htpasswdPath, []byte("alice:"+string(hash)+"\n"), 0o600))

	creds, err := security.LoadCredentialStore(htpasswdPath)
	require.NoError(t, err)

	backend, err := storage.NewFSBackend(t.TempDir(), 0)
	require.NoError(t, err)
	policy := types.GlobalPolicy{DisableACL: true}
	engine := acl.New(acl.Table{}, policy)
	d := NewDispatcher(backend, creds, engine, policy, "restbackup", nil)
	routes := d.Routes()

	noAuth := httptest.NewRequest(http.MethodGet, "/r/data/", nil)
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, noAuth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	authed := httptest.NewRequest(http.MethodPost, "/r?create=true", nil)
	authed.SetBasicAuth("alice", "pw")
	w2 := httptest.NewRecorder()
	routes.ServeHTTP(w2, authed)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestDispatcherACLDenial(t *testing.T) {
	backend, err := storage.NewFSBackend(t.TempDir(), 0)
	require.NoError(t, err)
	policy := types.GlobalPolicy{DisableAuth: true}
	engine := acl.New(acl.Table{"default": {"*": types.LevelRead}}, policy)
	d := NewDispatcher(backend, nil, engine, policy, "restbackup", nil)
	routes := d.Routes()

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/r?create=true", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
