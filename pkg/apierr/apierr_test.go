package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{BadRequest, http.StatusBadRequest},
		{Unauthorized, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{QuotaExceeded, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{RangeNotSatisfiable, http.StatusRequestedRangeNotSatisfiable},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusCode(New(c.kind, "")))
	}
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
}

func TestClientMessageHidesInternals(t *testing.T) {
	err := Wrap(Io, "write failed", errors.New("open /secret/path: permission denied"))
	msg := ClientMessage(err)
	assert.Equal(t, "internal error", msg)
	assert.NotContains(t, msg, "/secret/path")
}

func TestClientMessagePassesThroughDetail(t *testing.T) {
	err := New(Conflict, "object already exists")
	assert.Equal(t, "object already exists", ClientMessage(err))
}

func TestAs(t *testing.T) {
	err := New(NotFound, "missing")
	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, NotFound, e.Kind)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
