package api

import (
	"net/http"

	"github.com/cuemby/restbackup/pkg/apierr"
)

// writeError maps err to the HTTP status-code contract in spec.md
// §6.4 and writes a short plain-text body. It never writes filesystem
// paths or wrapped internal error text.
func writeError(w http.ResponseWriter, err error) {
	status := apierr.StatusCode(err)
	msg := apierr.ClientMessage(err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
