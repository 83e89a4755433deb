// Package httpserver builds the process's single HTTP listener.
package httpserver

import (
	"net/http"
	"time"
)

// New returns the server the router is mounted on. Timeouts are generous
// because batch assignment can touch hundreds of rows in one transaction.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
