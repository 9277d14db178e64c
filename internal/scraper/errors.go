package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

var (
	// ErrTimeout is returned when a request does not complete within the client timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrConnection is returned when the server could not be reached (dns, dial, tls, reset).
	ErrConnection = errors.New("connection failed")
)

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnection(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var tlsErr tls.RecordHeaderError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &tlsErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	}
	// the server hung up before sending a full response
	var urlErr *url.Error
	return errors.As(err, &urlErr) && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF))
}

// classify wraps a request error with ErrTimeout or ErrConnection, caller cancellation is
// passed through untouched.
func classify(method, endpoint string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("scraper: %s %s: %w", method, endpoint, err)
	case isTimeout(err):
		return fmt.Errorf("scraper: %s %s: %w: %w", method, endpoint, ErrTimeout, err)
	case isConnection(err):
		return fmt.Errorf("scraper: %s %s: %w: %w", method, endpoint, ErrConnection, err)
	}
	return fmt.Errorf("scraper: %s %s: %w", method, endpoint, err)
}
