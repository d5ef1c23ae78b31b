package errs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/url"
	"syscall"

	"github.com/cockroachdb/errors"
)

// IsRetryable reports whether a transport-level failure may be recovered by
// executing the same request again. Certificate problems, closed transports
// and caller cancellation are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rte *RetryableTransportError
	if errors.As(err, &rte) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsRetryable(urlErr.Err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrTransportClosed) {
		return false
	}

	var certErr *tls.CertificateVerificationError
	var authErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &authErr) || errors.As(err, &hostErr) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Kind names the taxonomy bucket of an error for metrics and logs.
func Kind(err error) string {
	var (
		cfg  *ConfigurationError
		ce   *ClassifiedError
		pe   *ProtocolError
		te   *TerminalError
		re   *RequestError
		rte  *RetryableTransportError
		none = "none"
	)
	switch {
	case err == nil:
		return none
	case errors.As(err, &cfg):
		return "configuration"
	case errors.As(err, &ce):
		return "classified"
	case errors.As(err, &pe):
		return "protocol"
	case errors.As(err, &te):
		return "terminal"
	case errors.As(err, &re):
		return "request"
	case errors.As(err, &rte):
		return "transport"
	default:
		return "transport"
	}
}
