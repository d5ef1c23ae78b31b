package httpx

import "github.com/seb7887/gofw/httpx/errs"

// The error taxonomy lives in package errs so that every layer can use it;
// these aliases let callers depend on httpx alone.
type (
	ConfigurationError      = errs.ConfigurationError
	RetryableTransportError = errs.RetryableTransportError
	TerminalError           = errs.TerminalError
	ClassifiedError         = errs.ClassifiedError
	ProtocolError           = errs.ProtocolError
	RequestError            = errs.RequestError
)

// Sentinel errors that can be checked using errors.Is
var (
	ErrRetriesExhausted = errs.ErrRetriesExhausted
	ErrInterrupted      = errs.ErrInterrupted
	ErrTransportClosed  = errs.ErrTransportClosed
	ErrUnknownClient    = errs.ErrUnknownClient
)

// StatusCode extracts the upstream status from a classified or protocol error.
func StatusCode(err error) (int, bool) {
	return errs.StatusCode(err)
}

// ErrorKind names the taxonomy category of err, for logs and metrics.
func ErrorKind(err error) string {
	return errs.Kind(err)
}
