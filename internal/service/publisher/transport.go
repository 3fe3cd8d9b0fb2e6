package publisher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// DescribeTransportError names the class of a network-level failure.
func DescribeTransportError(err error) string {
	var (
		dnsErr       *net.DNSError
		netErr       net.Error
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)

	switch {
	case err == nil:
		return "no error"
	case errors.Is(err, context.Canceled):
		return "request was cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, syscall.EPIPE):
		return "connection closed while sending (broken pipe); " +
			"GitHub may have rejected the asset, possibly a duplicate filename"
	case errors.Is(err, syscall.ECONNRESET):
		return "connection reset by peer"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.As(err, &dnsErr):
		return "DNS lookup failed"
	case errors.As(err, &recordErr),
		errors.As(err, &verifyErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return "TLS handshake failed"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "request timed out"
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return "connection closed before the response was complete"
	default:
		return "transport failure"
	}
}
