// Package neterr defines the error taxonomy shared by every package in
// gonet and translates OS-level socket/resolver failures into it.
package neterr

import (
	"errors"
	"fmt"
)

// Code identifies the category of a gonet error. Codes are stable values
// callers can switch on via errors.Is against the sentinel variables below,
// or by calling CodeOf on a wrapped error.
type Code int

const (
	// CodeUnknown is the zero value; TranslateErrno and TranslateOSError
	// return it for errors they have no mapping for.
	CodeUnknown Code = iota

	// Address / format.
	CodeInvalidIPAddress
	CodeInvalidNetworkAddress
	CodeInvalidNetmaskOrPrefixlen

	// Resolver.
	CodeHostNotFound
	CodeTryAgain
	CodeQueryFailed
	CodeNoResult
	CodeUnknownHost
	CodeIDNConversion

	// Socket.
	CodeCouldNotOpenSocket
	CodeCouldNotBindToInterface
	CodeIllegalPort
	CodeNotConnected
	CodeSocketAlreadyConnected
	CodeInvalidSocket
	CodeConnectionRefused
	CodeConnectionResetByPeer
	CodeNetworkDown
	CodeNetworkUnreachable
	CodeNoRouteToHost
	CodeHostDown
	CodeBrokenPipe
	CodeTimeout
	CodeOperationBlocked
	CodeOperationAborted
	CodeOperationInterrupted
	CodeOutOfBandDataReceived
	CodeSoftwareCausedConnectionAbort
	CodeNoBufferSpace
	CodeCantSendAfterSocketShutdown
	CodeTooManyReferences
	CodeUnknownOption

	// TLS.
	CodeSslNotStarted
	CodeSslConnectionFailed
	CodeSslContextUninitialized
	CodeSslContextInUse
	CodeSslReferenceCounterMismatch
	CodeInvalidSslCertificate
	CodeInvalidSslCipher
	CodeSslPrivateKey
	CodeSslFailedToReadDhParams
	CodeSsl

	// Framing.
	CodeNoDataAvailable
	CodeDataInOtherFormat
	CodeInvalidProtocolVersion
	CodeInvalidPacket
	CodePayloadTooBig

	// Generic.
	CodeOutOfMemory
	CodeIllegalArgument
	CodeBufferTooSmall
	CodeUnsupportedFeature

	// OS / filesystem (surfaced by os_error_to_exception translation).
	CodeInvalidArguments
	CodeInvalidFileName
	CodePermissionDenied
	CodeFileNotFound
	CodeTooManySymbolicLinks
	CodeNoRegularFile
	CodeReadOnly
	CodeTooManyOpenFiles
	CodeUnsupportedFileOperation
	CodeFilesystemFull
	CodeQuotaExceeded
	CodeIoError
	CodeBadFileDescriptor
	CodeBadAddress
	CodeOverflow
	CodeFileExists
	CodeDeadlock
	CodeTooManyLocks
	CodeIllegalOperationOnPipe
	CodeNetworkDroppedConnectionOnReset
)

// Error is the concrete error type returned by every gonet operation. It
// carries a Code for programmatic dispatch plus a human-readable message
// and optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Context != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Context, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Context, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Code, so callers can
// write errors.Is(err, neterr.New(neterr.CodeTimeout, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// New constructs an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an *Error that carries context and an underlying cause.
func Wrap(code Code, context string, cause error) *Error {
	msg := codeMessages[code]
	if msg == "" {
		msg = "unspecified error"
	}
	return &Error{Code: code, Message: msg, Context: context, Cause: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error, or
// CodeUnknown otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

var codeMessages = map[Code]string{
	CodeInvalidIPAddress:                "invalid IP address",
	CodeInvalidNetworkAddress:           "invalid network address",
	CodeInvalidNetmaskOrPrefixlen:       "invalid netmask or prefix length",
	CodeHostNotFound:                    "host not found",
	CodeTryAgain:                        "temporary resolver failure, try again",
	CodeQueryFailed:                     "DNS query failed",
	CodeNoResult:                        "no result",
	CodeUnknownHost:                     "unknown host",
	CodeIDNConversion:                   "IDN conversion failed",
	CodeCouldNotOpenSocket:              "could not open socket",
	CodeCouldNotBindToInterface:         "could not bind to interface",
	CodeIllegalPort:                     "illegal port",
	CodeNotConnected:                    "not connected",
	CodeSocketAlreadyConnected:          "socket already connected",
	CodeInvalidSocket:                   "invalid socket",
	CodeConnectionRefused:               "connection refused",
	CodeConnectionResetByPeer:           "connection reset by peer",
	CodeNetworkDown:                     "network is down",
	CodeNetworkUnreachable:              "network unreachable",
	CodeNoRouteToHost:                   "no route to host",
	CodeHostDown:                        "host is down",
	CodeBrokenPipe:                      "broken pipe",
	CodeTimeout:                         "operation timed out",
	CodeOperationBlocked:                "operation would block",
	CodeOperationAborted:                "operation aborted",
	CodeOperationInterrupted:            "operation interrupted",
	CodeOutOfBandDataReceived:           "out-of-band data received",
	CodeSoftwareCausedConnectionAbort:   "software caused connection abort",
	CodeNoBufferSpace:                   "no buffer space available",
	CodeCantSendAfterSocketShutdown:     "can't send after socket shutdown",
	CodeTooManyReferences:               "too many references",
	CodeUnknownOption:                   "unknown socket option",
	CodeSslNotStarted:                   "TLS not started",
	CodeSslConnectionFailed:             "TLS connection failed",
	CodeSslContextUninitialized:         "TLS context not configured",
	CodeSslContextInUse:                 "TLS context still in use",
	CodeSslReferenceCounterMismatch:     "TLS handle reference counter mismatch",
	CodeInvalidSslCertificate:           "invalid TLS certificate",
	CodeInvalidSslCipher:                "invalid TLS cipher list",
	CodeSslPrivateKey:                   "invalid TLS private key",
	CodeSslFailedToReadDhParams:         "failed to read DH parameters",
	CodeSsl:                             "TLS error",
	CodeNoDataAvailable:                 "no data available",
	CodeDataInOtherFormat:               "payload requested in the wrong format",
	CodeInvalidProtocolVersion:          "invalid protocol version",
	CodeInvalidPacket:                   "invalid packet",
	CodePayloadTooBig:                   "payload too big",
	CodeOutOfMemory:                     "out of memory",
	CodeIllegalArgument:                 "illegal argument",
	CodeBufferTooSmall:                  "buffer too small",
	CodeUnsupportedFeature:              "unsupported feature",
	CodeInvalidArguments:                "invalid arguments",
	CodeInvalidFileName:                 "invalid file name",
	CodePermissionDenied:                "permission denied",
	CodeFileNotFound:                    "file not found",
	CodeTooManySymbolicLinks:            "too many symbolic links",
	CodeNoRegularFile:                   "not a regular file",
	CodeReadOnly:                        "read-only filesystem",
	CodeTooManyOpenFiles:                "too many open files",
	CodeUnsupportedFileOperation:        "unsupported file operation",
	CodeFilesystemFull:                  "filesystem full",
	CodeQuotaExceeded:                   "disk quota exceeded",
	CodeIoError:                         "I/O error",
	CodeBadFileDescriptor:               "bad file descriptor",
	CodeBadAddress:                      "bad address",
	CodeOverflow:                        "numeric overflow",
	CodeFileExists:                      "file exists",
	CodeDeadlock:                        "deadlock would occur",
	CodeTooManyLocks:                    "too many locks",
	CodeIllegalOperationOnPipe:          "illegal seek on pipe",
	CodeNetworkDroppedConnectionOnReset: "network dropped connection on reset",
}
