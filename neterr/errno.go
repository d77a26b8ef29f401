//go:build linux

package neterr

import (
	"errors"
	"fmt"
	"syscall"
)

// errnoCodes maps a POSIX errno to its gonet Code. Built once from the
// component H mapping table rather than a switch, so it can be reused by
// both TranslateErrno and any future platform-specific variant.
var errnoCodes = map[syscall.Errno]Code{
	syscall.ENOMEM:       CodeOutOfMemory,
	syscall.EINVAL:       CodeInvalidArguments,
	syscall.ENOTDIR:      CodeInvalidFileName,
	syscall.ENAMETOOLONG: CodeInvalidFileName,
	syscall.EACCES:       CodePermissionDenied,
	syscall.EPERM:        CodePermissionDenied,
	syscall.ENOENT:       CodeFileNotFound,
	syscall.ELOOP:        CodeTooManySymbolicLinks,
	syscall.EISDIR:       CodeNoRegularFile,
	syscall.EROFS:        CodeReadOnly,
	syscall.EMFILE:       CodeTooManyOpenFiles,
	syscall.EOPNOTSUPP:   CodeUnsupportedFileOperation,
	syscall.ENOSPC:       CodeFilesystemFull,
	syscall.EDQUOT:       CodeQuotaExceeded,
	syscall.EIO:          CodeIoError,
	syscall.EBADF:        CodeBadFileDescriptor,
	syscall.EFAULT:       CodeBadAddress,
	syscall.EOVERFLOW:    CodeOverflow,
	syscall.EEXIST:       CodeFileExists,
	syscall.EAGAIN:       CodeOperationBlocked,
	syscall.EDEADLK:      CodeDeadlock,
	syscall.EINTR:        CodeOperationInterrupted,
	syscall.ENOLCK:       CodeTooManyLocks,
	syscall.ESPIPE:       CodeIllegalOperationOnPipe,
	syscall.ETIMEDOUT:    CodeTimeout,
	syscall.ENETDOWN:     CodeNetworkDown,
	syscall.ENETUNREACH:  CodeNetworkUnreachable,
	syscall.ENETRESET:    CodeNetworkDroppedConnectionOnReset,
	syscall.ECONNABORTED: CodeSoftwareCausedConnectionAbort,
	syscall.ECONNRESET:   CodeConnectionResetByPeer,
	syscall.ENOBUFS:      CodeNoBufferSpace,
	syscall.EISCONN:      CodeSocketAlreadyConnected,
	syscall.ENOTCONN:     CodeNotConnected,
	syscall.ESHUTDOWN:    CodeCantSendAfterSocketShutdown,
	syscall.ETOOMANYREFS: CodeTooManyReferences,
	syscall.ECONNREFUSED: CodeConnectionRefused,
	syscall.EHOSTDOWN:    CodeHostDown,
	syscall.EHOSTUNREACH: CodeNoRouteToHost,
	syscall.ENOTSOCK:     CodeInvalidSocket,
	syscall.ENOPROTOOPT:  CodeUnknownOption,
	syscall.EPIPE:        CodeBrokenPipe,
}

// TranslateErrno maps a POSIX errno to a gonet *Error, attaching context
// (typically the syscall name, e.g. "connect" or "setsockopt(SO_RCVTIMEO)").
// Unrecognized codes carry the platform error string plus the context.
func TranslateErrno(errno syscall.Errno, context string) *Error {
	if code, ok := errnoCodes[errno]; ok {
		return Wrap(code, context, errno)
	}
	return &Error{
		Code:    CodeUnknown,
		Message: errno.Error(),
		Context: context,
		Cause:   errno,
	}
}

// TranslateOSError unwraps err down to a syscall.Errno (as os.*Error and
// net.OpError commonly wrap it) and translates it. If no errno can be
// found, err is wrapped verbatim under CodeUnknown.
func TranslateOSError(err error, context string) *Error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return TranslateErrno(errno, context)
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeUnknown, Message: err.Error(), Context: context, Cause: err}
}

// getaddrinfo error codes, from <netdb.h>. golang.org/x/net/dns/dnsmessage
// and the stdlib resolver do not expose these symbolically, so gonet's own
// resolver package raises them directly; this table exists for platforms
// and code paths (cgo resolver) that do surface the raw code.
const (
	eaiAgain    = -3
	eaiFail     = -4
	eaiNoData   = -5 // historic glibc extension, sometimes still reported
	eaiNoName   = -2
	eaiSystem   = -11
	eaiMemory   = -10
	eaiOverflow = -12
)

// TranslateGetaddrinfo maps a getaddrinfo(3) return code to a gonet *Error.
// EAI_SYSTEM falls through to the errno mapping using sysErrno, per
// component H.
func TranslateGetaddrinfo(code int, sysErrno syscall.Errno, context string) *Error {
	switch code {
	case eaiSystem:
		return TranslateErrno(sysErrno, context)
	case eaiAgain:
		return Wrap(CodeTryAgain, context, fmt.Errorf("getaddrinfo: %d", code))
	case eaiNoName, eaiNoData:
		return Wrap(CodeNoResult, context, fmt.Errorf("getaddrinfo: %d", code))
	case eaiMemory:
		return Wrap(CodeOutOfMemory, context, fmt.Errorf("getaddrinfo: %d", code))
	case eaiOverflow:
		return Wrap(CodeOverflow, context, fmt.Errorf("getaddrinfo: %d", code))
	case eaiFail:
		return Wrap(CodeQueryFailed, context, fmt.Errorf("getaddrinfo: %d", code))
	default:
		return Wrap(CodeQueryFailed, context, fmt.Errorf("getaddrinfo: %d", code))
	}
}
