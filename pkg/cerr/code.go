package cerr

import (
	"net/http"

	"connectrpc.com/connect"
)

//go:generate go tool stringer -type=Code -output=code_string.go code.go
type Code int

const (
	OK                 = Code(0)
	Canceled           = Code(1)
	Unknown            = Code(2)
	InvalidArgument    = Code(3)
	DeadlineExceeded   = Code(4)
	NotFound           = Code(5)
	AlreadyExists      = Code(6)
	PermissionDenied   = Code(7)
	ResourceExhausted  = Code(8)
	FailedPrecondition = Code(9)
	Aborted            = Code(10)
	OutOfRange         = Code(11)
	Unimplemented      = Code(12)
	Internal           = Code(13)
	Unavailable        = Code(14)
	DataLoss           = Code(15)
	Unauthenticated    = Code(16)
)

const statusClientClosedRequest = 499

type codeMapping struct {
	connect connect.Code
	http    int
	// serverFault marks codes that point at a defect or outage on the server
	// rather than at the request.
	serverFault bool
}

var mappings = map[Code]codeMapping{
	Canceled:           {connect.CodeCanceled, statusClientClosedRequest, false},
	Unknown:            {connect.CodeUnknown, http.StatusInternalServerError, true},
	InvalidArgument:    {connect.CodeInvalidArgument, http.StatusBadRequest, false},
	DeadlineExceeded:   {connect.CodeDeadlineExceeded, http.StatusGatewayTimeout, false},
	NotFound:           {connect.CodeNotFound, http.StatusNotFound, false},
	AlreadyExists:      {connect.CodeAlreadyExists, http.StatusConflict, false},
	PermissionDenied:   {connect.CodePermissionDenied, http.StatusForbidden, false},
	ResourceExhausted:  {connect.CodeResourceExhausted, http.StatusTooManyRequests, true},
	FailedPrecondition: {connect.CodeFailedPrecondition, http.StatusPreconditionFailed, false},
	Aborted:            {connect.CodeAborted, http.StatusConflict, false},
	OutOfRange:         {connect.CodeOutOfRange, http.StatusBadRequest, false},
	Unimplemented:      {connect.CodeUnimplemented, http.StatusNotImplemented, true},
	Internal:           {connect.CodeInternal, http.StatusInternalServerError, true},
	Unavailable:        {connect.CodeUnavailable, http.StatusServiceUnavailable, true},
	DataLoss:           {connect.CodeDataLoss, http.StatusInternalServerError, true},
	Unauthenticated:    {connect.CodeUnauthenticated, http.StatusUnauthorized, false},
}

var fromConnect = func() map[connect.Code]Code {
	m := make(map[connect.Code]Code, len(mappings))
	for c, mapping := range mappings {
		m[mapping.connect] = c
	}
	return m
}()

// CodeFromConnect maps a connect code back to a Code. Codes connect does
// not define map to Unknown.
func CodeFromConnect(cc connect.Code) Code {
	if c, ok := fromConnect[cc]; ok {
		return c
	}
	return Unknown
}

func NewCodeFromConnectError(err error) Code {
	return CodeFromConnect(connect.CodeOf(err))
}

func (c Code) ConnectCode() connect.Code {
	if c == OK {
		return 0
	}
	if m, ok := mappings[c]; ok {
		return m.connect
	}
	return connect.CodeUnknown
}

func (c Code) HTTPCode() int {
	if c == OK {
		return http.StatusOK
	}
	if m, ok := mappings[c]; ok {
		return m.http
	}
	return http.StatusInternalServerError
}

// IsServerFault reports whether c is a server-side failure. Errors with such
// a code capture a stack trace when created.
func (c Code) IsServerFault() bool {
	if c == OK {
		return false
	}
	m, ok := mappings[c]
	return !ok || m.serverFault
}
