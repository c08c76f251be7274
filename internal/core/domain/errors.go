package domain

import "errors"

// DomainError is an error with a stable machine-readable code. The
// catalog below declares every code the server emits; call sites
// derive instances with WithDetails and WithCause rather than
// constructing new codes ad hoc. API responses carry the code, so it
// must not change between releases.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// NewDomainError declares a catalog entry.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	s := "[" + e.Code + "] " + e.Message
	if e.Details != "" {
		s += ": " + e.Details
	}
	return s
}

func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches on Code alone, so a derived error with details still
// satisfies errors.Is against its catalog entry.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

func (e *DomainError) clone() *DomainError {
	c := *e
	return &c
}

// WithDetails derives a copy carrying call-site context.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := e.clone()
	c.Details = details
	return c
}

// WithCause derives a copy wrapping the underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := e.clone()
	c.Cause = cause
	return c
}

// IsDomainError reports whether err carries the given code anywhere in
// its chain. An empty code matches any DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// GetErrorCode returns the code of the first DomainError in err's
// chain, or "" when there is none.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Adapter Errors (ADPT)
// ============================================================================

var (
	// ErrRequestTimeout indicates a cluster query did not gather all
	// responses before its deadline. Details name the query kind.
	ErrRequestTimeout = NewDomainError("SK-ADPT-4080", "cluster request timed out")

	// ErrAdapterClosed indicates the adapter has been shut down.
	ErrAdapterClosed = NewDomainError("SK-ADPT-5030", "adapter closed")
)

// ============================================================================
// Transport Errors (TRAN)
// ============================================================================

var (
	// ErrTransportClosed indicates the transport has been shut down.
	ErrTransportClosed = NewDomainError("SK-TRAN-5031", "transport closed")

	// ErrPublishFailed indicates a broadcast could not be handed to the transport.
	ErrPublishFailed = NewDomainError("SK-TRAN-5001", "publish failed")
)

// ============================================================================
// App Registry Errors (APPS)
// ============================================================================

var (
	// ErrAppNotFound indicates no app matches the given id or key.
	ErrAppNotFound = NewDomainError("SK-APPS-4040", "app not found")

	// ErrAppDisabled indicates the app exists but is disabled.
	ErrAppDisabled = NewDomainError("SK-APPS-4030", "app disabled")

	// ErrAppConflict indicates the app id or key already exists.
	ErrAppConflict = NewDomainError("SK-APPS-4090", "app already exists")

	// ErrAppValidation indicates app data validation failed.
	ErrAppValidation = NewDomainError("SK-APPS-4001", "app validation failed")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAuthKeyUnknown indicates the auth_key does not match the app.
	ErrAuthKeyUnknown = NewDomainError("SK-AUTH-4011", "unknown auth key")

	// ErrAuthSignatureInvalid indicates the request signature does not verify.
	ErrAuthSignatureInvalid = NewDomainError("SK-AUTH-4010", "invalid auth signature")

	// ErrAuthTimestampSkew indicates the request timestamp is outside the grace window.
	ErrAuthTimestampSkew = NewDomainError("SK-AUTH-4014", "auth timestamp out of acceptable window")

	// ErrAuthBodyDigest indicates the body_md5 does not match the request body.
	ErrAuthBodyDigest = NewDomainError("SK-AUTH-4015", "body digest mismatch")
)

// ============================================================================
// Channel and Event Errors (CHAN, EVNT)
// ============================================================================

var (
	// ErrChannelNameTooLong indicates the channel name exceeds the app limit.
	ErrChannelNameTooLong = NewDomainError("SK-CHAN-4001", "channel name too long")

	// ErrNotPresenceChannel indicates a presence-only operation was applied
	// to a non-presence channel.
	ErrNotPresenceChannel = NewDomainError("SK-CHAN-4002", "not a presence channel")

	// ErrEventPayloadTooLarge indicates the event data exceeds the app limit.
	ErrEventPayloadTooLarge = NewDomainError("SK-EVNT-4130", "event payload too large")

	// ErrEventTooManyChannels indicates an event targets more channels than allowed.
	ErrEventTooManyChannels = NewDomainError("SK-EVNT-4001", "event targets too many channels")

	// ErrEventBatchTooLarge indicates a batch exceeds the app batch size limit.
	ErrEventBatchTooLarge = NewDomainError("SK-EVNT-4002", "event batch too large")

	// ErrEventValidation indicates event fields failed validation.
	ErrEventValidation = NewDomainError("SK-EVNT-4003", "event validation failed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("SK-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("SK-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("SK-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("SK-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("SK-SYS-4290", "too many requests")
)
