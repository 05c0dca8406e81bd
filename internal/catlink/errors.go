package catlink

import "errors"

// Kind classifies why a CatLink operation failed, so callers up the
// stack (HamlibTranslator in particular) can map failures to RPRT codes
// without string-matching error text.
type Kind int

const (
	// KindNone is the zero value; never attached to a returned error.
	KindNone Kind = iota
	// KindTimeout means the radio did not reply within the response window.
	KindTimeout
	// KindProtocol means the radio replied with "?;" (rejected).
	KindProtocol
	// KindLinkClosed means the serial link failed and is no longer usable.
	KindLinkClosed
	// KindMalformed means a frame arrived without a closing ';' within the
	// scan window and was discarded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindLinkClosed:
		return "link closed"
	case KindMalformed:
		return "malformed frame"
	default:
		return "none"
	}
}

// Error wraps a Kind with the command code that triggered it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code + ": " + e.Kind.String()
	}
	return e.Kind.String()
}

// ErrTimeout, ErrProtocol and ErrLinkClosed are sentinels usable with
// errors.Is against any *Error of the matching Kind.
var (
	ErrTimeout    = &Error{Kind: KindTimeout, Message: "catlink: response timeout"}
	ErrProtocol   = &Error{Kind: KindProtocol, Message: "catlink: radio rejected command"}
	ErrLinkClosed = &Error{Kind: KindLinkClosed, Message: "catlink: link closed"}
)

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindNone, false
}
