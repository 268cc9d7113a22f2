package domain

import "errors"

// Kind classifies a failure so callers can branch without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindPolicyRejection
	KindUnauthorized
	KindInvalidInput
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPolicyRejection:
		return "policy_rejection"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is a classified domain failure.
type Error struct {
	kind Kind
	code string
	msg  string
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

// Code returns a stable machine-readable identifier.
func (e *Error) Code() string { return e.code }

var (
	ErrBookNotFound = newError(KindNotFound, "book_not_found", "book not found")
	ErrLoanNotFound = newError(KindNotFound, "loan_not_found", "loan not found")
	ErrUserNotFound = newError(KindNotFound, "user_not_found", "user not found")

	ErrDuplicateKey      = newError(KindConflict, "duplicate_key", "duplicate key")
	ErrAlreadyReturned   = newError(KindConflict, "already_returned", "loan already returned")
	ErrNoCopiesAvailable = newError(KindConflict, "no_copies_available", "no copies available")

	// ErrOverdue rejects a self-service return past the due day. The borrower
	// has to go through the administrative desk instead.
	ErrOverdue = newError(KindPolicyRejection, "overdue",
		"overdue loans must be returned through the library's administrative desk")

	ErrUnauthorized       = newError(KindUnauthorized, "unauthorized", "unauthorized")
	ErrInvalidCredentials = newError(KindUnauthorized, "invalid_credentials", "invalid national id or password")

	ErrInvalidBookReference = newError(KindInvalidInput, "invalid_book", "invalid book reference")
	ErrInvalidLoanReference = newError(KindInvalidInput, "invalid_loan", "invalid loan reference")
	ErrInvalidInput         = newError(KindInvalidInput, "invalid_input", "invalid input")

	ErrRateLimited = newError(KindRateLimited, "rate_limited", "rate limit exceeded")
)

// KindOf returns the Kind of the first domain Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first domain Error in err's chain, or "internal".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return "internal"
}

var byCode = func() map[string]*Error {
	m := make(map[string]*Error)
	for _, e := range []*Error{
		ErrBookNotFound, ErrLoanNotFound, ErrUserNotFound,
		ErrDuplicateKey, ErrAlreadyReturned, ErrNoCopiesAvailable,
		ErrOverdue, ErrUnauthorized, ErrInvalidCredentials,
		ErrInvalidBookReference, ErrInvalidLoanReference, ErrInvalidInput,
		ErrRateLimited,
	} {
		m[e.code] = e
	}
	return m
}()

// FromCode returns the sentinel error with the given code, or nil when the
// code is unknown. Clients of the HTTP API use it to branch with errors.Is on
// decoded responses.
func FromCode(code string) error {
	if e, ok := byCode[code]; ok {
		return e
	}
	return nil
}
