package revisionable

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes revisionable errors.
type ErrorCode string

const (
	// ErrCodeNoTransaction indicates a mutation outside a transaction.
	ErrCodeNoTransaction ErrorCode = "NO_TRANSACTION"

	// ErrCodeTransactionActive indicates a nested StartTransaction or an
	// operation that needs no transaction to be open.
	ErrCodeTransactionActive ErrorCode = "TRANSACTION_ACTIVE"

	// ErrCodeNoCurrentUser indicates StartCurrentUserTransaction without a
	// user in the context.
	ErrCodeNoCurrentUser ErrorCode = "NO_CURRENT_USER"

	// ErrCodeRevisionConflict indicates another writer committed first.
	ErrCodeRevisionConflict ErrorCode = "REVISION_CONFLICT"

	// ErrCodeSaveVetoed indicates a before_save listener rejected the save.
	ErrCodeSaveVetoed ErrorCode = "SAVE_VETOED"

	// ErrCodeTypeMismatch indicates a copy between different record types.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeMissingPartCopier indicates a part with no copy function and no
	// Copy<PartName> method.
	ErrCodeMissingPartCopier ErrorCode = "MISSING_PART_COPIER"

	// ErrCodeUnknownType indicates a record type that is not registered.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// ErrCodeUnknownDataKey indicates a data key the type does not declare.
	ErrCodeUnknownDataKey ErrorCode = "UNKNOWN_DATA_KEY"

	// ErrCodeUnknownPart indicates a part the type does not declare.
	ErrCodeUnknownPart ErrorCode = "UNKNOWN_PART"

	// ErrCodeInvalidState indicates a state the type does not declare.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeInvalidValue indicates a value that does not match the data
	// key's declared type.
	ErrCodeInvalidValue ErrorCode = "INVALID_VALUE"

	// ErrCodeRevisionNotFound indicates a revision or record that does not
	// exist.
	ErrCodeRevisionNotFound ErrorCode = "REVISION_NOT_FOUND"
)

// Error is a revisionable error with a stable code.
type Error struct {
	Code     ErrorCode
	Message  string
	TypeName string
	RecordID int64
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.TypeName != "" && e.RecordID != 0 {
		msg = fmt.Sprintf("%s (%s %d)", msg, e.TypeName, e.RecordID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err is or wraps an *Error with the code.
func HasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsConflict reports whether err is a revision conflict.
func IsConflict(err error) bool {
	return HasCode(err, ErrCodeRevisionConflict)
}

// IsNotFound reports whether err is a missing record or revision.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeRevisionNotFound)
}
