package pairing

import "fmt"

// Error codes, the machine-readable half of every business-rule failure.
// Codes are contract; messages may change.
const (
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeSelfInvitation         = "SELF_INVITATION"
	CodeInvalidRoleCombination = "INVALID_ROLE_COMBINATION"
	CodeGenerationFailed       = "GENERATION_FAILED"
	CodeInvitationNotFound     = "INVITATION_NOT_FOUND"
	CodeInvitationExpired      = "INVITATION_EXPIRED"
	CodeInvitationResponded    = "INVITATION_ALREADY_RESPONDED"
	CodeDuplicatePair          = "DUPLICATE_PAIR"
	CodeValidationFailed       = "VALIDATION_FAILED"
)

// Error is a typed business-rule failure. Services return these as values
// for every expected outcome; only storage faults and programmer errors
// travel as plain errors.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	ErrUnauthorized           = &Error{CodeUnauthorized, "authentication required"}
	ErrSelfInvitation         = &Error{CodeSelfInvitation, "cannot invite yourself"}
	ErrInvalidRoleCombination = &Error{CodeInvalidRoleCombination, "only patient-supporter combinations are allowed"}
	ErrGenerationFailed       = &Error{CodeGenerationFailed, "failed to generate a unique invitation code"}
	ErrInvitationNotFound     = &Error{CodeInvitationNotFound, "invitation not found"}
	ErrInvitationExpired      = &Error{CodeInvitationExpired, "invitation has expired"}
	ErrInvitationResponded    = &Error{CodeInvitationResponded, "invitation has already been responded to"}
	ErrDuplicatePair          = &Error{CodeDuplicatePair, "an approved pair already exists for this user"}
	ErrValidationFailed       = &Error{CodeValidationFailed, "validation failed"}
)

func validationError(msg string) *Error {
	return &Error{CodeValidationFailed, msg}
}
