package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches DomainErrors by code so wrapped instances compare equal to the
// package sentinels.
func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeInvalidOperation     = "INVALID_OPERATION"
	ErrCodeEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	ErrCodeInsufficientContent  = "INSUFFICIENT_CONTENT"
	ErrCodeGenerationParse      = "GENERATION_PARSE_ERROR"
	ErrCodeScoringParse         = "SCORING_PARSE_ERROR"
	ErrCodeOracleTimeout        = "ORACLE_TIMEOUT"
	ErrCodeMasteryConflict      = "MASTERY_CONFLICT"
)

// Validation errors
var (
	ErrInvalidDocumentType  = NewDomainError(ErrCodeValidation, "invalid document type")
	ErrInvalidChunkType     = NewDomainError(ErrCodeValidation, "invalid chunk type")
	ErrInvalidSpecialty     = NewDomainError(ErrCodeValidation, "invalid specialty")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrQuestionNotFound = NewDomainError(ErrCodeNotFound, "question not found")
	ErrMasteryNotFound  = NewDomainError(ErrCodeNotFound, "mastery record not found")
)

// Operation errors
var (
	ErrQuestionAlreadyAnswered = NewDomainError(ErrCodeInvalidOperation, "question has already been answered")
	ErrDocumentInactive        = NewDomainError(ErrCodeInvalidOperation, "document is inactive")
)

// Oracle and retrieval failures. Scoring parse failures are hard errors: a
// fabricated score would corrupt mastery state.
var (
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding oracle unavailable")
	ErrInsufficientContent  = NewDomainError(ErrCodeInsufficientContent, "no chunks available for retrieval")
	ErrGenerationParse      = NewDomainError(ErrCodeGenerationParse, "could not parse generated question")
	ErrScoringParse         = NewDomainError(ErrCodeScoringParse, "could not parse scoring response")
	ErrOracleTimeout        = NewDomainError(ErrCodeOracleTimeout, "oracle call timed out")
	ErrMasteryConflict      = NewDomainError(ErrCodeMasteryConflict, "concurrent mastery update conflict")
)
