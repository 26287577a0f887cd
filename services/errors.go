package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can tell retryable
// conditions (timeouts, unreachable collaborators) from permanent ones
// (unsupported format, missing document) without parsing messages.
type ErrorKind string

const (
	ErrKindUnsupportedFormat          ErrorKind = "unsupported_format"
	ErrKindParseFailure               ErrorKind = "parse_failure"
	ErrKindEmbeddingUnavailable       ErrorKind = "embedding_unavailable"
	ErrKindEmbeddingDimensionMismatch ErrorKind = "embedding_dimension_mismatch"
	ErrKindRetrievalUnavailable       ErrorKind = "retrieval_unavailable"
	ErrKindGenerationUnavailable      ErrorKind = "generation_unavailable"
	ErrKindDocumentNotFound           ErrorKind = "document_not_found"
)

// PipelineError tags an underlying failure with its kind and a human-readable
// message. It supports errors.As/Is chains via Unwrap.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient. Unavailable
// collaborators may recover; format and dimension errors never do.
func (e *PipelineError) Retryable() bool {
	switch e.Kind {
	case ErrKindEmbeddingUnavailable, ErrKindRetrievalUnavailable, ErrKindGenerationUnavailable:
		return true
	default:
		return false
	}
}

func newPipelineError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the ErrorKind carried by err, or the empty string when the
// error is not a tagged pipeline error.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
