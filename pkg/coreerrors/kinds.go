// Package coreerrors defines the error-kind taxonomy shared across the
// ingestion, OCR, segmentation, and evaluation pipelines.
//
// Every sentinel below is wrapped (never returned bare) so callers can
// recover the originating detail with errors.Unwrap while still branching
// on errors.Is against the taxonomy. Orchestrator task handlers wrap a
// failure in a TaskError carrying one of these kinds and return it inside
// a failed queue.ExecutionResult; the worker re-enqueues the task when the
// kind is retryable and otherwise records the failure as terminal.
package coreerrors

import "errors"

// Kind classifies a failure for persistence and propagation-policy purposes.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindLLMUnavailable     Kind = "LLM_UNAVAILABLE"
	KindLLMMalformed       Kind = "LLM_MALFORMED"
	KindOCRUnreadable      Kind = "OCR_UNREADABLE"
	KindSegmentationFailed Kind = "SEGMENTATION_FAILED"
	KindQuestionFailed     Kind = "QUESTION_FAILED"
	KindInvariantViolation Kind = "INVARIANT_VIOLATION"
)

var (
	// ErrValidation indicates a caller-supplied value failed a structural check.
	ErrValidation = errors.New("validation failed")

	// ErrLLMUnavailable indicates the LLM Gateway exhausted its transport retry budget.
	ErrLLMUnavailable = errors.New("llm gateway unavailable")

	// ErrLLMMalformed indicates the LLM Gateway exhausted its repair-attempt budget
	// without producing a schema-conformant response.
	ErrLLMMalformed = errors.New("llm response did not conform to the expected schema")

	// ErrOCRUnreadable indicates a page could not be transcribed with any confidence.
	ErrOCRUnreadable = errors.New("page unreadable")

	// ErrSegmentationFailed indicates the Segmenter's repair attempt also failed validation.
	ErrSegmentationFailed = errors.New("segmentation failed")

	// ErrQuestionFailed indicates one question's evaluation pipeline failed terminally;
	// it does not abort evaluation of sibling questions on the same script.
	ErrQuestionFailed = errors.New("question evaluation failed")

	// ErrInvariantViolation indicates a data-model invariant the core itself is
	// responsible for maintaining was found broken; this always indicates a bug.
	ErrInvariantViolation = errors.New("invariant violation")
)

// TaskError wraps a failure with the Kind that governs how the orchestrator
// propagates it (retry, flag for review, or fail the owning entity).
type TaskError struct {
	Kind    Kind
	Task    string // task name the error occurred in, for observability
	Err     error
	Context map[string]string // small set of identifying fields (question_id, upload_id, ...)
}

func (e *TaskError) Error() string {
	if e.Task != "" {
		return string(e.Kind) + " in " + e.Task + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *TaskError) Unwrap() error { return e.Err }

// NewTaskError constructs a TaskError for the given kind and underlying cause.
func NewTaskError(kind Kind, task string, err error, context map[string]string) *TaskError {
	return &TaskError{Kind: kind, Task: task, Err: err, Context: context}
}

// IsRetryable reports whether the orchestrator should re-enqueue the task
// rather than terminally failing the owning entity.
func IsRetryable(kind Kind) bool {
	return kind == KindLLMUnavailable
}
