package domain

import "fmt"

// RetrievalError covers the game-archive service being unreachable,
// rate-limited, or returning a malformed response. Zero games after
// retries is downgraded to an empty-report success by the pipeline.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval: %s: %v", e.Op, e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// EvaluationError covers engine failures. A per-position failure is
// recovered locally with an unavailable sentinel; an engine that cannot
// start at all is fatal for the run.
type EvaluationError struct {
	Op    string
	Fatal bool
	Err   error
}

func (e *EvaluationError) Error() string { return fmt.Sprintf("evaluation: %s: %v", e.Op, e.Err) }
func (e *EvaluationError) Unwrap() error { return e.Err }

// ClassificationError marks a broken internal invariant. It aborts the
// run loudly rather than producing a silently wrong report.
type ClassificationError struct {
	Detail string
}

func (e *ClassificationError) Error() string { return "classification invariant: " + e.Detail }

type DeliveryError struct {
	Op  string
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("delivery: %s: %v", e.Op, e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }
