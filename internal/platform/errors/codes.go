// Package errors provides structured error handling for engine operations.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeValidationPlayerMissing Code = "VALIDATION_PLAYER_MISSING"
	CodeValidationTargetMissing Code = "VALIDATION_TARGET_MISSING"
	CodeValidationTargetDead    Code = "VALIDATION_TARGET_DEAD"
	CodeValidationTargetSelf    Code = "VALIDATION_TARGET_SELF"
	CodeValidationTextEmpty     Code = "VALIDATION_TEXT_EMPTY"
	CodeValidationBadFilter     Code = "VALIDATION_BAD_FILTER"
	CodeValidationBadPageToken  Code = "VALIDATION_BAD_PAGE_TOKEN"

	// Capability errors
	CodeForbiddenRole      Code = "FORBIDDEN_ROLE"
	CodeForbiddenDead      Code = "FORBIDDEN_DEAD"
	CodeForbiddenNotSeated Code = "FORBIDDEN_NOT_SEATED"

	// Phase errors
	CodePhaseExpired Code = "PHASE_EXPIRED"

	// Idempotency errors
	CodeIdempotencyPlayerConflict Code = "IDEMPOTENCY_PLAYER_CONFLICT"
	CodeIdempotencyMatchConflict  Code = "IDEMPOTENCY_MATCH_CONFLICT"

	// Queue errors
	CodeQueueAlreadyQueued Code = "QUEUE_ALREADY_QUEUED"
	CodeQueueAlreadySeated Code = "QUEUE_ALREADY_SEATED"

	// Match lifecycle errors
	CodeMatchEnded     Code = "MATCH_ENDED"
	CodeMatchAbandoned Code = "MATCH_ABANDONED"

	// Ruleset errors
	CodeRulesInvalidComposition Code = "RULES_INVALID_COMPOSITION"
	CodeRulesUnknownSeatCount   Code = "RULES_UNKNOWN_SEAT_COUNT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeValidationPlayerMissing,
		CodeValidationTargetMissing,
		CodeValidationTargetDead,
		CodeValidationTargetSelf,
		CodeValidationTextEmpty,
		CodeValidationBadFilter,
		CodeValidationBadPageToken,
		CodeRulesInvalidComposition,
		CodeRulesUnknownSeatCount:
		return codes.InvalidArgument

	// PermissionDenied - actor lacks the capability for the action
	case CodeForbiddenRole,
		CodeForbiddenDead,
		CodeForbiddenNotSeated:
		return codes.PermissionDenied

	// FailedPrecondition - state doesn't allow the operation
	case CodePhaseExpired,
		CodeIdempotencyPlayerConflict,
		CodeIdempotencyMatchConflict,
		CodeMatchEnded,
		CodeMatchAbandoned:
		return codes.FailedPrecondition

	// AlreadyExists - duplicate membership
	case CodeQueueAlreadyQueued,
		CodeQueueAlreadySeated:
		return codes.AlreadyExists

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}

// Retryable reports whether a caller may retry the failed call unchanged.
// Expected gameplay rejections (wrong phase, wrong role) are permanent for
// the submitted request; idempotency conflicts indicate caller misuse and
// must never be retried. Only internal failures are worth a retry.
func (c Code) Retryable() bool {
	switch c {
	case CodeInternal, CodeUnknown:
		return true
	default:
		return false
	}
}
