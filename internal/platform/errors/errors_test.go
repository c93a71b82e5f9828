package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIs(t *testing.T) {
	err := New(CodePhaseExpired, "vote arrived after the voting deadline")
	if !stderrors.Is(err, New(CodePhaseExpired, "different message")) {
		t.Fatal("errors with the same code should match")
	}
	if stderrors.Is(err, New(CodeNotFound, "vote arrived after the voting deadline")) {
		t.Fatal("errors with different codes should not match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeInternal, "append transcript entry", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("wrapped cause should be reachable through Unwrap")
	}
}

func TestGetCode(t *testing.T) {
	err := New(CodeForbiddenRole, "villagers cannot submit night kills")
	wrapped := fmt.Errorf("submit action: %w", err)
	if got := GetCode(wrapped); got != CodeForbiddenRole {
		t.Fatalf("GetCode = %s, want %s", got, CodeForbiddenRole)
	}
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("GetCode for plain error = %s, want %s", got, CodeUnknown)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeValidationTargetDead, codes.InvalidArgument},
		{CodeForbiddenRole, codes.PermissionDenied},
		{CodePhaseExpired, codes.FailedPrecondition},
		{CodeIdempotencyPlayerConflict, codes.FailedPrecondition},
		{CodeQueueAlreadyQueued, codes.AlreadyExists},
		{CodeNotFound, codes.NotFound},
		{CodeInternal, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Errorf("%s maps to %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if CodeIdempotencyPlayerConflict.Retryable() {
		t.Fatal("idempotency conflicts are caller bugs and must not be retryable")
	}
	if CodePhaseExpired.Retryable() {
		t.Fatal("phase-expired rejections are permanent for the submitted request")
	}
	if !CodeInternal.Retryable() {
		t.Fatal("internal failures should be retryable")
	}
}

func TestToGRPCStatusCarriesRetryableFlag(t *testing.T) {
	err := New(CodeIdempotencyMatchConflict, "idempotency key already used for another match")
	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected a grpc status error")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("status code = %s, want %s", st.Code(), codes.FailedPrecondition)
	}
	found := false
	for _, detail := range st.Details() {
		info, ok := detail.(interface {
			GetReason() string
			GetMetadata() map[string]string
		})
		if !ok {
			continue
		}
		found = true
		if info.GetReason() != string(CodeIdempotencyMatchConflict) {
			t.Errorf("detail reason = %s, want %s", info.GetReason(), CodeIdempotencyMatchConflict)
		}
		if info.GetMetadata()["retryable"] != "false" {
			t.Errorf("retryable metadata = %q, want %q", info.GetMetadata()["retryable"], "false")
		}
	}
	if !found {
		t.Fatal("expected ErrorInfo detail on the status")
	}
}
