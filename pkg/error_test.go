package pkg

import (
	"errors"
	"testing"
)

func TestCompletionStatus_String(t *testing.T) {
	tests := []struct {
		status CompletionStatus
		want   string
	}{
		{CompletionSuccess, "success"},
		{CompletionError, "error"},
		{CompletionEndOfStream, "end-of-stream"},
		{CompletionTerminated, "terminated"},
		{CompletionCancelled, "cancelled"},
		{CompletionStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("CompletionStatus.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompletionStatus_Error(t *testing.T) {
	tests := []struct {
		status  CompletionStatus
		wantErr error
	}{
		{CompletionSuccess, nil},
		{CompletionEndOfStream, ErrEndOfStream},
		{CompletionTerminated, ErrTerminated},
		{CompletionCancelled, ErrCancelled},
		{CompletionError, ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			err := tt.status.Error()
			if tt.wantErr == nil && err != nil {
				t.Errorf("CompletionStatus.Error() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("CompletionStatus.Error() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompletionStatus_Terminal(t *testing.T) {
	if CompletionSuccess.Terminal() {
		t.Error("CompletionSuccess.Terminal() = true, want false")
	}
	for _, s := range []CompletionStatus{
		CompletionError,
		CompletionEndOfStream,
		CompletionTerminated,
		CompletionCancelled,
	} {
		if !s.Terminal() {
			t.Errorf("%v.Terminal() = false, want true", s)
		}
	}
}

func TestSentinelErrors(t *testing.T) {
	// Verify all sentinel errors are distinct
	errs := []error{
		ErrClosed,
		ErrEndOfStream,
		ErrTerminated,
		ErrShortRead,
		ErrProtocol,
		ErrTimeout,
		ErrCancelled,
		ErrAlreadyRunning,
		ErrNotRunning,
		ErrInvalidParameter,
		ErrTransportSetup,
	}

	seen := make(map[string]bool)
	for _, err := range errs {
		if err == nil {
			t.Fatal("nil sentinel error")
		}
		msg := err.Error()
		if seen[msg] {
			t.Errorf("duplicate error message: %q", msg)
		}
		seen[msg] = true
	}
}
