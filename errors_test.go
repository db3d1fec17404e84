package cloudvfs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResultCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ResultCode
	}{
		{"nil", nil, CodeOK},
		{"exists", &PathError{Op: "upload", Path: "/a/b/c", Err: ErrExist}, CodeFileExists},
		{"not exist", fmt.Errorf("wrapped: %w", ErrNotExist), CodeFileNotFound},
		{"abort", abortError(context.Canceled), CodeUserAbort},
		{"bare cancel", context.Canceled, CodeUserAbort},
		{"deadline", context.DeadlineExceeded, CodeUserAbort},
		{"auth required", ErrAuthRequired, CodeAuthRequired},
		{"auth failed", fmt.Errorf("%w: denied", ErrAuthFailed), CodeAuthError},
		{"key auth", &StoreError{Code: "KeyBasedAuthenticationNotPermitted", Err: ErrKeyAuthNotPermitted}, CodeAuthError},
		{"unsupported", ErrNotSupported, CodeUnsupported},
		{"integrity", &CopyIntegrityError{Source: "/a", Destination: "/b"}, CodeUnsupported},
		{"anything else", errors.New("boom"), CodeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultCodeOf(tt.err); got != tt.want {
				t.Errorf("ResultCodeOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorTypes(t *testing.T) {
	pe := &PathError{Op: "download", Path: "/acct/c/f", Err: ErrNotExist}
	if !IsNotExist(pe) || IsExist(pe) || IsPermission(pe) {
		t.Error("unexpected classification of PathError")
	}

	ci := &CopyIntegrityError{Source: "/a/b/c", Destination: "/a/b/d"}
	if !errors.Is(ci, ErrCopyIntegrity) {
		t.Error("CopyIntegrityError should unwrap to ErrCopyIntegrity")
	}

	se := &StoreError{Code: "ServerBusy", StatusCode: 503, Err: errors.New("busy")}
	var target *StoreError
	if !errors.As(&PathError{Op: "list", Path: "/a", Err: se}, &target) || target.StatusCode != 503 {
		t.Error("expected StoreError to be reachable through PathError")
	}

	if got := CodeAuthRequired.String(); got != "AuthRequired" {
		t.Errorf("String() = %q", got)
	}

	if err := abortError(errors.New("other")); errors.Is(err, ErrUserAbort) {
		t.Error("non-context errors must pass through abortError unchanged")
	}
}

func TestContentTypeOf(t *testing.T) {
	tests := map[string]string{
		"report.csv":         "text/csv",
		"data.PARQUET":       "application/vnd.apache.parquet",
		`dir\notes.txt`:      "text/plain",
		"archive.tar":        "application/x-tar",
		"noextension":        DefaultContentType,
		"weird.zzz-unknown1": DefaultContentType,
	}
	for name, want := range tests {
		if got := ContentTypeOf(name); got != want {
			t.Errorf("ContentTypeOf(%q) = %q, want %q", name, got, want)
		}
	}
}
