package common

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorTaxonomy(t *testing.T) {
	if err := NotFoundf("job %s", "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFoundf does not match ErrNotFound: %v", err)
	}
	if err := InvalidStatef("bad transition"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("InvalidStatef does not match ErrInvalidState: %v", err)
	}

	cause := errors.New("connection refused")
	err := StoreError("record outcome", cause)
	if !errors.Is(err, ErrTransientStore) {
		t.Errorf("StoreError does not match ErrTransientStore: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("StoreError lost the cause: %v", err)
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"not found", NotFoundf("job x"), codes.NotFound},
		{"invalid state", InvalidStatef("cannot"), codes.FailedPrecondition},
		{"transient store", StoreError("op", errors.New("x")), codes.Unavailable},
		{"unknown", errors.New("surprise"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := status.Code(ToStatus(tt.err))
			if got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}

	if ToStatus(nil) != nil {
		t.Error("ToStatus(nil) != nil")
	}
}
