package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsAreDistinct(t *testing.T) {
	errs := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrUnknownSyncType,
		ErrMissingCredentials,
		ErrContinuationContract,
		ErrStaleResumeToken,
		ErrBatchFailed,
		ErrRateLimited,
		ErrServiceUnavailable,
	}

	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("expected Permanent(nil) to be nil")
	}

	base := fmt.Errorf("lookup: %w", ErrNotFound)
	err := fmt.Errorf("item x: %w", Permanent(base))

	if !IsPermanent(err) {
		t.Error("expected wrapped permanent error to be detected")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected Permanent to preserve the wrapped chain")
	}
	if err.Error() != "item x: lookup: not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if IsPermanent(base) {
		t.Error("expected plain error not to be permanent")
	}
}

func TestItemErrors(t *testing.T) {
	err := ItemErrors{
		"b": errors.New("second"),
		"a": errors.New("first"),
	}

	want := "2 items failed: a: first; b: second"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	var target ItemErrors
	if !errors.As(Permanent(err), &target) || len(target) != 2 {
		t.Error("expected ItemErrors to be recoverable through Permanent")
	}
}
