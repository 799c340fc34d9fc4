package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeDuplicateName, "software version already registered")
		if err.Error() != "[DUPLICATE_NAME] software version already registered" {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("disk I/O error")
		err := Wrap(original, CodeInternal, "insert class")
		expected := "[INTERNAL_ERROR] insert class: disk I/O error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeUnknownVersion, "no such version")
		if !IsCode(err, CodeUnknownVersion) {
			t.Error("expected IsCode to return true for CodeUnknownVersion")
		}
		if IsCode(err, CodeUnknownRelease) {
			t.Error("expected IsCode to return false for CodeUnknownRelease")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("resolve: %w", New(CodeAmbiguousMapping, "two rows"))
		if !IsCode(err, CodeAmbiguousMapping) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
		if CodeOf(err) != CodeAmbiguousMapping {
			t.Errorf("expected CodeOf to report AMBIGUOUS_MAPPING, got %q", CodeOf(err))
		}
	})

	t.Run("AddContextPromotesPlainErrors", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxOperation, "resolve")
		if !IsCode(err, CodeInternal) {
			t.Fatalf("expected internal code, got %v", err)
		}
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxOperation] != "resolve" {
			t.Fatalf("expected operation context, got %+v", de)
		}
	})

	t.Run("CodeOfPlainError", func(t *testing.T) {
		if CodeOf(errors.New("plain")) != "" {
			t.Error("expected empty code for plain error")
		}
	})
}
