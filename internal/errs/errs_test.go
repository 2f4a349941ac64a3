package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jtodevs/fastlap/internal/errs"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	base := errs.Newf(errs.InputValidation, "errs_test.TestIsMatchesWrappedKind", "bad value %d", 7)
	wrapped := fmt.Errorf("while doing thing: %w", base)

	if !errs.Is(wrapped, errs.InputValidation) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
	if errs.Is(wrapped, errs.NumericFailure) {
		t.Error("Is should not match an unrelated kind")
	}
}

func TestIsRejectsPlainError(t *testing.T) {
	if errs.Is(errors.New("plain"), errs.Internal) {
		t.Error("Is should not match a non-*errs.Error")
	}
}

func TestNewPreservesUnderlyingError(t *testing.T) {
	cause := errors.New("disk full")
	e := errs.New(errs.Internal, "errs_test.TestNewPreservesUnderlyingError", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if e.Kind != errs.Internal {
		t.Errorf("Kind = %v, want Internal", e.Kind)
	}
}

func TestKindString(t *testing.T) {
	cases := map[errs.Kind]string{
		errs.InputValidation: "input_validation",
		errs.LookupMiss:      "lookup_miss",
		errs.NumericFailure:  "numeric_failure",
		errs.ModelMismatch:   "model_mismatch",
		errs.Internal:        "internal",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
