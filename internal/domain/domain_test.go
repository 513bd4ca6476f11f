package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestOwnerDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		owner Owner
		want  string
	}{
		{name: "first and last", owner: Owner{FirstName: "Max", LastName: "Grechnev"}, want: "Max Grechnev"},
		{name: "first only", owner: Owner{FirstName: "Max"}, want: "Max"},
		{name: "blank last", owner: Owner{FirstName: "Max", LastName: "  "}, want: "Max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.owner.DisplayName(); got != tt.want {
				t.Fatalf("display name mismatch: got %q want %q", got, tt.want)
			}
		})
	}
}

func TestMappingCloneIsIndependent(t *testing.T) {
	original := Mapping{1: -100}
	clone := original.Clone()
	clone[2] = -200
	delete(clone, 1)

	if len(original) != 1 || original[1] != -100 {
		t.Fatalf("original mapping changed: %v", original)
	}
}

func TestDeliveryReasonOfWrappedError(t *testing.T) {
	base := &DeliveryError{Reason: ReasonForbidden, Code: 403, Err: errors.New("Forbidden: bot was kicked from the group chat")}
	wrapped := fmt.Errorf("send sticker: %w", base)

	if !IsForbidden(wrapped) {
		t.Fatalf("expected wrapped forbidden error to be detected")
	}
	if IsTimeout(wrapped) {
		t.Fatalf("forbidden error must not be reported as timeout")
	}
	if got := DeliveryReasonOf(errors.New("boom")); got != ReasonOther {
		t.Fatalf("expected plain error to be ReasonOther, got %s", got)
	}
	if IsForbidden(nil) {
		t.Fatalf("nil error must not be forbidden")
	}
}

func TestCaptionOnlyForCaptionedKinds(t *testing.T) {
	if got := Caption(Photo{FileID: "f", Caption: "look"}); got != "look" {
		t.Fatalf("expected photo caption, got %q", got)
	}
	if got := Caption(Sticker{FileID: "f"}); got != "" {
		t.Fatalf("expected empty caption for sticker, got %q", got)
	}
}
