package apperr

import (
	"database/sql"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"typed", New(NotFound, "order %d not found", 7), NotFound},
		{"wrapped typed", fmt.Errorf("transition: %w", New(InvalidTransition, "bad edge")), InvalidTransition},
		{"plain", sql.ErrConnDone, Internal},
		{"wrap keeps kind", Wrap(New(InsufficientStock, "short"), "record"), InsufficientStock},
		{"wrap plain", Wrap(sql.ErrTxDone, "commit"), Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithExisting(t *testing.T) {
	type alert struct{ ID int64 }
	err := fmt.Errorf("create: %w", WithExisting(&alert{ID: 4}, "active alert exists"))
	if !Is(err, Conflict) {
		t.Fatalf("kind = %q, want conflict", KindOf(err))
	}
	a, ok := ExistingOf(err).(*alert)
	if !ok || a.ID != 4 {
		t.Errorf("existing = %#v, want alert 4", ExistingOf(err))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "noop") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}
