package style

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeLaterLayersWin(t *testing.T) {
	t.Parallel()

	got := Merge(
		Style{"color": "#fff", "bold": true},
		nil,
		Style{"color": "#000", "paddingTop": 1},
	)
	want := Style{"color": "#000", "bold": true, "paddingTop": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeOfNothingIsEmpty(t *testing.T) {
	t.Parallel()

	if got := Merge(nil, Style{}); !got.Empty() {
		t.Fatalf("Merge() = %v, want empty", got)
	}
}

func TestCheckSerializable(t *testing.T) {
	t.Parallel()

	type point struct{ X, Y int }
	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{name: "nil", in: nil, ok: true},
		{name: "int", in: 42, ok: true},
		{name: "float", in: 0.5, ok: true},
		{name: "string", in: "x", ok: true},
		{name: "slice", in: []any{1, "a", true}, ok: true},
		{name: "object", in: map[string]any{"a": []int{1, 2}}, ok: true},
		{name: "func", in: func() {}, ok: false},
		{name: "chan", in: make(chan int), ok: false},
		{name: "struct", in: point{1, 2}, ok: false},
		{name: "int keys", in: map[int]string{1: "a"}, ok: false},
		{name: "nested func", in: []any{1, func() {}}, ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckSerializable(tt.in)
			if tt.ok && err != nil {
				t.Fatalf("CheckSerializable(%T) unexpected error: %v", tt.in, err)
			}
			if !tt.ok && !errors.Is(err, ErrUnserializable) {
				t.Fatalf("CheckSerializable(%T) = %v, want ErrUnserializable", tt.in, err)
			}
		})
	}
}
