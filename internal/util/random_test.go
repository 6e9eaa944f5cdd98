package util

import "testing"

func TestPickString(t *testing.T) {
	if got := PickString(nil); got != "" {
		t.Errorf("PickString(nil) = %q, want empty", got)
	}

	options := []string{"a", "b", "c"}
	valid := map[string]bool{"a": true, "b": true, "c": true}
	for i := 0; i < 100; i++ {
		if got := PickString(options); !valid[got] {
			t.Fatalf("PickString() returned %q, not one of the options", got)
		}
	}
}
