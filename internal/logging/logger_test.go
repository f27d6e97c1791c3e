package logging

import "testing"

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger("debug", format, "sd-test")
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		l.Debug("hello")
	}
	if OrNop(nil) == nil {
		t.Fatalf("OrNop must never return nil")
	}
}
