package logging

import "testing"

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Fatalf("ParseLevel(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNewLoggerFromConfigStrings(t *testing.T) {
	// The same shape main builds from environment-sourced strings.
	logger, err := NewLogger(LogConfig{Level: ParseLevel("warn"), Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.config.Level != LevelWarn {
		t.Fatalf("logger level = %d, want %d", logger.config.Level, LevelWarn)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
