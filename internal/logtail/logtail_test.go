package logtail

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "murmur.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestRead(t *testing.T) {
	var all []string
	for i := 1; i <= 10; i++ {
		all = append(all, fmt.Sprintf("time=2026-01-02T10:00:%02d level=INFO msg=\"line %d\"", i, i))
	}
	logPath := writeLog(t, all)

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "zero reads nothing", maxLines: 0, expected: nil},
		{name: "negative reads nothing", maxLines: -1, expected: nil},
		{name: "read partial (5)", maxLines: 5, expected: all[5:]},
		{name: "read exactly all (10)", maxLines: 10, expected: all},
		{name: "read more than exists (20)", maxLines: 20, expected: all},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines, slog.LevelDebug)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_FiltersByLevel(t *testing.T) {
	logPath := writeLog(t, []string{
		`time=t level=DEBUG msg="fetch feed"`,
		`time=t level=INFO msg=starting`,
		`time=t level=WARN msg="ignoring unreadable preferences"`,
		`plain continuation`,
		`time=t level=ERROR msg="rolled back" op=like`,
	})

	got, err := Read(logPath, 10, slog.LevelWarn)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []string{
		`time=t level=WARN msg="ignoring unreadable preferences"`,
		`plain continuation`,
		`time=t level=ERROR msg="rolled back" op=like`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read() = %v, want %v", got, want)
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "absent.log"), 5, slog.LevelDebug)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read() = %v, want nothing", got)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		line  string
		level slog.Level
		ok    bool
	}{
		{`time=t level=INFO msg=x`, slog.LevelInfo, true},
		{`time=t level=WARN`, slog.LevelWarn, true},
		{`time=t level=DEBUG-4 msg=x`, slog.LevelDebug - 4, true},
		{`no level here`, 0, false},
		{`level=LOUD msg=x`, 0, false},
	}
	for _, tt := range tests {
		level, ok := Level(tt.line)
		if ok != tt.ok || level != tt.level {
			t.Errorf("Level(%q) = %v, %v; want %v, %v", tt.line, level, ok, tt.level, tt.ok)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if level, err := ParseLevel(""); err != nil || level != slog.LevelDebug {
		t.Errorf("ParseLevel(\"\") = %v, %v", level, err)
	}
	if level, err := ParseLevel("warn"); err != nil || level != slog.LevelWarn {
		t.Errorf("ParseLevel(warn) = %v, %v", level, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, []string{"a", "b"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.String() != "a\nb\n" {
		t.Errorf("Write() = %q", buf.String())
	}
}
