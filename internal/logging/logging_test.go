package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_WritesToFileAndConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	closeLog, err := Setup(dir, &console)
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	log.Printf("[Test] hello %d", 42)
	closeLog()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "[Test] hello 42") {
		t.Fatalf("log file = %q", data)
	}
	if !strings.Contains(console.String(), "[Test] hello 42") {
		t.Fatalf("console = %q", console.String())
	}
}

func TestSetup_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first", "second"} {
		closeLog, err := Setup(dir, nil)
		if err != nil {
			t.Fatalf("Setup returned error: %v", err)
		}
		log.Print(msg)
		closeLog()
	}
	data, _ := os.ReadFile(filepath.Join(dir, FileName))
	if !strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Fatalf("log file lost entries: %q", data)
	}
}

func TestSetup_UnusableDirectoryFallsBackToConsole(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	var console bytes.Buffer
	closeLog, err := Setup(filepath.Join(blocker, "logs"), &console)
	if err == nil {
		t.Fatalf("Setup under a regular file returned nil error")
	}
	log.Print("still logged")
	closeLog()
	if !strings.Contains(console.String(), "still logged") {
		t.Fatalf("console = %q", console.String())
	}
}
