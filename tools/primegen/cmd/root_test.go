package cmd

import (
	"bytes"
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jszwec/csvutil"
	"github.com/kylelemons/godebug/pretty"
)

func TestArgErrors(t *testing.T) {
	tests := []struct {
		desc string
		args []string
		want string
	}{
		{desc: "no args", args: nil, want: "Usage: primegen"},
		{desc: "too many args", args: []string{"32", "1", "1"}, want: "Usage: primegen"},
		{desc: "bad bits", args: []string{"abc"}, want: "Unable to parse 'abc'"},
		{desc: "bad count", args: []string{"32", "x1"}, want: "Unable to parse 'x1'"},
		{desc: "bits not a multiple of 8", args: []string{"33"}, want: "multiple of 8"},
		{desc: "bits too small", args: []string{"24"}, want: "at least 32"},
		{desc: "count of 0", args: []string{"32", "0"}, want: "count must be at least 1"},
	}

	for _, test := range tests {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		code := run(context.Background(), test.args, stdout, stderr)
		if code != 1 {
			t.Errorf("TestArgErrors(%s): got exit code %d, want 1", test.desc, code)
		}
		if !strings.Contains(stdout.String(), test.want) {
			t.Errorf("TestArgErrors(%s): stdout was %q, want it to contain %q", test.desc, stdout.String(), test.want)
		}
	}
}

func TestFlagErrors(t *testing.T) {
	tests := []struct {
		desc string
		args []string
		want string
	}{
		{desc: "bad format", args: []string{"--format", "xml", "32"}, want: "--format"},
		{desc: "bad pool", args: []string{"--pool", "huge", "32"}, want: "--pool"},
		{desc: "0 workers", args: []string{"--workers", "0", "32"}, want: "--workers"},
		{desc: "missing config file", args: []string{"--config", "/does/not/exist.yaml", "32"}, want: "config file"},
	}

	for _, test := range tests {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		code := run(context.Background(), test.args, stdout, stderr)
		if code != 1 {
			t.Errorf("TestFlagErrors(%s): got exit code %d, want 1", test.desc, code)
		}
		if !strings.Contains(stderr.String(), test.want) {
			t.Errorf("TestFlagErrors(%s): stderr was %q, want it to contain %q", test.desc, stderr.String(), test.want)
		}
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		desc  string
		args  []string
		bits  string
		count int
	}{
		{desc: "default count", args: []string{"32"}, bits: "32", count: 1},
		{desc: "count of 3", args: []string{"32", "3"}, bits: "32", count: 3},
		{desc: "pooled with verify", args: []string{"--pool", "pooled", "--verify", "64", "4"}, bits: "64", count: 4},
		{desc: "repeats allowed", args: []string{"--distinct=false", "--workers", "2", "40", "5"}, bits: "40", count: 5},
	}

	for _, test := range tests {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		if code := run(context.Background(), test.args, stdout, stderr); code != 0 {
			t.Errorf("TestText(%s): got exit code %d, stdout: %s, stderr: %s", test.desc, code, stdout, stderr)
			continue
		}

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		if len(lines) != test.count+2 {
			t.Errorf("TestText(%s): got %d lines, want %d:\n%s", test.desc, len(lines), test.count+2, stdout)
			continue
		}
		if want := "BitLength: " + test.bits + " bits"; lines[0] != want {
			t.Errorf("TestText(%s): first line %q, want %q", test.desc, lines[0], want)
		}
		for i, line := range lines[1 : len(lines)-1] {
			index, value, ok := strings.Cut(line, ": ")
			if !ok {
				t.Errorf("TestText(%s): bad line %q", test.desc, line)
				continue
			}
			if want := strconv.Itoa(i + 1); index != want {
				t.Errorf("TestText(%s): line index %s, want %s", test.desc, index, want)
			}
			checkPrime(t, "TestText("+test.desc+")", value)
		}
		if !strings.HasPrefix(lines[len(lines)-1], "Time to Generate: ") {
			t.Errorf("TestText(%s): last line %q, want the timing", test.desc, lines[len(lines)-1])
		}
	}
}

func TestJSON(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	if code := run(context.Background(), []string{"--format", "json", "64", "3"}, stdout, stderr); code != 0 {
		t.Fatalf("TestJSON: got exit code %d, stderr: %s", code, stderr)
	}

	var indexes []int
	for _, line := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
		var r row
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("TestJSON: line %q: %s", line, err)
		}
		indexes = append(indexes, r.Index)
		checkPrime(t, "TestJSON", r.Value.String())
	}
	if diff := pretty.Compare([]int{1, 2, 3}, indexes); diff != "" {
		t.Errorf("TestJSON: -want/+got:\n%s", diff)
	}
}

type csvRow struct {
	Index int    `csv:"index"`
	Value string `csv:"value"`
}

func TestCSV(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	if code := run(context.Background(), []string{"--format", "csv", "32", "4"}, stdout, stderr); code != 0 {
		t.Fatalf("TestCSV: got exit code %d, stderr: %s", code, stderr)
	}

	if !strings.HasPrefix(stdout.String(), "index,value\n") {
		t.Errorf("TestCSV: output does not start with the header:\n%s", stdout)
	}

	var rows []csvRow
	if err := csvutil.Unmarshal(stdout.Bytes(), &rows); err != nil {
		t.Fatalf("TestCSV: %s", err)
	}
	if len(rows) != 4 {
		t.Fatalf("TestCSV: got %d rows, want 4", len(rows))
	}
	for i, r := range rows {
		if r.Index != i+1 {
			t.Errorf("TestCSV: row %d has index %d", i, r.Index)
		}
		checkPrime(t, "TestCSV", r.Value)
	}
}

func TestEnvAndConfigFile(t *testing.T) {
	t.Setenv("PRIMEGEN_FORMAT", "csv")

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	if code := run(context.Background(), []string{"32"}, stdout, stderr); code != 0 {
		t.Fatalf("TestEnvAndConfigFile(env): got exit code %d, stderr: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout.String(), "index,value\n") {
		t.Errorf("TestEnvAndConfigFile(env): PRIMEGEN_FORMAT was ignored:\n%s", stdout)
	}

	// A flag wins over the environment.
	stdout.Reset()
	if code := run(context.Background(), []string{"--format", "json", "32"}, stdout, stderr); code != 0 {
		t.Fatalf("TestEnvAndConfigFile(flag): got exit code %d, stderr: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout.String(), `{"index":1,`) {
		t.Errorf("TestEnvAndConfigFile(flag): --format json was ignored:\n%s", stdout)
	}

	// Without the environment variable, the config file is used.
	os.Unsetenv("PRIMEGEN_FORMAT")
	path := filepath.Join(t.TempDir(), "primegen.yaml")
	if err := os.WriteFile(path, []byte("format: json\nworkers: 2\n"), 0o600); err != nil {
		panic(err)
	}
	stdout.Reset()
	if code := run(context.Background(), []string{"--config", path, "32", "2"}, stdout, stderr); code != 0 {
		t.Fatalf("TestEnvAndConfigFile(config): got exit code %d, stderr: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout.String(), `{"index":1,`) {
		t.Errorf("TestEnvAndConfigFile(config): the config file was ignored:\n%s", stdout)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	if code := run(ctx, []string{"64", "10"}, stdout, stderr); code != 1 {
		t.Errorf("TestCancelled: got exit code %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "context canceled") {
		t.Errorf("TestCancelled: stderr was %q, want the cancellation", stderr)
	}
}

func checkPrime(t *testing.T, name, s string) {
	t.Helper()

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Errorf("%s: %q is not a number", name, s)
		return
	}
	if !v.ProbablyPrime(20) {
		t.Errorf("%s: %v is not prime", name, v)
	}
}
