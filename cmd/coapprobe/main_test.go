package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/torosent/coapprobe/internal/command"
	"github.com/torosent/coapprobe/internal/config"
)

// fakeClient writes a shell script that echoes its arguments, standing in for
// coap-client.
func fakeClient(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	path := filepath.Join(t.TempDir(), "coap-client")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake client: %v", err)
	}
	return path
}

type jsonReport struct {
	RunID   string `json:"run_id"`
	Mode    string `json:"mode"`
	Records []struct {
		Index  int    `json:"index"`
		Path   string `json:"path"`
		Output string `json:"output"`
	} `json:"records"`
}

func TestRunPathsModeJSON(t *testing.T) {
	client := fakeClient(t, `echo "$@"`)
	var stdout, stderr bytes.Buffer

	err := run([]string{"--client", client, "--address", "10.0.0.1", "--port", "5683", "-o", "json", "temp", "/humid"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	var report jsonReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
	}
	if report.RunID == "" || report.Mode != "paths" {
		t.Errorf("report header = %+v", report)
	}
	if len(report.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(report.Records))
	}
	want := []string{
		"-m get coap://10.0.0.1:5683/temp -B 15\n",
		"-m get coap://10.0.0.1:5683/humid -B 15\n",
	}
	for i, rec := range report.Records {
		if rec.Output != want[i] {
			t.Errorf("records[%d].Output = %q, want %q", i, rec.Output, want[i])
		}
	}
}

func TestRunRepeatModeYAML(t *testing.T) {
	client := fakeClient(t, `printf 'v=21.5'`)
	var stdout, stderr bytes.Buffer

	err := run([]string{"--client", client, "-a", "sensor.local", "--mode", "repeat", "-n", "3", "-o", "yaml", "--path", "temp"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	var report struct {
		Records []struct {
			Path   string `yaml:"path"`
			Output string `yaml:"output"`
		} `yaml:"records"`
	}
	if err := yaml.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, stdout.String())
	}
	if len(report.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(report.Records))
	}
	for i, rec := range report.Records {
		if rec.Path != "temp" || rec.Output != "v=21.5" {
			t.Errorf("records[%d] = %+v", i, rec)
		}
	}
}

func TestRunParallelModeText(t *testing.T) {
	client := fakeClient(t, `echo ok`)
	var stdout, stderr bytes.Buffer

	err := run([]string{"--client", client, "-a", "h", "--mode", "parallel", "-n", "6", "-w", "2", "--progress", "temp"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"--- CoAP Probe Results ---", "Mode:       parallel", "Requests:   6"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(stderr.String(), "Completed: 6/6 (100%)") {
		t.Errorf("progress output = %q", stderr.String())
	}
}

func TestRunPassesPayload(t *testing.T) {
	client := fakeClient(t, `printf '%s|' "$@"`)
	var stdout, stderr bytes.Buffer

	err := run([]string{"--client", client, "-a", "h", "-m", "PUT", "-e", `{"on": true}`, "--timeout", "2500ms", "-o", "json", "light"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	var report jsonReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := `-m|put|coap://h/light|-B|3|-e|{"on": true}|`
	if len(report.Records) != 1 || report.Records[0].Output != want {
		t.Fatalf("records = %+v, want output %q", report.Records, want)
	}
}

func TestRunMissingClient(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	var stdout, stderr bytes.Buffer
	err := run([]string{"--client", filepath.Join(t.TempDir(), "nope"), "-a", "h", "temp"}, &stdout, &stderr)

	var invErr *command.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("run() error = %v, want *command.InvocationError", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("report written despite failure: %q", stdout.String())
	}
}

func TestRunValidationError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"temp"}, &stdout, &stderr)

	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("run() error = %v, want ValidationError", err)
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}

func TestRunWithDeviceLockAndLogging(t *testing.T) {
	client := fakeClient(t, `echo ok`)
	lockPath := filepath.Join(t.TempDir(), "locks", "sensor.lock")
	var stdout, stderr bytes.Buffer

	err := run([]string{"--client", client, "-a", "h", "--device-lock", lockPath, "-v", "--log-format", "json", "temp"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
	if !strings.Contains(stderr.String(), `"msg":"starting run"`) {
		t.Errorf("expected JSON info log on stderr, got %q", stderr.String())
	}
}

func TestRunRepeatModesLabelRecordsWithRequestedPath(t *testing.T) {
	client := fakeClient(t, `echo "$3"`)

	for _, mode := range []string{"repeat", "parallel"} {
		t.Run(mode, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run([]string{"--client", client, "-a", "h", "--mode", mode, "-n", "3", "-o", "json", "--path", "temp", "--path", "humid"}, &stdout, &stderr)
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			var report jsonReport
			if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
				t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
			}
			if len(report.Records) != 3 {
				t.Fatalf("records = %d, want 3", len(report.Records))
			}
			for i, rec := range report.Records {
				if rec.Path != "temp" || rec.Output != "coap://h/temp\n" {
					t.Errorf("records[%d] = path %q output %q, want temp", i, rec.Path, rec.Output)
				}
			}
			if !strings.Contains(stderr.String(), "probes only the first path") {
				t.Errorf("expected extra paths warning on stderr, got %q", stderr.String())
			}
		})
	}
}

func TestRunPathWithCommaIsOneRequest(t *testing.T) {
	client := fakeClient(t, `echo "$3"`)
	var stdout, stderr bytes.Buffer

	err := run([]string{"--client", client, "-a", "h", "-o", "json", "--path", "sensors/temp?fields=a,b"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	var report jsonReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(report.Records) != 1 || report.Records[0].Output != "coap://h/sensors/temp?fields=a,b\n" {
		t.Fatalf("records = %+v, want one request for the whole path", report.Records)
	}
}
