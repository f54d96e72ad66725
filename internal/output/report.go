// Package output renders probe results for humans and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/torosent/coapprobe/internal/coap"
)

// Format names a report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Record is one response, in submission order.
type Record struct {
	Index     int           `json:"index" yaml:"index"`
	Path      string        `json:"path" yaml:"path"`
	Elapsed   time.Duration `json:"-" yaml:"-"`
	ElapsedMs float64       `json:"elapsed_ms" yaml:"elapsed_ms"`
	Output    string        `json:"output" yaml:"output"`
}

// Report describes a single harness run.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Method     string    `json:"method" yaml:"method"`
	Address    string    `json:"address" yaml:"address"`
	Port       int       `json:"port,omitempty" yaml:"port,omitempty"`
	Mode       string    `json:"mode" yaml:"mode"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	DurationMs float64   `json:"duration_ms" yaml:"duration_ms"`
	Records    []Record  `json:"records" yaml:"records"`

	Duration time.Duration `json:"-" yaml:"-"`
}

// NewRunID returns a sortable identifier for a harness run.
func NewRunID() string {
	return ulid.Make().String()
}

// NewRecords pairs responses with the paths that produced them. When there are
// fewer paths than responses (repeat modes) the last path is reused.
func NewRecords(paths []string, responses []coap.Response) []Record {
	records := make([]Record, len(responses))
	for i, resp := range responses {
		var path string
		switch {
		case i < len(paths):
			path = paths[i]
		case len(paths) > 0:
			path = paths[len(paths)-1]
		}
		records[i] = Record{
			Index:     i,
			Path:      path,
			Elapsed:   resp.Elapsed,
			ElapsedMs: float64(resp.Elapsed) / float64(time.Millisecond),
			Output:    resp.Output,
		}
	}
	return records
}

// SetDuration records the wall-clock duration of the run.
func (r *Report) SetDuration(d time.Duration) {
	r.Duration = d
	r.DurationMs = float64(d) / float64(time.Millisecond)
}

// Write renders report in the requested format.
func Write(w io.Writer, format Format, report Report) error {
	switch format {
	case FormatJSON:
		return PrintJSONReport(w, report)
	case FormatYAML:
		return PrintYAMLReport(w, report)
	case FormatText, "":
		PrintReport(w, report)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// PrintReport outputs a human-readable report.
func PrintReport(w io.Writer, report Report) {
	target := coap.BuildURI("", report.Address, report.Port)
	fmt.Fprintln(w, "--- CoAP Probe Results ---")
	fmt.Fprintf(w, "Run:        %s\n", report.RunID)
	fmt.Fprintf(w, "Target:     %s\n", target)
	fmt.Fprintf(w, "Method:     %s\n", strings.ToUpper(report.Method))
	fmt.Fprintf(w, "Mode:       %s\n", report.Mode)
	fmt.Fprintf(w, "Requests:   %d\n", len(report.Records))
	fmt.Fprintf(w, "Duration:   %s\n", report.Duration)

	if len(report.Records) == 0 {
		return
	}
	fmt.Fprintln(w)
	width := len(fmt.Sprint(len(report.Records) - 1))
	for _, rec := range report.Records {
		fmt.Fprintf(w, "[%*d] %s  %s\n", width, rec.Index, rec.Path, rec.Elapsed)
		body := strings.TrimRight(rec.Output, "\n")
		if body == "" {
			fmt.Fprintln(w, "    (no output)")
			continue
		}
		for _, line := range strings.Split(body, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, report Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
