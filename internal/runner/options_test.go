package runner

import (
	"testing"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		validate func(*testing.T, Options)
	}{
		{
			name:  "defaults",
			input: Options{},
			validate: func(t *testing.T, o Options) {
				if o.Concurrency != DefaultConcurrency {
					t.Errorf("Concurrency = %d, want %d", o.Concurrency, DefaultConcurrency)
				}
				if o.LimiterFactory == nil {
					t.Error("LimiterFactory should not be nil")
				}
			},
		},
		{
			name: "negative values corrected",
			input: Options{
				Concurrency:   -5,
				Total:         -10,
				RatePerSecond: -1,
			},
			validate: func(t *testing.T, o Options) {
				if o.Concurrency != DefaultConcurrency {
					t.Errorf("Concurrency = %d, want %d", o.Concurrency, DefaultConcurrency)
				}
				if o.Total != 0 {
					t.Errorf("Total = %d, want 0", o.Total)
				}
				if o.RatePerSecond != 0 {
					t.Errorf("RatePerSecond = %d, want 0", o.RatePerSecond)
				}
			},
		},
		{
			name:  "workers capped at total",
			input: Options{Concurrency: 10, Total: 4},
			validate: func(t *testing.T, o Options) {
				if o.Concurrency != 4 {
					t.Errorf("Concurrency = %d, want 4", o.Concurrency)
				}
			},
		},
		{
			name: "preserve valid values",
			input: Options{
				Concurrency:   2,
				Total:         100,
				RatePerSecond: 50,
			},
			validate: func(t *testing.T, o Options) {
				if o.Concurrency != 2 {
					t.Errorf("Concurrency = %d, want 2", o.Concurrency)
				}
				if o.Total != 100 {
					t.Errorf("Total = %d, want 100", o.Total)
				}
				if o.RatePerSecond != 50 {
					t.Errorf("RatePerSecond = %d, want 50", o.RatePerSecond)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.normalize()
			tt.validate(t, opts)
		})
	}
}

func TestDefaultLimiterUnlimited(t *testing.T) {
	opts := Options{}
	opts.normalize()
	lim := opts.LimiterFactory(0)
	for i := 0; i < 1000; i++ {
		if !lim.Allow() {
			t.Fatalf("unlimited limiter denied request %d", i)
		}
	}
}
