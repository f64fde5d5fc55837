package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -3, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "download") {
		t.Error("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)

	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{10, true},
		{19.9, false},
		{55, true},
		{100, true},
		{140, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent, "download"); got != step.want {
			t.Errorf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerPhaseChangeResetsBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(80, "download")

	if !s.ShouldLog(0, "verify") {
		t.Fatal("phase change should log")
	}
	if !s.ShouldLog(20, "verify") {
		t.Fatal("bucket after phase change should log")
	}
	if s.lastPhase != "verify" {
		t.Fatalf("lastPhase = %q, want verify", s.lastPhase)
	}
}

func TestProgressSamplerUnknownTotal(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(Percent(1024, -1), " download ") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(Percent(4096, -1), "download") {
		t.Fatal("unknown totals should only log on phase change")
	}
	s.Reset()
	if !s.ShouldLog(-1, "download") {
		t.Fatal("reset sampler should log again")
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(50, 200); got != 25 {
		t.Fatalf("Percent(50, 200) = %v, want 25", got)
	}
	if got := Percent(50, 0); got != -1 {
		t.Fatalf("Percent(50, 0) = %v, want -1", got)
	}
}
