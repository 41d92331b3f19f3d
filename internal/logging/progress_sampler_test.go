package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
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

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "download") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(5)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{1.5, false},
		{4.9, false},
		{5.0, true},
		{7.2, false},
		{12.0, true},
		{11.0, false},
		{100, true},
		{100, false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, "download"); got != step.want {
			t.Fatalf("step %d (%.1f%%): ShouldLog = %v, want %v", i, step.percent, got, step.want)
		}
	}
}

func TestProgressSampler_JobChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "job-a")
	if !s.ShouldLog(20, "job-b") {
		t.Fatal("new job should log")
	}
	if !s.ShouldLog(30, "job-b") {
		t.Fatal("bucket should have restarted for the new job")
	}
}

func TestProgressSampler_UnknownPercent(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(10, "download")
	if s.ShouldLog(-1, "download") {
		t.Fatal("unknown percent should not log on its own")
	}
	s.Reset()
	if !s.ShouldLog(10, "download") {
		t.Fatal("reset should allow logging again")
	}
}
