package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the job or the percentage bucket changes.
type ProgressSampler struct {
	bucketSize float64
	lastJob    string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the job label changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress sample should be logged. Negative
// percent means unknown and never advances the bucket.
func (s *ProgressSampler) ShouldLog(percent float64, job string) bool {
	if s == nil {
		return true
	}
	job = strings.TrimSpace(job)
	emit := false
	if job != "" && job != s.lastJob {
		s.lastJob = job
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastJob = ""
	s.lastBucket = -1
}
