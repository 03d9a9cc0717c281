package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPaperKey returns the cache key for the student-facing exam paper.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// SubmissionAnswersKey returns the cache key for a submission's saved answers.
func (r *CacheKeyStruct) SubmissionAnswersKey(submissionID string) string {
	return fmt.Sprintf("submission:%s:answers", submissionID)
}

// SubmissionStartKey returns the cache key for a submission's start time.
func (r *CacheKeyStruct) SubmissionStartKey(submissionID string) string {
	return fmt.Sprintf("submission:%s:started_at", submissionID)
}

var CacheKey = NewCacheKeyStruct()
