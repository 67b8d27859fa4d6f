// Package models holds plain Go DTOs exchanged between pkg/coreapi and its
// external collaborators (the HTTP binding, the object-storage writer, the
// reviewer tooling). These are never persisted directly — ent's generated
// types are the persistence shape; these are the wire shape.
package models

import "time"

// SubmitUploadRequest is the input to coreapi.Submit.
type SubmitUploadRequest struct {
	ExamID     string `json:"exam_id"`
	StudentRef string `json:"student_ref"`
	ObjectKey  string `json:"object_key"`
}

// UploadStatus is a read projection of an UploadedScript for status polling.
type UploadStatus struct {
	UploadID     string     `json:"upload_id"`
	ExamID       string     `json:"exam_id"`
	StudentRef   string     `json:"student_ref"`
	Status       string     `json:"status"`
	PageCount    *int       `json:"page_count,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// EvaluationSummary is a read projection of one question's EvaluationResult.
type EvaluationSummary struct {
	QuestionID          string   `json:"question_id"`
	RunID               string   `json:"run_id"`
	Status              string   `json:"status"`
	TotalScore          *float64 `json:"total_score,omitempty"`
	Percentage          *float64 `json:"percentage,omitempty"`
	ReviewerOverride    bool     `json:"reviewer_override"`
	ReviewRecommendation string  `json:"review_recommendation,omitempty"`
}

// OverrideRequest is the input to coreapi.Override.
type OverrideRequest struct {
	EvaluationResultID string  `json:"evaluation_result_id"`
	TotalScore         float64 `json:"total_score"`
	ReviewerID         string  `json:"reviewer_id"`
	ReviewerNote       string  `json:"reviewer_note,omitempty"`
}
