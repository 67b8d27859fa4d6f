// Package coreapi exposes the core's operations as plain Go methods —
// submit_upload, get_upload, get_result, re_segment, re_evaluate, and
// override_result from spec.md §6 — with no HTTP binding. A transport
// layer (gin, grpc, or otherwise) is expected to sit in front of this
// package at wiring time; it is deliberately not part of the core.
package coreapi

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/pkg/models"
	"github.com/gradeflow/gradeflow/pkg/orchestrator"
)

// SubmitService implements spec.md §6's submit_upload operation.
type SubmitService struct {
	client *ent.Client
}

// NewSubmitService returns a SubmitService backed by client.
func NewSubmitService(client *ent.Client) *SubmitService {
	return &SubmitService{client: client}
}

// Submit persists an UploadedScript row for an already-stored object and
// enqueues the ingest task that starts the pipeline.
func (s *SubmitService) Submit(ctx context.Context, req models.SubmitUploadRequest) (*models.ControlAck, error) {
	if req.ExamID == "" || req.ObjectKey == "" {
		return nil, fmt.Errorf("exam_id and object_key are required")
	}

	uploadID := "upload-" + uuid.NewString()
	_, err := s.client.UploadedScript.Create().
		SetID(uploadID).
		SetExamID(req.ExamID).
		SetStudentRef(req.StudentRef).
		SetObjectKey(req.ObjectKey).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create uploaded script: %w", err)
	}

	if err := orchestrator.EnqueueIngest(ctx, s.client, uploadID); err != nil {
		return nil, fmt.Errorf("enqueue ingest for upload %s: %w", uploadID, err)
	}
	return &models.ControlAck{TaskID: uploadID}, nil
}
