package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// JobService owns job_run lifecycle from the request side: enqueue, read
// back, cancel. Execution belongs to the worker pool.
type JobService interface {
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*domain.JobRun, error)
	EnqueueIfIdle(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID uuid.UUID, payload map[string]any) (*domain.JobRun, bool, error)
	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*domain.JobRun, error)
	Cancel(dbc dbctx.Context, jobID uuid.UUID) (*domain.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, notify JobNotifier) JobService {
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*domain.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	job, err := s.repo.Create(dbc, &domain.JobRun{
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      domain.JobStatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON(raw),
	})
	if err != nil {
		return nil, err
	}

	if s.notify != nil {
		s.notify.JobCreated(ownerUserID, job)
	}
	s.log.Info("Job enqueued", "job_id", job.ID, "job_type", jobType, "entity_type", entityType)
	return job, nil
}

// EnqueueIfIdle skips the enqueue when a queued or running job of the same
// type already exists for the entity, so double-clicks do not double-run
// a pipeline.
func (s *jobService) EnqueueIfIdle(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID uuid.UUID, payload map[string]any) (*domain.JobRun, bool, error) {
	busy, err := s.repo.HasRunnableForEntity(dbc, entityType, entityID, jobType)
	if err != nil {
		return nil, false, err
	}
	if busy {
		return nil, false, nil
	}
	job, err := s.Enqueue(dbc, ownerUserID, jobType, entityType, &entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*domain.JobRun, error) {
	return s.repo.GetByID(dbc, jobID)
}

// Cancel is cooperative: the status flips to canceled and the runtime's
// guarded updates stop a running handler from overwriting it. A terminal job
// cannot be canceled.
func (s *jobService) Cancel(dbc dbctx.Context, jobID uuid.UUID) (*domain.JobRun, error) {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	switch job.Status {
	case domain.JobStatusSucceeded, domain.JobStatusFailed, domain.JobStatusCanceled:
		return job, nil
	}

	now := time.Now()
	if err := s.repo.UpdateFields(dbc, jobID, map[string]interface{}{
		"status":     domain.JobStatusCanceled,
		"message":    "",
		"locked_at":  nil,
		"updated_at": now,
	}); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatusCanceled
	job.LockedAt = nil
	job.UpdatedAt = now

	if s.notify != nil {
		s.notify.JobFailed(job.OwnerUserID, job, job.Stage, "canceled")
	}
	return job, nil
}
