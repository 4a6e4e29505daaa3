package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/realtime"
)

// JobNotifier pushes job lifecycle events to the owning user's SSE channel.
// Events go through the bus so every replica's hub sees them.
type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *domain.JobRun)
	JobProgress(userID uuid.UUID, job *domain.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *domain.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *domain.JobRun)
	ReportUpdated(userID uuid.UUID, reportID uuid.UUID, status string)
}

type jobNotifier struct {
	bus realtime.Bus
}

func NewJobNotifier(bus realtime.Bus) JobNotifier {
	return &jobNotifier{bus: bus}
}

func (n *jobNotifier) publish(msg realtime.Message) {
	if n.bus == nil {
		return
	}
	_ = n.bus.Publish(context.Background(), msg)
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *domain.JobRun) {
	n.publish(realtime.Message{
		Channel: userID.String(),
		Event:   realtime.EventJobCreated,
		Data:    map[string]any{"job": job},
	})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *domain.JobRun, stage string, progress int, message string) {
	n.publish(realtime.Message{
		Channel: userID.String(),
		Event:   realtime.EventJobProgress,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"progress": progress,
			"message":  message,
		},
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *domain.JobRun, stage string, errorMessage string) {
	n.publish(realtime.Message{
		Channel: userID.String(),
		Event:   realtime.EventJobFailed,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"error":    errorMessage,
		},
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *domain.JobRun) {
	n.publish(realtime.Message{
		Channel: userID.String(),
		Event:   realtime.EventJobDone,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"result":   job.Result,
		},
	})
}

func (n *jobNotifier) ReportUpdated(userID uuid.UUID, reportID uuid.UUID, status string) {
	n.publish(realtime.Message{
		Channel: userID.String(),
		Event:   realtime.EventReportUpdated,
		Data: map[string]any{
			"report_id": reportID,
			"status":    status,
		},
	})
}
