package services

import (
	"go.uber.org/zap"
)

// mutationLog writes one structured log line per successful mutation.
// Nothing is persisted.
type mutationLog struct {
	log *zap.SugaredLogger
}

// NewMutationLog creates a MutationRecorder writing to log.
func NewMutationLog(log *zap.SugaredLogger) MutationRecorder {
	return &mutationLog{log: log}
}

// Record logs a mutation with its actor and target.
func (m *mutationLog) Record(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	fields := []interface{}{
		"user_id", userID,
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", ipAddress,
	}
	if len(changes) > 0 {
		fields = append(fields, "changes", changes)
	}
	m.log.Infow("Mutation recorded", fields...)
}
