package services

import (
	"fmt"

	"practicehub/internal/models"
	contextutils "practicehub/internal/utils"
)

// NoQuestionsAvailableError is returned when every requested difficulty
// bucket came back empty for a subject and target age.
type NoQuestionsAvailableError struct {
	Subject   models.Subject
	TargetAge int
	Requested int
}

func (e *NoQuestionsAvailableError) Error() string {
	return fmt.Sprintf("no questions available (subject=%s target_age=%d requested=%d)", e.Subject, e.TargetAge, e.Requested)
}

// Unwrap allows errors.Is(..., contextutils.ErrNoQuestionsAvailable) to work.
func (e *NoQuestionsAvailableError) Unwrap() error {
	return contextutils.ErrNoQuestionsAvailable
}
