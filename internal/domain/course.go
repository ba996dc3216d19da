package domain

import "context"

// DefaultCompletionThreshold percentage of a lesson that must be watched
// before it counts as complete, used when the course does not set one
const DefaultCompletionThreshold = 80

type CourseModel struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Language            string `json:"language"`
	Level               string `json:"level"`
	CompletionThreshold int    `json:"completion_threshold"` // 1-100
	UnlockSequential    bool   `json:"unlock_sequential"`
}

// Threshold returns the effective completion threshold for the course
func (c *CourseModel) Threshold() float64 {
	if c == nil || c.CompletionThreshold < 1 || c.CompletionThreshold > 100 {
		return DefaultCompletionThreshold
	}
	return float64(c.CompletionThreshold)
}

type LessonModel struct {
	ID        string  `json:"id"`
	CourseID  string  `json:"course_id"`
	Title     string  `json:"title"`
	Order     int     `json:"order"` // unique per course, defines sequence
	Duration  float64 `json:"duration"`
	IsPreview bool    `json:"is_preview"`
	VideoURL  string  `json:"video_url,omitempty"`
}

type CourseRepository interface {
	GetCourseByID(ctx context.Context, courseID string) (*CourseModel, error)
	GetLessonByID(ctx context.Context, lessonID string) (*LessonModel, error)
	// GetLessonsByCourse returns the course lessons sorted by their order field
	GetLessonsByCourse(ctx context.Context, courseID string) ([]*LessonModel, error)
}
