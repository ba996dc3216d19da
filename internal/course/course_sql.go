package course

import (
	"context"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/driver"
)

// CourseRepository course catalog access. The catalog is read-mostly
// reference data owned by the content pipeline, this repository only reads
type CourseRepository struct {
	Conn driver.ITransactionalDB
}

var _ domain.CourseRepository = &CourseRepository{}

func NewCourseRepository(Conn driver.ITransactionalDB) *CourseRepository {
	return &CourseRepository{
		Conn: Conn,
	}
}

func (repo *CourseRepository) GetCourseByID(ctx context.Context, courseID string) (*domain.CourseModel, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT
    c.id, c.title, c.language, c.level, c.completion_threshold, c.unlock_sequential
FROM
    course c
WHERE
    c.id = $1
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if rows.Next() {
		item := new(domain.CourseModel)
		if err := rows.Scan(&item.ID, &item.Title, &item.Language, &item.Level,
			&item.CompletionThreshold, &item.UnlockSequential); err != nil {
			return nil, err
		}
		return item, nil
	}
	return nil, nil
}

func (repo *CourseRepository) GetLessonByID(ctx context.Context, lessonID string) (*domain.LessonModel, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT
    l.id, l.course_id, l.title, l."order", l.duration, l.is_preview, l.video_url
FROM
    lesson l
WHERE
    l.id = $1
	`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if rows.Next() {
		item := new(domain.LessonModel)
		if err := rows.Scan(&item.ID, &item.CourseID, &item.Title, &item.Order,
			&item.Duration, &item.IsPreview, &item.VideoURL); err != nil {
			return nil, err
		}
		return item, nil
	}
	return nil, nil
}

func (repo *CourseRepository) GetLessonsByCourse(ctx context.Context, courseID string) ([]*domain.LessonModel, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT
    l.id, l.course_id, l.title, l."order", l.duration, l.is_preview, l.video_url
FROM
    lesson l
WHERE
    l.course_id = $1
ORDER BY
    l."order"
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.LessonModel
	for rows.Next() {
		item := new(domain.LessonModel)
		if err := rows.Scan(&item.ID, &item.CourseID, &item.Title, &item.Order,
			&item.Duration, &item.IsPreview, &item.VideoURL); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}
