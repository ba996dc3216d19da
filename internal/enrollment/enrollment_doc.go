package enrollment

import (
	"context"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/driver"
)

// EnrollmentRepository document-store backed enrollment persistence, one
// document per user+course under the deterministic enrollment key
type EnrollmentRepository struct {
	DB driver.DocumentDB
}

var _ domain.EnrollmentRepository = &EnrollmentRepository{}

func NewEnrollmentRepository(db driver.DocumentDB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func docKey(userID, courseID string) string {
	return "enroll:" + domain.EnrollmentKey(userID, courseID)
}

func (repo *EnrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string) (*domain.EnrollmentModel, error) {
	out := new(domain.EnrollmentModel)
	found, err := repo.DB.GetDoc(ctx, docKey(userID, courseID), out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return out, nil
}

// CreateEnrollment set-if-absent: calling it twice for the same user+course
// leaves exactly one document
func (repo *EnrollmentRepository) CreateEnrollment(ctx context.Context, enrollment *domain.EnrollmentModel) (bool, error) {
	return repo.DB.PutDocNX(ctx, docKey(enrollment.UserID, enrollment.CourseID), enrollment)
}

func (repo *EnrollmentRepository) UpdateEnrollment(ctx context.Context, enrollment *domain.EnrollmentModel) error {
	return repo.DB.PutDoc(ctx, docKey(enrollment.UserID, enrollment.CourseID), enrollment)
}
