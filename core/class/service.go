package class

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound         = errors.New("class not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrNotOwner         = errors.New("class does not belong to this teacher")
	ErrRollNumberExists = errors.New("a student with this roll number is already enrolled")
)

type (
	Repository interface {
		CreateClass(cls Class) (Class, error)
		GetClassByID(id string) (Class, error)
		QueryClassesByTeacher(teacherID string, orderings ...core.DBOrdering) ([]Class, error)
		UpdateClass(cls Class) (Class, error)
		DeleteClassesByID(ids ...string) error

		CreateStudent(std Student) (Student, error)
		GetStudentByID(id string) (Student, error)
		// QueryStudentsByClass returns students ordered by roll number.
		QueryStudentsByClass(classID string) ([]Student, error)
		DeleteStudentsByID(ids ...string) error
		CheckRollNumberUniqueness(classID, rollNumber string, excludedStudents ...Student) error
	}

	ServiceInterface interface {
		Create(teacherID string, nc NewClass) (Class, error)
		QueryByTeacher(teacherID string, orderings []core.DBOrdering) ([]Class, error)
		GetByID(id string) (Class, error)
		// GetOwnedClass returns the class iff it exists and belongs to teacherID.
		GetOwnedClass(classID, teacherID string) (Class, error)
		Update(id string, uc UpdateClass) (Class, error)
		Delete(ids ...string) error

		AddStudent(classID string, ns NewStudent) (Student, error)
		GetStudent(id string) (Student, error)
		// Roster returns the class' students ordered by roll number, de-duplicated by ID.
		Roster(classID string) ([]Student, error)
		RemoveStudent(ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(teacherID string, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	cls := Class{
		ID:        uuid.New().String(),
		TeacherID: teacherID,
		Name:      nc.Name,
		Section:   nc.Section,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateClass(cls)
}

func (svc *Service) QueryByTeacher(teacherID string, orderings []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClassesByTeacher(teacherID, orderings...)
}

func (svc *Service) GetByID(id string) (Class, error) {
	return svc.repo.GetClassByID(id)
}

func (svc *Service) GetOwnedClass(classID, teacherID string) (Class, error) {
	cls, err := svc.repo.GetClassByID(classID)
	if err != nil {
		return Class{}, err
	}
	if cls.TeacherID != teacherID {
		return Class{}, ErrNotOwner
	}
	return cls, nil
}

func (svc *Service) Update(id string, uc UpdateClass) (Class, error) {
	cls := Class{
		ID:        id,
		Name:      uc.Name,
		Section:   uc.Section,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateClass(cls)
}

func (svc *Service) Delete(ids ...string) error {
	return svc.repo.DeleteClassesByID(ids...)
}

func (svc *Service) AddStudent(classID string, ns NewStudent) (Student, error) {
	if err := svc.repo.CheckRollNumberUniqueness(classID, ns.RollNumber); err != nil {
		if errors.Cause(err) == ErrRollNumberExists {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "roll_number", Error: err.Error()})
		}
		return Student{}, err
	}
	std := Student{
		ID:         uuid.New().String(),
		ClassID:    classID,
		Name:       ns.Name,
		RollNumber: ns.RollNumber,
		Section:    ns.Section,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateStudent(std)
}

func (svc *Service) GetStudent(id string) (Student, error) {
	return svc.repo.GetStudentByID(id)
}

func (svc *Service) Roster(classID string) ([]Student, error) {
	students, err := svc.repo.QueryStudentsByClass(classID)
	if err != nil {
		return nil, err
	}

	// de-duplicate by ID, preserving order
	seen := make(map[string]struct{}, len(students))
	roster := students[:0]
	for _, std := range students {
		if _, ok := seen[std.ID]; ok {
			continue
		}
		seen[std.ID] = struct{}{}
		roster = append(roster, std)
	}
	return roster, nil
}

func (svc *Service) RemoveStudent(ids ...string) error {
	return svc.repo.DeleteStudentsByID(ids...)
}
