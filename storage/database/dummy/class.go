package dummydb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
)

type classRepository struct {
	db *classTable
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db.class}
}

func (repo *classRepository) CreateClass(cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) GetClassByID(id string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) QueryClassesByTeacher(teacherID string, orderings ...core.DBOrdering) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.db.classes {
		if cls.TeacherID == teacherID {
			classes = append(classes, *cls)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (repo *classRepository) UpdateClass(cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origCls, ok := repo.db.classes[cls.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if cls.Name != "" {
		origCls.Name = cls.Name
	}
	if cls.Section != "" {
		origCls.Section = cls.Section
	}
	if !cls.UpdatedAt.IsZero() {
		origCls.UpdatedAt = cls.UpdatedAt
	}

	repo.db.classes[cls.ID] = origCls
	return *origCls, nil
}

func (repo *classRepository) DeleteClassesByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.classes, id)
		for stdID, std := range repo.db.students {
			if std.ClassID == id {
				delete(repo.db.students, stdID)
			}
		}
	}
	return nil
}

func (repo *classRepository) CreateStudent(std class.Student) (class.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if std.ID == "" {
		std.ID = uuid.New().String()
	}
	repo.db.students[std.ID] = &std
	return std, nil
}

func (repo *classRepository) GetStudentByID(id string) (class.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.students[id]; ok {
		return *std, nil
	}
	return class.Student{}, class.ErrStudentNotFound
}

func (repo *classRepository) QueryStudentsByClass(classID string) ([]class.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]class.Student, 0)
	for _, std := range repo.db.students {
		if std.ClassID == classID {
			students = append(students, *std)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RollNumber < students[j].RollNumber })
	return students, nil
}

func (repo *classRepository) DeleteStudentsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.students, id)
	}
	return nil
}

func (repo *classRepository) CheckRollNumberUniqueness(classID, rollNumber string, excludedStudents ...class.Student) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]struct{}, len(excludedStudents))
	for _, std := range excludedStudents {
		excluded[std.ID] = struct{}{}
	}

	for _, std := range repo.db.students {
		if std.ClassID != classID {
			continue
		}
		if _, ok := excluded[std.ID]; ok {
			continue
		}
		if std.RollNumber == rollNumber {
			return class.ErrRollNumberExists
		}
	}
	return nil
}
