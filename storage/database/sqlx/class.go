package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
)

type classRow struct {
	ID        string      `db:"id"`
	TeacherID string      `db:"teacher_id"`
	Name      string      `db:"name"`
	Section   null.String `db:"section"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r classRow) class() class.Class {
	return class.Class{
		ID:        r.ID,
		TeacherID: r.TeacherID,
		Name:      r.Name,
		Section:   r.Section.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type studentRow struct {
	ID         string      `db:"id"`
	ClassID    string      `db:"class_id"`
	Name       string      `db:"name"`
	RollNumber string      `db:"roll_number"`
	Section    null.String `db:"section"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r studentRow) student() class.Student {
	return class.Student{
		ID:         r.ID,
		ClassID:    r.ClassID,
		Name:       r.Name,
		RollNumber: r.RollNumber,
		Section:    r.Section.String,
		CreatedAt:  r.CreatedAt,
	}
}

type ClassRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*ClassRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (repo *ClassRepository) CreateClass(cls class.Class) (class.Class, error) {
	q := `
INSERT INTO class (id, teacher_id, name, section, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.Exec(q, cls.ID, cls.TeacherID, cls.Name,
		null.NewString(cls.Section, cls.Section != ""), cls.CreatedAt, cls.UpdatedAt)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "creating class")
	}
	return cls, nil
}

func (repo *ClassRepository) GetClassByID(id string) (class.Class, error) {
	var row classRow
	if err := repo.db.Get(&row, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "getting class")
	}
	return row.class(), nil
}

func (repo *ClassRepository) QueryClassesByTeacher(teacherID string, orderings ...core.DBOrdering) ([]class.Class, error) {
	q := `SELECT * FROM class WHERE teacher_id = $1` + orderBy(orderings, "created_at")
	var rows []classRow
	if err := repo.db.Select(&rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, len(rows))
	for i, row := range rows {
		classes[i] = row.class()
	}
	return classes, nil
}

func (repo *ClassRepository) UpdateClass(cls class.Class) (class.Class, error) {
	orig, err := repo.GetClassByID(cls.ID)
	if err != nil {
		return class.Class{}, err
	}

	// merge set fields only
	if cls.Name == "" {
		cls.Name = orig.Name
	}
	if cls.Section == "" {
		cls.Section = orig.Section
	}
	cls.TeacherID = orig.TeacherID
	cls.CreatedAt = orig.CreatedAt
	if cls.UpdatedAt.IsZero() {
		cls.UpdatedAt = time.Now().UTC()
	}

	q := `UPDATE class SET name = $1, section = $2, updated_at = $3 WHERE id = $4`
	_, err = repo.db.Exec(q, cls.Name, null.NewString(cls.Section, cls.Section != ""), cls.UpdatedAt, cls.ID)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	return cls, nil
}

func (repo *ClassRepository) DeleteClassesByID(ids ...string) error {
	return repo.deleteByID("class", ids)
}

func (repo *ClassRepository) CreateStudent(std class.Student) (class.Student, error) {
	q := `
INSERT INTO student (id, class_id, name, roll_number, section, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.Exec(q, std.ID, std.ClassID, std.Name, std.RollNumber,
		null.NewString(std.Section, std.Section != ""), std.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return class.Student{}, class.ErrRollNumberExists
		}
		return class.Student{}, errors.Wrap(err, "creating student")
	}
	return std, nil
}

func (repo *ClassRepository) GetStudentByID(id string) (class.Student, error) {
	var row studentRow
	if err := repo.db.Get(&row, `SELECT * FROM student WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return class.Student{}, class.ErrStudentNotFound
		}
		return class.Student{}, errors.Wrap(err, "getting student")
	}
	return row.student(), nil
}

func (repo *ClassRepository) QueryStudentsByClass(classID string) ([]class.Student, error) {
	q := `SELECT * FROM student WHERE class_id = $1 ORDER BY roll_number, created_at`
	var rows []studentRow
	if err := repo.db.Select(&rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]class.Student, len(rows))
	for i, row := range rows {
		students[i] = row.student()
	}
	return students, nil
}

func (repo *ClassRepository) DeleteStudentsByID(ids ...string) error {
	return repo.deleteByID("student", ids)
}

func (repo *ClassRepository) CheckRollNumberUniqueness(classID, rollNumber string, excludedStudents ...class.Student) error {
	excluded := make(map[string]struct{}, len(excludedStudents))
	for _, std := range excludedStudents {
		excluded[std.ID] = struct{}{}
	}

	q := `SELECT id FROM student WHERE class_id = $1 AND roll_number = $2`
	var ids []string
	if err := repo.db.Select(&ids, q, classID, rollNumber); err != nil {
		return errors.Wrap(err, "checking roll number uniqueness")
	}
	for _, id := range ids {
		if _, ok := excluded[id]; !ok {
			return class.ErrRollNumberExists
		}
	}
	return nil
}

func (repo *ClassRepository) deleteByID(table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM `+table+` WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	return nil
}
