package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

type recordRow struct {
	ID        string    `db:"id"`
	ClassID   string    `db:"class_id"`
	TeacherID string    `db:"teacher_id"`
	Date      time.Time `db:"date"`
	CreatedAt time.Time `db:"created_at"`
}

type studentRecordRow struct {
	RecordID  string `db:"record_id"`
	StudentID string `db:"student_id"`
	Status    string `db:"status"`
}

type AttendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*AttendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (repo *AttendanceRepository) CreateRecord(rec attendance.Record) (attendance.Record, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "creating attendance record")
	}
	defer func() { _ = tx.Rollback() }()

	q := `
INSERT INTO attendance_record (id, class_id, teacher_id, date, created_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.Exec(q, rec.ID, rec.ClassID, rec.TeacherID, rec.Date, rec.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return attendance.Record{}, attendance.ErrDuplicate
		}
		return attendance.Record{}, errors.Wrap(err, "creating attendance record")
	}

	q = `INSERT INTO attendance_student_record (record_id, student_id, status) VALUES ($1, $2, $3)`
	for _, sr := range rec.Students {
		if _, err = tx.Exec(q, rec.ID, sr.StudentID, sr.Status); err != nil {
			return attendance.Record{}, errors.Wrap(err, "creating student records")
		}
	}

	if err = tx.Commit(); err != nil {
		return attendance.Record{}, errors.Wrap(err, "creating attendance record")
	}
	return rec, nil
}

func (repo *AttendanceRepository) GetRecordByID(id string) (attendance.Record, error) {
	return repo.getRecord(`SELECT * FROM attendance_record WHERE id = $1`, id)
}

func (repo *AttendanceRepository) GetRecordByClassAndDate(classID string, date time.Time) (attendance.Record, error) {
	return repo.getRecord(`SELECT * FROM attendance_record WHERE class_id = $1 AND date = $2`, classID, date)
}

func (repo *AttendanceRepository) getRecord(q string, args ...interface{}) (attendance.Record, error) {
	var row recordRow
	if err := repo.db.Get(&row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "getting attendance record")
	}

	students, err := repo.queryStudentRecords(row.ID)
	if err != nil {
		return attendance.Record{}, err
	}
	return repo.record(row, students), nil
}

func (repo *AttendanceRepository) QueryRecordsByClass(
	classID string, from, to time.Time, orderings ...core.DBOrdering,
) ([]attendance.Record, error) {
	q := `SELECT * FROM attendance_record WHERE class_id = $1`
	args := []interface{}{classID}
	if !from.IsZero() {
		args = append(args, from)
		q += ` AND date >= $2`
	}
	if !to.IsZero() {
		args = append(args, to)
		if len(args) == 2 {
			q += ` AND date <= $2`
		} else {
			q += ` AND date <= $3`
		}
	}
	q += orderBy(orderings, "date")

	var rows []recordRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}

	recs := make([]attendance.Record, len(rows))
	for i, row := range rows {
		students, err := repo.queryStudentRecords(row.ID)
		if err != nil {
			return nil, err
		}
		recs[i] = repo.record(row, students)
	}
	return recs, nil
}

func (repo *AttendanceRepository) DeleteRecordsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM attendance_record WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting attendance records")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting attendance records")
	}
	return nil
}

func (repo *AttendanceRepository) queryStudentRecords(recordID string) ([]attendance.StudentRecord, error) {
	var rows []studentRecordRow
	q := `SELECT * FROM attendance_student_record WHERE record_id = $1 ORDER BY student_id`
	if err := repo.db.Select(&rows, q, recordID); err != nil {
		return nil, errors.Wrap(err, "querying student records")
	}
	students := make([]attendance.StudentRecord, len(rows))
	for i, row := range rows {
		students[i] = attendance.StudentRecord{StudentID: row.StudentID, Status: attendance.Status(row.Status)}
	}
	return students, nil
}

func (repo *AttendanceRepository) record(row recordRow, students []attendance.StudentRecord) attendance.Record {
	return attendance.Record{
		ID:        row.ID,
		ClassID:   row.ClassID,
		TeacherID: row.TeacherID,
		Date:      core.DateOf(row.Date),
		Students:  students,
		CreatedAt: row.CreatedAt,
	}
}
