package attendance

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound  = errors.New("attendance record not found")
	ErrDuplicate = errors.New("attendance already recorded for this class and date")
)

type (
	Repository interface {
		// CreateRecord persists a record; at most one may exist per (class, date).
		// ErrDuplicate is returned on conflict.
		CreateRecord(rec Record) (Record, error)
		GetRecordByID(id string) (Record, error)
		GetRecordByClassAndDate(classID string, date time.Time) (Record, error)
		QueryRecordsByClass(classID string, from, to time.Time, orderings ...core.DBOrdering) ([]Record, error)
		DeleteRecordsByID(ids ...string) error
	}

	ServiceInterface interface {
		Exists(classID string, date time.Time) (bool, error)
		Save(classID, teacherID string, date time.Time, students []StudentRecord) (Record, error)
		GetByID(id string) (Record, error)
		GetByClassAndDate(classID string, date time.Time) (Record, error)
		QueryByClass(classID string, from, to time.Time, orderings []core.DBOrdering) ([]Record, error)
		Delete(ids ...string) error
		ClassStats(classID string, from, to time.Time) (ClassStats, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Exists(classID string, date time.Time) (bool, error) {
	_, err := svc.repo.GetRecordByClassAndDate(classID, core.DateOf(date))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Save persists one attendance record for (classID, date).
func (svc *Service) Save(classID, teacherID string, date time.Time, students []StudentRecord) (Record, error) {
	rec := Record{
		ID:        uuid.New().String(),
		ClassID:   classID,
		TeacherID: teacherID,
		Date:      core.DateOf(date),
		Students:  students,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateRecord(rec)
}

func (svc *Service) GetByID(id string) (Record, error) {
	return svc.repo.GetRecordByID(id)
}

func (svc *Service) GetByClassAndDate(classID string, date time.Time) (Record, error) {
	return svc.repo.GetRecordByClassAndDate(classID, core.DateOf(date))
}

func (svc *Service) QueryByClass(classID string, from, to time.Time, orderings []core.DBOrdering) ([]Record, error) {
	return svc.repo.QueryRecordsByClass(classID, core.DateOf(from), core.DateOf(to), orderings...)
}

func (svc *Service) Delete(ids ...string) error {
	return svc.repo.DeleteRecordsByID(ids...)
}

// ClassStats aggregates per-student presence over [from, to] for chart views.
func (svc *Service) ClassStats(classID string, from, to time.Time) (ClassStats, error) {
	recs, err := svc.repo.QueryRecordsByClass(classID, core.DateOf(from), core.DateOf(to))
	if err != nil {
		return ClassStats{}, err
	}

	byStudent := make(map[string]*StudentStats)
	for _, rec := range recs {
		for _, sr := range rec.Students {
			stats, ok := byStudent[sr.StudentID]
			if !ok {
				stats = &StudentStats{StudentID: sr.StudentID}
				byStudent[sr.StudentID] = stats
			}
			switch sr.Status {
			case StatusPresent:
				stats.Present++
			case StatusAbsent:
				stats.Absent++
			}
		}
	}

	students := make([]StudentStats, 0, len(byStudent))
	for _, stats := range byStudent {
		if total := stats.Present + stats.Absent; total > 0 {
			stats.Rate = float64(stats.Present) / float64(total)
		}
		students = append(students, *stats)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].StudentID < students[j].StudentID })

	return ClassStats{
		ClassID:  classID,
		From:     core.DateOf(from),
		To:       core.DateOf(to),
		Sessions: len(recs),
		Students: students,
	}, nil
}
