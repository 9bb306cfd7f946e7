package dummydb

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) CreateRecord(rec attendance.Record) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.ClassID == rec.ClassID && core.SameDate(other.Date, rec.Date) {
			return attendance.Record{}, attendance.ErrDuplicate
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecordByID(id string) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetRecordByClassAndDate(classID string, date time.Time) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.table {
		if rec.ClassID == classID && core.SameDate(rec.Date, date) {
			return *rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryRecordsByClass(classID string, from, to time.Time, orderings ...core.DBOrdering) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]attendance.Record, 0)
	for _, rec := range repo.db.table {
		if rec.ClassID != classID {
			continue
		}
		if !from.IsZero() && rec.Date.Before(core.DateOf(from)) {
			continue
		}
		if !to.IsZero() && rec.Date.After(core.DateOf(to)) {
			continue
		}
		recs = append(recs, *rec)
	}

	ascending := true
	if len(orderings) > 0 && orderings[0].Field == "date" {
		ascending = orderings[0].Ascending
	}
	sort.Slice(recs, func(i, j int) bool {
		if ascending {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].Date.After(recs[j].Date)
	})
	return recs, nil
}

func (repo *attendanceRepository) DeleteRecordsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
