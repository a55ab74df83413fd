package dummydb

import (
	"context"
	"sort"

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

func key(classID, date string) string { return classID + "/" + date }

func (repo *attendanceRepository) CreateRecord(_ context.Context, rec attendance.Record, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	k := key(rec.ClassID, rec.Date)
	if _, ok := repo.db.table[k]; ok {
		return attendance.Record{}, attendance.ErrAlreadyMarked
	}
	rec.ID = uuid.New().String()
	repo.db.table[k] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, classID, date string, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[key(classID, date)]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, classID, start, end string, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.table {
		if rec.ClassID != classID {
			continue
		}
		if start != "" && rec.Date < start {
			continue
		}
		if end != "" && rec.Date > end {
			continue
		}
		records = append(records, *rec)
	}
	// most recent first; ISO dates sort lexicographically
	sort.Slice(records, func(i, j int) bool { return records[i].Date > records[j].Date })
	return records, nil
}
