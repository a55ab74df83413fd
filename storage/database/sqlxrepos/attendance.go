package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

type (
	// dbAttendance mirrors the "attendance" table.
	dbAttendance struct {
		ID        string      `db:"id"`
		ClassID   string      `db:"class_id"`
		Date      time.Time   `db:"date"`
		MarkedBy  null.String `db:"marked_by"`
		CreatedAt null.Time   `db:"created_at"`
	}

	// dbAttendanceEntry mirrors the "attendance_entry" table.
	dbAttendanceEntry struct {
		ID           string `db:"id"`
		AttendanceID string `db:"attendance_id"`
		StudentID    string `db:"student_id"`
		Status       string `db:"status"`
	}
)

type attendanceRepository struct {
	db core.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db core.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo attendanceRepository) unpack(a dbAttendance, entries []dbAttendanceEntry) attendance.Record {
	rec := attendance.Record{
		ID:        a.ID,
		ClassID:   a.ClassID,
		Date:      a.Date.Format(attendance.DateLayout),
		MarkedBy:  a.MarkedBy.String,
		Entries:   make([]attendance.Entry, 0, len(entries)),
		CreatedAt: a.CreatedAt.Time,
	}
	for _, ent := range entries {
		rec.Entries = append(rec.Entries, attendance.Entry{
			StudentID: ent.StudentID,
			Status:    attendance.Status(ent.Status),
		})
	}
	return rec
}

// CreateRecord inserts the record and its entries in a single transaction.
func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	date, err := time.Parse(attendance.DateLayout, rec.Date)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "parsing attendance date")
	}

	rec.ID = uuid.New().String()
	a := dbAttendance{
		ID:        rec.ID,
		ClassID:   rec.ClassID,
		Date:      date,
		MarkedBy:  null.NewString(rec.MarkedBy, rec.MarkedBy != ""),
		CreatedAt: null.NewTime(rec.CreatedAt.UTC(), !rec.CreatedAt.IsZero()),
	}

	insert := func(exe core.DBExecutor) error {
		q := `
INSERT INTO attendance (id, class_id, date, marked_by, created_at)
VALUES (:id, :class_id, :date, :marked_by, :created_at)`
		if _, err := sqlxNamedExec(ctx, exe, q, a); err != nil {
			if isUniqueViolation(err) {
				return attendance.ErrAlreadyMarked
			}
			return errors.Wrap(err, "inserting attendance record")
		}
		for _, ent := range rec.Entries {
			e := dbAttendanceEntry{
				ID:           uuid.New().String(),
				AttendanceID: rec.ID,
				StudentID:    ent.StudentID,
				Status:       string(ent.Status),
			}
			q = `
INSERT INTO attendance_entry (id, attendance_id, student_id, status)
VALUES (:id, :attendance_id, :student_id, :status)`
			if _, err := sqlxNamedExec(ctx, exe, q, e); err != nil {
				return errors.Wrap(err, "inserting attendance entry")
			}
		}
		return nil
	}

	// reuse the caller's transaction when one is provided
	if len(exec) > 0 {
		if err = insert(exec[0]); err != nil {
			return attendance.Record{}, err
		}
		return rec, nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "beginning transaction")
	}
	if err = insert(tx); err != nil {
		_ = tx.Rollback()
		return attendance.Record{}, err
	}
	if err = tx.Commit(); err != nil {
		return attendance.Record{}, errors.Wrap(err, "committing transaction")
	}
	return rec, nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, classID, date string, exec ...core.DBExecutor) (attendance.Record, error) {
	exe := repo.getExec(exec)

	var a dbAttendance
	q := `SELECT * FROM attendance WHERE class_id = $1 AND date = $2`
	if err := exe.GetContext(ctx, &a, q, classID, date); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "finding attendance record")
	}

	var entries []dbAttendanceEntry
	q = `
SELECT e.* FROM attendance_entry e
JOIN student s ON s.id = e.student_id
WHERE e.attendance_id = $1
ORDER BY s.roll_no ASC`
	if err := exe.SelectContext(ctx, &entries, q, a.ID); err != nil {
		return attendance.Record{}, errors.Wrap(err, "querying attendance entries")
	}
	return repo.unpack(a, entries), nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, classID, start, end string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	exe := repo.getExec(exec)

	q := `SELECT * FROM attendance WHERE class_id = $1`
	args := []interface{}{classID}
	if start != "" {
		args = append(args, start)
		q += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if end != "" {
		args = append(args, end)
		q += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	q += ` ORDER BY date DESC`

	var records []dbAttendance
	if err := exe.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	if len(records) == 0 {
		return []attendance.Record{}, nil
	}

	ids := make([]string, 0, len(records))
	for _, a := range records {
		ids = append(ids, a.ID)
	}
	var entries []dbAttendanceEntry
	eq := `
SELECT e.* FROM attendance_entry e
JOIN student s ON s.id = e.student_id
WHERE e.attendance_id = ANY($1)
ORDER BY s.roll_no ASC`
	if err := exe.SelectContext(ctx, &entries, eq, pq.StringArray(ids)); err != nil {
		return nil, errors.Wrap(err, "querying attendance entries")
	}
	byRecord := make(map[string][]dbAttendanceEntry, len(records))
	for _, ent := range entries {
		byRecord[ent.AttendanceID] = append(byRecord[ent.AttendanceID], ent)
	}

	res := make([]attendance.Record, 0, len(records))
	for _, a := range records {
		res = append(res, repo.unpack(a, byRecord[a.ID]))
	}
	return res, nil
}
