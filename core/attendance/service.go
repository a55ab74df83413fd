package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

var (
	// errors
	ErrNotFound      = errors.New("attendance record not found")
	ErrAlreadyMarked = errors.New("attendance already recorded for this date")
	ErrFutureDate    = errors.New("attendance cannot be recorded for a future date")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateRecord persists a Record and its entries atomically;
		// ErrAlreadyMarked when a record already exists for (ClassID, Date).
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, classID, date string, exec ...core.DBExecutor) (Record, error)
		// QueryRecords returns a class's records within [start, end] (zero
		// values unbounded), most recent first, entries included.
		QueryRecords(ctx context.Context, classID, start, end string, exec ...core.DBExecutor) ([]Record, error)
	}

	ServiceInterface interface {
		// Get returns the Record for (classID, date); ErrNotFound if the day
		// has not been marked yet.
		Get(classID, date string) (Record, error)
		// Mark validates and persists a bulk submission for (classID, sa.Date).
		Mark(classID, markedBy string, sa SubmitAttendance) (Record, error)
		// History returns per-day summaries for a class, most recent first.
		History(classID string, filter HistoryFilter) ([]DaySummary, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		schoolSvc school.ServiceInterface
		mailSvc   core.EmailService
		notify    func(school.Roster, Record)
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, schoolSvc school.ServiceInterface, mailSvc core.EmailService) ServiceInterface {
	svc := &service{
		db:        db,
		repo:      repo,
		schoolSvc: schoolSvc,
		mailSvc:   mailSvc,
	}
	svc.notify = func(roster school.Roster, rec Record) { go svc.sendAbsenceNotices(roster, rec) }
	return svc
}

func (svc *service) Get(classID, date string) (Record, error) {
	return svc.repo.GetRecord(context.Background(), classID, date)
}

func (svc *service) Mark(classID, markedBy string, sa SubmitAttendance) (Record, error) {
	date, err := time.Parse(DateLayout, sa.Date)
	if err != nil {
		return Record{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
	}

	// no future-dated attendance; the client gates this too but the server is
	// the source of truth. "today" is the calendar date on the server's
	// clock, not UTC, so a zone ahead of UTC can mark its own morning.
	now := NowFunc()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.After(today) {
		return Record{}, core.NewValidationError(ErrFutureDate, core.FieldError{Field: "date", Error: ErrFutureDate.Error()})
	}

	roster, err := svc.schoolSvc.GetRoster(classID)
	if err != nil {
		return Record{}, errors.Wrap(err, "loading class roster")
	}

	// the submission must cover the roster exactly: no omissions, no
	// duplicates, no unknown students
	rosterIdx := make(map[string]int, len(roster.Students))
	for i, std := range roster.Students {
		rosterIdx[std.ID] = i
	}
	seen := make(map[string]bool, len(sa.Students))
	entries := make([]Entry, len(roster.Students))
	for _, se := range sa.Students {
		i, ok := rosterIdx[se.StudentID]
		if !ok {
			return Record{}, core.NewValidationError(nil, core.FieldError{
				Field: "students", Error: fmt.Sprintf("student %s is not in this class", se.StudentID)})
		}
		if seen[se.StudentID] {
			return Record{}, core.NewValidationError(nil, core.FieldError{
				Field: "students", Error: fmt.Sprintf("duplicate entry for student %s", se.StudentID)})
		}
		seen[se.StudentID] = true
		entries[i] = Entry{StudentID: se.StudentID, Status: se.Status}
	}
	if len(seen) != len(roster.Students) {
		return Record{}, core.NewValidationError(nil, core.FieldError{
			Field: "students", Error: "every student in the class must have an entry"})
	}

	rec := Record{
		ClassID:   classID,
		Date:      sa.Date,
		MarkedBy:  markedBy,
		Entries:   entries, // roster order
		CreatedAt: time.Now().UTC(),
	}
	rec, err = svc.repo.CreateRecord(context.Background(), rec)
	if err != nil {
		return Record{}, err
	}

	svc.notify(roster, rec)
	return rec, nil
}

// sendAbsenceNotices emails guardians of students marked absent.
func (svc *service) sendAbsenceNotices(roster school.Roster, rec Record) {
	byID := make(map[string]school.Student, len(roster.Students))
	for _, std := range roster.Students {
		byID[std.ID] = std
	}

	msgs := make([]*core.EmailMessage, 0)
	for _, ent := range rec.Entries {
		if ent.Status != StatusAbsent {
			continue
		}
		std, ok := byID[ent.StudentID]
		if !ok || std.GuardianEmail == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{{Address: std.GuardianEmail}},
			Subject: fmt.Sprintf("Absence notice - %s", rec.Date),
			BodyStr: fmt.Sprintf(
				"%s was marked absent in %s on %s.\n\n"+
					"If this is unexpected, please contact the school.",
				std.Name, roster.Class.Name, rec.Date,
			),
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *service) History(classID string, filter HistoryFilter) ([]DaySummary, error) {
	// existence check so a bad class id is a 404, not an empty history
	if _, err := svc.schoolSvc.GetClassByID(classID); err != nil {
		return nil, err
	}

	recs, err := svc.repo.QueryRecords(context.Background(), classID, filter.Start, filter.End)
	if err != nil {
		return nil, err
	}

	summaries := make([]DaySummary, 0, len(recs))
	for _, rec := range recs {
		sum := DaySummary{Date: rec.Date}
		for _, ent := range rec.Entries {
			switch ent.Status {
			case StatusPresent:
				sum.Present++
			case StatusAbsent:
				sum.Absent++
			case StatusLeave:
				sum.Leave++
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}
