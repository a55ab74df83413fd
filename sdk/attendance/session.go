package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/sdk"
)

var (
	// errors
	ErrNoRoster       = errors.New("roster unavailable")
	ErrLocked         = errors.New("attendance already recorded for this date")
	ErrSubmitting     = errors.New("submission in progress")
	ErrFutureDate     = errors.New("cannot mark attendance for a future date")
	ErrUnknownStudent = errors.New("student not in roster")
	ErrInvalidStatus  = errors.New("invalid attendance status")
)

// mockable for tests
var nowFunc = time.Now

// DateLayout is the wire format for attendance dates.
const DateLayout = "2006-01-02"

// State is a session's lifecycle state.
type State int

const (
	// StateLoading: roster and existing record are being fetched; no edits.
	StateLoading State = iota
	// StateUnlockedDraft: no record exists for the date; the draft is editable.
	StateUnlockedDraft
	// StateLockedView: a record exists; statuses are shown read-only.
	StateLockedView
	// StateSubmitting: a submission is in flight; no edits.
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnlockedDraft:
		return "unlocked"
	case StateLockedView:
		return "locked"
	case StateSubmitting:
		return "submitting"
	}
	return "unknown"
}

// Entry is one student's draft status, in roster order.
type Entry struct {
	StudentID string
	Name      string
	RollNo    int
	Status    Status
}

// API is the server surface a Session needs; satisfied by *sdk.Client.
type API interface {
	Roster(ctx context.Context, classID string) (sdk.Roster, error)
	Attendance(ctx context.Context, classID, date string) (sdk.AttendanceRecord, error)
	MarkAttendance(ctx context.Context, classID string, sa sdk.SubmitAttendance) (sdk.AttendanceRecord, error)
	AttendanceHistory(ctx context.Context, classID, start, end string) ([]sdk.DaySummary, error)
}

// Session drives the roll-call screen for one class: it loads the roster and
// any existing record for the selected date, holds the editable draft and
// submits it. All methods are safe for concurrent use.
type Session struct {
	api     API
	classID string
	policy  StatusPolicy

	mu      sync.Mutex
	date    string
	state   State
	roster  []sdk.RosterEntry
	entries []Entry
	gen     uint64 // bumped on every date change; stale responses are discarded
	cancel  context.CancelFunc
}

// NewSession creates a session for a class on the given date (YYYY-MM-DD).
// A nil policy defaults to DefaultStatusPolicy. Call Load before reading state.
func NewSession(api API, classID, date string, policy StatusPolicy) *Session {
	if policy == nil {
		policy = DefaultStatusPolicy
	}
	return &Session{
		api:     api,
		classID: classID,
		policy:  policy,
		date:    date,
		state:   StateLoading,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Date returns the currently selected date.
func (s *Session) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Entries returns a copy of the draft in roster order.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// Load fetches the roster and any existing record for the selected date and
// initializes the draft. A missing or empty record, or a failed record
// lookup, yields an editable all-present draft; only a missing roster is
// fatal.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.state = StateLoading
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	date := s.date
	s.mu.Unlock()

	type rosterRes struct {
		roster sdk.Roster
		err    error
	}
	type recordRes struct {
		rec sdk.AttendanceRecord
		err error
	}
	rosterCh := make(chan rosterRes, 1)
	recordCh := make(chan recordRes, 1)

	go func() {
		roster, err := s.api.Roster(ctx, s.classID)
		rosterCh <- rosterRes{roster, err}
	}()
	go func() {
		rec, err := s.api.Attendance(ctx, s.classID, date)
		recordCh <- recordRes{rec, err}
	}()

	rr := <-rosterCh
	cr := <-recordCh

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil // superseded by a later SelectDate
	}

	if rr.err != nil {
		s.roster = nil
		s.entries = nil
		s.state = StateUnlockedDraft
		return errors.Wrap(ErrNoRoster, rr.err.Error())
	}
	s.roster = rr.roster.Students

	if cr.err == nil && len(cr.rec.Students) > 0 {
		s.entries = mergeRecord(s.roster, cr.rec)
		s.state = StateLockedView
		return nil
	}
	// record missing, empty or lookup failed: fail open with an editable draft
	s.entries = freshDraft(s.roster)
	s.state = StateUnlockedDraft
	return nil
}

// SelectDate switches the session to another date and reloads. Any in-flight
// request for the previous date is cancelled and its response discarded.
func (s *Session) SelectDate(ctx context.Context, date string) error {
	s.mu.Lock()
	s.gen++
	s.date = date
	s.mu.Unlock()
	return s.Load(ctx)
}

// SetStatus updates one student's draft status. Only valid while the draft is
// unlocked; late is accepted here and folded at submission time.
func (s *Session) SetStatus(studentID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUnlockedDraft: // pass
	case StateSubmitting:
		return ErrSubmitting
	default:
		return ErrLocked
	}
	if !status.IsValid() {
		return errors.Wrapf(ErrInvalidStatus, "%q", status)
	}
	for i := range s.entries {
		if s.entries[i].StudentID == studentID {
			s.entries[i].Status = status
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownStudent, "%q", studentID)
}

// Submit sends the draft as a bulk roll call. The date gate runs before any
// network traffic: a future date never leaves the client. On failure the
// draft stays editable for a manual retry; on success the session locks.
func (s *Session) Submit(ctx context.Context) (sdk.AttendanceRecord, error) {
	s.mu.Lock()
	switch s.state {
	case StateUnlockedDraft: // pass
	case StateSubmitting:
		s.mu.Unlock()
		return sdk.AttendanceRecord{}, ErrSubmitting
	default:
		s.mu.Unlock()
		return sdk.AttendanceRecord{}, ErrLocked
	}
	if len(s.roster) == 0 {
		s.mu.Unlock()
		return sdk.AttendanceRecord{}, ErrNoRoster
	}

	date, err := time.Parse(DateLayout, s.date)
	if err != nil {
		s.mu.Unlock()
		return sdk.AttendanceRecord{}, errors.Wrap(err, "parsing date")
	}
	// "today" is the calendar date on the marker's clock, not UTC
	now := nowFunc()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.After(today) {
		s.mu.Unlock()
		return sdk.AttendanceRecord{}, ErrFutureDate
	}

	// draft covers the roster exactly; normalize statuses for the wire
	sa := sdk.SubmitAttendance{
		Date:     s.date,
		Students: make([]sdk.AttendanceEntry, len(s.entries)),
	}
	for i, e := range s.entries {
		sa.Students[i] = sdk.AttendanceEntry{
			StudentID: e.StudentID,
			Status:    string(s.policy(e.Status)),
		}
	}
	gen := s.gen
	s.state = StateSubmitting
	s.mu.Unlock()

	rec, err := s.api.MarkAttendance(ctx, s.classID, sa)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return sdk.AttendanceRecord{}, nil // superseded by a later SelectDate
	}
	if err != nil {
		s.state = StateUnlockedDraft
		return sdk.AttendanceRecord{}, err
	}
	for i := range s.entries {
		s.entries[i].Status = Status(sa.Students[i].Status)
	}
	s.state = StateLockedView
	return rec, nil
}

// History returns the class's per-day summaries, most recent first.
func (s *Session) History(ctx context.Context, start, end string) ([]sdk.DaySummary, error) {
	return s.api.AttendanceHistory(ctx, s.classID, start, end)
}

// freshDraft defaults every student to present.
func freshDraft(roster []sdk.RosterEntry) []Entry {
	entries := make([]Entry, len(roster))
	for i, st := range roster {
		entries[i] = Entry{
			StudentID: st.StudentID,
			Name:      st.Name,
			RollNo:    st.RollNo,
			Status:    StatusPresent,
		}
	}
	return entries
}

// mergeRecord overlays a recorded day onto the roster, in roster order.
// Record entries for students no longer in the roster are dropped; students
// missing from the record, or with an unknown status, show as present.
func mergeRecord(roster []sdk.RosterEntry, rec sdk.AttendanceRecord) []Entry {
	byStudent := make(map[string]Status, len(rec.Students))
	for _, e := range rec.Students {
		byStudent[e.StudentID] = Status(e.Status)
	}
	entries := freshDraft(roster)
	for i := range entries {
		if status, ok := byStudent[entries[i].StudentID]; ok && status.accepted() {
			entries[i].Status = status
		}
	}
	return entries
}
