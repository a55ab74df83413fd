package attendance

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Status is a per-student attendance status. The accepted set is closed;
// anything else is rejected at the boundary.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLeave   Status = "leave"
)

var AcceptedStatuses = []Status{StatusPresent, StatusAbsent, StatusLeave}

func (s Status) IsValid() bool {
	for _, st := range AcceptedStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// DateLayout is the calendar-date wire format (day granularity, no time component).
const DateLayout = "2006-01-02"

// Entry is one student's status within a Record.
type Entry struct {
	StudentID string `json:"student_id"`
	Status    Status `json:"status"`
}

// Record is the persisted set of per-student statuses for one class on one
// calendar date. At most one Record exists per (class, date); it is
// write-once from the client's perspective.
type Record struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	MarkedBy  string    `json:"marked_by,omitempty"`
	Entries   []Entry   `json:"students"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// DaySummary is a per-day aggregation of a class's statuses.
type DaySummary struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Leave   int    `json:"leave"`
}

// SubmitAttendance is a bulk roll-call submission for one class and date.
// It must cover the class roster exactly.
type SubmitAttendance struct {
	Date     string        `json:"date" validate:"required,isodate"`
	Students []SubmitEntry `json:"students" validate:"required,min=1,dive"`
}

type SubmitEntry struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	Status    Status `json:"status" validate:"required,attstatus"`
}

func (sa *SubmitAttendance) Validate(validate *validator.Validate) error {
	sa.Date = core.CleanString(sa.Date)
	return validate.Struct(sa)
}

// HistoryFilter bounds a history query; zero values mean unbounded.
type HistoryFilter struct {
	Start string `query:"start" json:"start" validate:"omitempty,isodate"`
	End   string `query:"end" json:"end" validate:"omitempty,isodate"`
}

func (hf *HistoryFilter) Validate(validate *validator.Validate) error {
	hf.Start = core.CleanString(hf.Start)
	hf.End = core.CleanString(hf.End)
	return validate.Struct(hf)
}

var (
	statusTag  = "attstatus"
	statusText = "must be one of present, absent or leave"
)

// InitValidators registers attendance validators on the given validator instance.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).IsValid()
}
