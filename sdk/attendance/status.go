// Package attendance implements the attendance-marking session used by the
// teacher portal: one session per class and date, holding the editable draft
// and its lifecycle.
package attendance

// Status is a per-student attendance status as shown on screen. The server
// only accepts present, absent and leave; late exists client-side and is
// folded by a StatusPolicy before transmission.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLeave   Status = "leave"
	StatusLate    Status = "late"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLeave, StatusLate:
		return true
	}
	return false
}

// accepted reports whether the server accepts this status as-is.
func (s Status) accepted() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLeave:
		return true
	}
	return false
}

// StatusPolicy normalizes a displayed status into one the server accepts.
type StatusPolicy func(Status) Status

// DefaultStatusPolicy folds late into present; school policies that treat
// lateness differently can swap this out.
func DefaultStatusPolicy(s Status) Status {
	if s == StatusLate {
		return StatusPresent
	}
	return s
}
