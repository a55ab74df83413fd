package sdk

import (
	"bytes"
	"encoding/json"
)

type Class struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Grade             string `json:"grade"`
	HomeroomTeacherID string `json:"homeroom_teacher_id,omitempty"`
}

// RosterEntry is one student of a class roster, normalized at the decode
// boundary; older deployments emit `rollNo` and a flat student list.
type RosterEntry struct {
	StudentID string
	Name      string
	RollNo    int
}

func (e *RosterEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        string `json:"id"`
		StudentID string `json:"student_id"`
		Name      string `json:"name"`
		RollNo    *int   `json:"roll_no"`
		RollNoAlt *int   `json:"rollNo"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.StudentID = raw.StudentID
	if e.StudentID == "" {
		e.StudentID = raw.ID
	}
	e.Name = raw.Name
	if raw.RollNo != nil {
		e.RollNo = *raw.RollNo
	} else if raw.RollNoAlt != nil {
		e.RollNo = *raw.RollNoAlt
	}
	return nil
}

// Roster is a class's students in roster order (roll number asc).
type Roster struct {
	Class    Class
	Students []RosterEntry
}

func (r *Roster) UnmarshalJSON(b []byte) error {
	// a flat student list is accepted alongside the class-wrapped form
	if trimmed := bytes.TrimLeft(b, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(b, &r.Students)
	}
	var raw struct {
		Class    Class         `json:"class"`
		Students []RosterEntry `json:"students"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Class = raw.Class
	r.Students = raw.Students
	return nil
}

type AttendanceEntry struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

type AttendanceRecord struct {
	ID       string            `json:"id"`
	ClassID  string            `json:"class_id"`
	Date     string            `json:"date"` // YYYY-MM-DD
	MarkedBy string            `json:"marked_by,omitempty"`
	Students []AttendanceEntry `json:"students"`
}

type SubmitAttendance struct {
	Date     string            `json:"date"`
	Students []AttendanceEntry `json:"students"`
}

type DaySummary struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Leave   int    `json:"leave"`
}
