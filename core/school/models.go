package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Class is a class section; students belong to exactly one Class and a
// teacher may be assigned to it as homeroom teacher.
type Class struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Grade             string    `json:"grade"`
	HomeroomTeacherID string    `json:"homeroom_teacher_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
}

type Student struct {
	ID            string    `json:"id"`
	ClassID       string    `json:"class_id"`
	Name          string    `json:"name"`
	RollNo        int       `json:"roll_no"`
	GuardianEmail string    `json:"guardian_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

type Subject struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	TeacherID string    `json:"teacher_id,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Roster is a class's students ordered by roll number.
type Roster struct {
	Class    Class     `json:"class"`
	Students []Student `json:"students"`
}

type NewClass struct {
	Name              string `json:"name" validate:"required"`
	Grade             string `json:"grade" validate:"required"`
	HomeroomTeacherID string `json:"homeroom_teacher_id" validate:"omitempty,uuid4"`
}

func (nc *NewClass) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Grade = core.CleanString(nc.Grade)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckClassUniqueness(nc.Name)
}

type UpdateClass struct {
	Name              string `json:"name"`
	Grade             string `json:"grade"`
	HomeroomTeacherID string `json:"homeroom_teacher_id" validate:"omitempty,uuid4"`
}

func (uc *UpdateClass) Validate(orig Class, validate *validator.Validate, svc ServiceInterface) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if grade := core.CleanString(uc.Grade); grade != "" {
		uc.Grade = grade
	} else {
		uc.Grade = orig.Grade
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckClassUniqueness(uc.Name, orig)
}

type NewStudent struct {
	ClassID       string `json:"class_id" validate:"required,uuid4"`
	Name          string `json:"name" validate:"required"`
	RollNo        int    `json:"roll_no" validate:"required,min=1"`
	GuardianEmail string `json:"guardian_email" validate:"omitempty,email"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
	return validate.Struct(ns)
}

type UpdateStudent struct {
	ClassID       string `json:"class_id" validate:"omitempty,uuid4"`
	Name          string `json:"name"`
	RollNo        int    `json:"roll_no" validate:"omitempty,min=1"`
	GuardianEmail string `json:"guardian_email" validate:"omitempty,email"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if email := core.CleanString(us.GuardianEmail, true /* lower */); email != "" {
		us.GuardianEmail = email
	} else {
		us.GuardianEmail = orig.GuardianEmail
	}
	if us.ClassID == "" {
		us.ClassID = orig.ClassID
	}
	if us.RollNo == 0 {
		us.RollNo = orig.RollNo
	}
	return validate.Struct(us)
}

type NewSubject struct {
	ClassID   string `json:"class_id" validate:"required,uuid4"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid4"`
	Name      string `json:"name" validate:"required"`
	Code      string `json:"code" validate:"required,alphanum_"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	return validate.Struct(ns)
}

type UpdateSubject struct {
	ClassID   string `json:"class_id" validate:"omitempty,uuid4"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid4"`
	Name      string `json:"name"`
	Code      string `json:"code" validate:"omitempty,alphanum_"`
}

func (us *UpdateSubject) Validate(orig Subject, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if code := core.CleanString(us.Code, true /* lower */); code != "" {
		us.Code = code
	} else {
		us.Code = orig.Code
	}
	if us.ClassID == "" {
		us.ClassID = orig.ClassID
	}
	if us.TeacherID == "" {
		us.TeacherID = orig.TeacherID
	}
	return validate.Struct(us)
}

// StudentQueryFilter applies an AND operation on available fields.
// Search does a case-insensitive match on Student.Name.
type StudentQueryFilter struct {
	Search  string `query:"search"`
	ClassID string `query:"class_id"`
	Grade   string `query:"grade"`
}

func (qf *StudentQueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Grade = core.CleanString(qf.Grade)
}
