package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

type (
	// dbClass mirrors the "class" table.
	dbClass struct {
		ID                string      `db:"id"`
		Name              string      `db:"name"`
		Grade             string      `db:"grade"`
		HomeroomTeacherID null.String `db:"homeroom_teacher_id"`
		CreatedAt         null.Time   `db:"created_at"`
		UpdatedAt         null.Time   `db:"updated_at"`
	}

	// dbStudent mirrors the "student" table.
	dbStudent struct {
		ID            string      `db:"id"`
		ClassID       string      `db:"class_id"`
		Name          string      `db:"name"`
		RollNo        int         `db:"roll_no"`
		GuardianEmail null.String `db:"guardian_email"`
		CreatedAt     null.Time   `db:"created_at"`
		UpdatedAt     null.Time   `db:"updated_at"`
	}

	// dbSubject mirrors the "subject" table.
	dbSubject struct {
		ID        string      `db:"id"`
		ClassID   string      `db:"class_id"`
		TeacherID null.String `db:"teacher_id"`
		Name      string      `db:"name"`
		Code      string      `db:"code"`
		CreatedAt null.Time   `db:"created_at"`
		UpdatedAt null.Time   `db:"updated_at"`
	}
)

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

func (repo schoolRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo schoolRepository) packClass(cls school.Class) dbClass {
	return dbClass{
		ID:                cls.ID,
		Name:              cls.Name,
		Grade:             cls.Grade,
		HomeroomTeacherID: null.NewString(cls.HomeroomTeacherID, cls.HomeroomTeacherID != ""),
		CreatedAt:         null.NewTime(cls.CreatedAt.UTC(), !cls.CreatedAt.IsZero()),
		UpdatedAt:         null.NewTime(cls.UpdatedAt.UTC(), !cls.UpdatedAt.IsZero()),
	}
}

func (repo schoolRepository) unpackClass(c dbClass) school.Class {
	return school.Class{
		ID:                c.ID,
		Name:              c.Name,
		Grade:             c.Grade,
		HomeroomTeacherID: c.HomeroomTeacherID.String,
		CreatedAt:         c.CreatedAt.Time,
		UpdatedAt:         c.UpdatedAt.Time,
	}
}

func (repo schoolRepository) packStudent(std school.Student) dbStudent {
	return dbStudent{
		ID:            std.ID,
		ClassID:       std.ClassID,
		Name:          std.Name,
		RollNo:        std.RollNo,
		GuardianEmail: null.NewString(std.GuardianEmail, std.GuardianEmail != ""),
		CreatedAt:     null.NewTime(std.CreatedAt.UTC(), !std.CreatedAt.IsZero()),
		UpdatedAt:     null.NewTime(std.UpdatedAt.UTC(), !std.UpdatedAt.IsZero()),
	}
}

func (repo schoolRepository) unpackStudent(s dbStudent) school.Student {
	return school.Student{
		ID:            s.ID,
		ClassID:       s.ClassID,
		Name:          s.Name,
		RollNo:        s.RollNo,
		GuardianEmail: s.GuardianEmail.String,
		CreatedAt:     s.CreatedAt.Time,
		UpdatedAt:     s.UpdatedAt.Time,
	}
}

func (repo schoolRepository) packSubject(sub school.Subject) dbSubject {
	return dbSubject{
		ID:        sub.ID,
		ClassID:   sub.ClassID,
		TeacherID: null.NewString(sub.TeacherID, sub.TeacherID != ""),
		Name:      sub.Name,
		Code:      sub.Code,
		CreatedAt: null.NewTime(sub.CreatedAt.UTC(), !sub.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(sub.UpdatedAt.UTC(), !sub.UpdatedAt.IsZero()),
	}
}

func (repo schoolRepository) unpackSubject(s dbSubject) school.Subject {
	return school.Subject{
		ID:        s.ID,
		ClassID:   s.ClassID,
		TeacherID: s.TeacherID.String,
		Name:      s.Name,
		Code:      s.Code,
		CreatedAt: s.CreatedAt.Time,
		UpdatedAt: s.UpdatedAt.Time,
	}
}

// Classes

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class, exec ...core.DBExecutor) (school.Class, error) {
	cls.ID = uuid.New().String()
	c := repo.packClass(cls)
	q := `
INSERT INTO class (id, name, grade, homeroom_teacher_id, created_at, updated_at)
VALUES (:id, :name, :grade, :homeroom_teacher_id, :created_at, :updated_at)`
	if _, err := sqlxNamedExec(ctx, repo.getExec(exec), q, c); err != nil {
		if isUniqueViolation(err) {
			return school.Class{}, school.ErrClassExists
		}
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return repo.unpackClass(c), nil
}

func (repo schoolRepository) QueryClasses(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.Class, error) {
	q := `SELECT * FROM class` + orderBy(ordering)
	var classes []dbClass
	if err := repo.getExec(exec).SelectContext(ctx, &classes, q); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	res := make([]school.Class, 0, len(classes))
	for _, c := range classes {
		res = append(res, repo.unpackClass(c))
	}
	return res, nil
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Class{}, school.ErrClassNotFound
	}
	var c dbClass
	if err := repo.getExec(exec).GetContext(ctx, &c, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.Class{}, school.ErrClassNotFound
		}
		return school.Class{}, errors.Wrap(err, "finding class")
	}
	return repo.unpackClass(c), nil
}

func (repo schoolRepository) GetClassByHomeroomTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) (school.Class, error) {
	var c dbClass
	err := repo.getExec(exec).GetContext(ctx, &c, `SELECT * FROM class WHERE homeroom_teacher_id = $1`, teacherID)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.Class{}, school.ErrClassNotFound
		}
		return school.Class{}, errors.Wrap(err, "finding class by homeroom teacher")
	}
	return repo.unpackClass(c), nil
}

func (repo schoolRepository) CheckClassUniqueness(ctx context.Context, name string, excludedClasses []school.Class, exec ...core.DBExecutor) error {
	q := `SELECT EXISTS (SELECT 1 FROM class WHERE LOWER(name) = LOWER($1)`
	args := []interface{}{name}
	if len(excludedClasses) > 0 {
		ids := make([]string, 0, len(excludedClasses))
		for _, c := range excludedClasses {
			ids = append(ids, c.ID)
		}
		q += ` AND NOT (id = ANY($2))`
		args = append(args, pq.StringArray(ids))
	}
	q += `)`

	var exists bool
	if err := repo.getExec(exec).GetContext(ctx, &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking class uniqueness")
	}
	if exists {
		return school.ErrClassExists
	}
	return nil
}

func (repo schoolRepository) UpdateClass(ctx context.Context, cls school.Class, exec ...core.DBExecutor) (school.Class, error) {
	orig, err := repo.GetClass(ctx, cls.ID, exec...)
	if err != nil {
		return school.Class{}, err
	}
	if cls.Name == "" {
		cls.Name = orig.Name
	}
	if cls.Grade == "" {
		cls.Grade = orig.Grade
	}
	if cls.HomeroomTeacherID == "" {
		cls.HomeroomTeacherID = orig.HomeroomTeacherID
	}
	if cls.CreatedAt.IsZero() {
		cls.CreatedAt = orig.CreatedAt
	}

	c := repo.packClass(cls)
	q := `
UPDATE class
SET name = :name, grade = :grade, homeroom_teacher_id = :homeroom_teacher_id, updated_at = :updated_at
WHERE id = :id`
	if _, err = sqlxNamedExec(ctx, repo.getExec(exec), q, c); err != nil {
		if isUniqueViolation(err) {
			return school.Class{}, school.ErrClassExists
		}
		return school.Class{}, errors.Wrap(err, "updating class")
	}
	return repo.unpackClass(c), nil
}

func (repo schoolRepository) DeleteClassesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM class WHERE id = ANY($1)`, pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting classes")
	}
	return nil
}

// Students

func (repo schoolRepository) CreateStudent(ctx context.Context, std school.Student, exec ...core.DBExecutor) (school.Student, error) {
	std.ID = uuid.New().String()
	s := repo.packStudent(std)
	q := `
INSERT INTO student (id, class_id, name, roll_no, guardian_email, created_at, updated_at)
VALUES (:id, :class_id, :name, :roll_no, :guardian_email, :created_at, :updated_at)`
	if _, err := sqlxNamedExec(ctx, repo.getExec(exec), q, s); err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.unpackStudent(s), nil
}

func (repo schoolRepository) QueryStudents(ctx context.Context, filter *school.StudentQueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.Student, error) {
	q := `SELECT student.* FROM student`
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Grade != "" {
			q += ` JOIN class ON class.id = student.class_id`
			conds = append(conds, "class.grade = "+arg(filter.Grade))
		}
		if filter.Search != "" {
			conds = append(conds, "student.name ILIKE "+arg("%"+filter.Search+"%"))
		}
		if filter.ClassID != "" {
			conds = append(conds, "student.class_id = "+arg(filter.ClassID))
		}
	}

	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering)

	var students []dbStudent
	if err := repo.getExec(exec).SelectContext(ctx, &students, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	res := make([]school.Student, 0, len(students))
	for _, s := range students {
		res = append(res, repo.unpackStudent(s))
	}
	return res, nil
}

func (repo schoolRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (school.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Student{}, school.ErrStudentNotFound
	}
	var s dbStudent
	if err := repo.getExec(exec).GetContext(ctx, &s, `SELECT * FROM student WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.Student{}, school.ErrStudentNotFound
		}
		return school.Student{}, errors.Wrap(err, "finding student")
	}
	return repo.unpackStudent(s), nil
}

func (repo schoolRepository) GetClassRoster(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Student, error) {
	q := `SELECT * FROM student WHERE class_id = $1 ORDER BY roll_no ASC`
	var students []dbStudent
	if err := repo.getExec(exec).SelectContext(ctx, &students, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying class roster")
	}
	res := make([]school.Student, 0, len(students))
	for _, s := range students {
		res = append(res, repo.unpackStudent(s))
	}
	return res, nil
}

func (repo schoolRepository) UpdateStudent(ctx context.Context, std school.Student, exec ...core.DBExecutor) (school.Student, error) {
	orig, err := repo.GetStudent(ctx, std.ID, exec...)
	if err != nil {
		return school.Student{}, err
	}
	if std.ClassID == "" {
		std.ClassID = orig.ClassID
	}
	if std.Name == "" {
		std.Name = orig.Name
	}
	if std.RollNo == 0 {
		std.RollNo = orig.RollNo
	}
	if std.GuardianEmail == "" {
		std.GuardianEmail = orig.GuardianEmail
	}
	if std.CreatedAt.IsZero() {
		std.CreatedAt = orig.CreatedAt
	}

	s := repo.packStudent(std)
	q := `
UPDATE student
SET class_id = :class_id, name = :name, roll_no = :roll_no, guardian_email = :guardian_email, updated_at = :updated_at
WHERE id = :id`
	if _, err = sqlxNamedExec(ctx, repo.getExec(exec), q, s); err != nil {
		return school.Student{}, errors.Wrap(err, "updating student")
	}
	return repo.unpackStudent(s), nil
}

func (repo schoolRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM student WHERE id = ANY($1)`, pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}

// Subjects

func (repo schoolRepository) CreateSubject(ctx context.Context, sub school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	sub.ID = uuid.New().String()
	s := repo.packSubject(sub)
	q := `
INSERT INTO subject (id, class_id, teacher_id, name, code, created_at, updated_at)
VALUES (:id, :class_id, :teacher_id, :name, :code, :created_at, :updated_at)`
	if _, err := sqlxNamedExec(ctx, repo.getExec(exec), q, s); err != nil {
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return repo.unpackSubject(s), nil
}

func (repo schoolRepository) QuerySubjects(ctx context.Context, classID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.Subject, error) {
	q := `SELECT * FROM subject`
	args := make([]interface{}, 0, 1)
	if classID != "" {
		q += ` WHERE class_id = $1`
		args = append(args, classID)
	}
	q += orderBy(ordering)
	var subjects []dbSubject
	if err := repo.getExec(exec).SelectContext(ctx, &subjects, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	res := make([]school.Subject, 0, len(subjects))
	for _, s := range subjects {
		res = append(res, repo.unpackSubject(s))
	}
	return res, nil
}

func (repo schoolRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (school.Subject, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	var s dbSubject
	if err := repo.getExec(exec).GetContext(ctx, &s, `SELECT * FROM subject WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.Subject{}, school.ErrSubjectNotFound
		}
		return school.Subject{}, errors.Wrap(err, "finding subject")
	}
	return repo.unpackSubject(s), nil
}

func (repo schoolRepository) UpdateSubject(ctx context.Context, sub school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	orig, err := repo.GetSubject(ctx, sub.ID, exec...)
	if err != nil {
		return school.Subject{}, err
	}
	if sub.ClassID == "" {
		sub.ClassID = orig.ClassID
	}
	if sub.TeacherID == "" {
		sub.TeacherID = orig.TeacherID
	}
	if sub.Name == "" {
		sub.Name = orig.Name
	}
	if sub.Code == "" {
		sub.Code = orig.Code
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = orig.CreatedAt
	}

	s := repo.packSubject(sub)
	q := `
UPDATE subject
SET class_id = :class_id, teacher_id = :teacher_id, name = :name, code = :code, updated_at = :updated_at
WHERE id = :id`
	if _, err = sqlxNamedExec(ctx, repo.getExec(exec), q, s); err != nil {
		return school.Subject{}, errors.Wrap(err, "updating subject")
	}
	return repo.unpackSubject(s), nil
}

func (repo schoolRepository) DeleteSubjectsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM subject WHERE id = ANY($1)`, pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting subjects")
	}
	return nil
}
