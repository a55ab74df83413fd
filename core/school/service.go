package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrClassNotFound   = errors.New("class not found")
	ErrClassExists     = errors.New("a class with this name already exists")
	ErrStudentNotFound = errors.New("student not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrNoHomeroom      = errors.New("no class assigned")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		GetClassByHomeroomTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) (Class, error)
		CheckClassUniqueness(ctx context.Context, name string, excludedClasses []Class, exec ...core.DBExecutor) error
		UpdateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		DeleteClassesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentQueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// GetClassRoster returns a class's students ordered by roll number.
		GetClassRoster(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		// QuerySubjects returns a class's subjects; an empty classID returns all.
		QuerySubjects(ctx context.Context, classID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		UpdateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		DeleteSubjectsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		CreateClass(nc NewClass) (Class, error)
		QueryClasses() ([]Class, error)
		GetClassByID(id string) (Class, error)
		GetHomeroomClass(teacherID string) (Class, error)
		CheckClassUniqueness(name string, exclClasses ...Class) error
		UpdateClass(id string, uc UpdateClass) (Class, error)
		DeleteClasses(ids ...string) error

		CreateStudent(ns NewStudent) (Student, error)
		QueryStudents(filter *StudentQueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudentByID(id string) (Student, error)
		GetRoster(classID string) (Roster, error)
		UpdateStudent(id string, us UpdateStudent) (Student, error)
		DeleteStudents(ids ...string) error

		CreateSubject(ns NewSubject) (Subject, error)
		QuerySubjects(classID string) ([]Subject, error)
		GetSubjectByID(id string) (Subject, error)
		UpdateSubject(id string, us UpdateSubject) (Subject, error)
		DeleteSubjects(ids ...string) error
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository) ServiceInterface {
	return &service{db: db, repo: repo}
}

// Classes

func (svc *service) CreateClass(nc NewClass) (Class, error) {
	now := time.Now().UTC()
	cls := Class{
		Name:              nc.Name,
		Grade:             nc.Grade,
		HomeroomTeacherID: nc.HomeroomTeacherID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.CreateClass(context.Background(), cls)
}

func (svc *service) QueryClasses() ([]Class, error) {
	ordering := []core.DBOrdering{{Field: "grade", Ascending: true}, {Field: "name", Ascending: true}}
	return svc.repo.QueryClasses(context.Background(), ordering)
}

func (svc *service) GetClassByID(id string) (Class, error) {
	return svc.repo.GetClass(context.Background(), id)
}

// GetHomeroomClass resolves "the teacher's class"; ErrNoHomeroom when the
// teacher has no homeroom assignment.
func (svc *service) GetHomeroomClass(teacherID string) (Class, error) {
	cls, err := svc.repo.GetClassByHomeroomTeacher(context.Background(), teacherID)
	if err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return Class{}, ErrNoHomeroom
		}
		return Class{}, err
	}
	return cls, nil
}

func (svc *service) CheckClassUniqueness(name string, exclClasses ...Class) error {
	err := svc.repo.CheckClassUniqueness(context.Background(), name, exclClasses)
	if err != nil {
		if errors.Cause(err) == ErrClassExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) UpdateClass(id string, uc UpdateClass) (Class, error) {
	cls := Class{
		ID:                id,
		Name:              uc.Name,
		Grade:             uc.Grade,
		HomeroomTeacherID: uc.HomeroomTeacherID,
		UpdatedAt:         time.Now().UTC(),
	}
	return svc.repo.UpdateClass(context.Background(), cls)
}

func (svc *service) DeleteClasses(ids ...string) error {
	return svc.repo.DeleteClassesByID(context.Background(), ids)
}

// Students

func (svc *service) CreateStudent(ns NewStudent) (Student, error) {
	ctx := context.Background()
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Student{}, err
	}
	now := time.Now().UTC()
	std := Student{
		ClassID:       ns.ClassID,
		Name:          ns.Name,
		RollNo:        ns.RollNo,
		GuardianEmail: ns.GuardianEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) QueryStudents(filter *StudentQueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "roll_no", Ascending: true}}
	}
	return svc.repo.QueryStudents(context.Background(), filter, ordering)
}

func (svc *service) GetStudentByID(id string) (Student, error) {
	return svc.repo.GetStudent(context.Background(), id)
}

func (svc *service) GetRoster(classID string) (Roster, error) {
	ctx := context.Background()
	cls, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return Roster{}, err
	}
	students, err := svc.repo.GetClassRoster(ctx, classID)
	if err != nil {
		return Roster{}, err
	}
	return Roster{Class: cls, Students: students}, nil
}

func (svc *service) UpdateStudent(id string, us UpdateStudent) (Student, error) {
	std := Student{
		ID:            id,
		ClassID:       us.ClassID,
		Name:          us.Name,
		RollNo:        us.RollNo,
		GuardianEmail: us.GuardianEmail,
		UpdatedAt:     time.Now().UTC(),
	}
	return svc.repo.UpdateStudent(context.Background(), std)
}

func (svc *service) DeleteStudents(ids ...string) error {
	return svc.repo.DeleteStudentsByID(context.Background(), ids)
}

// Subjects

func (svc *service) CreateSubject(ns NewSubject) (Subject, error) {
	ctx := context.Background()
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return Subject{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Subject{}, err
	}
	now := time.Now().UTC()
	sub := Subject{
		ClassID:   ns.ClassID,
		TeacherID: ns.TeacherID,
		Name:      ns.Name,
		Code:      ns.Code,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *service) QuerySubjects(classID string) ([]Subject, error) {
	ordering := []core.DBOrdering{{Field: "name", Ascending: true}}
	return svc.repo.QuerySubjects(context.Background(), classID, ordering)
}

func (svc *service) GetSubjectByID(id string) (Subject, error) {
	return svc.repo.GetSubject(context.Background(), id)
}

func (svc *service) UpdateSubject(id string, us UpdateSubject) (Subject, error) {
	sub := Subject{
		ID:        id,
		ClassID:   us.ClassID,
		TeacherID: us.TeacherID,
		Name:      us.Name,
		Code:      us.Code,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateSubject(context.Background(), sub)
}

func (svc *service) DeleteSubjects(ids ...string) error {
	return svc.repo.DeleteSubjectsByID(context.Background(), ids)
}
