package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

type schoolRepository struct {
	class   *classTable
	student *studentTable
	subject *subjectTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{
		class:   db.class,
		student: db.student,
		subject: db.subject,
	}
}

// Classes

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.class.Lock()
	defer repo.class.Unlock()

	for _, c := range repo.class.table {
		if strings.EqualFold(c.Name, cls.Name) {
			return school.Class{}, school.ErrClassExists
		}
	}
	cls.ID = uuid.New().String()
	repo.class.table[cls.ID] = &cls
	return cls, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.class.RLock()
	defer repo.class.RUnlock()

	classes := make([]school.Class, 0, len(repo.class.table))
	for _, c := range repo.class.table {
		classes = append(classes, *c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Grade != classes[j].Grade {
			return classes[i].Grade < classes[j].Grade
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (school.Class, error) {
	repo.class.RLock()
	defer repo.class.RUnlock()

	if cls, ok := repo.class.table[id]; ok {
		return *cls, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) GetClassByHomeroomTeacher(_ context.Context, teacherID string, _ ...core.DBExecutor) (school.Class, error) {
	repo.class.RLock()
	defer repo.class.RUnlock()

	for _, cls := range repo.class.table {
		if cls.HomeroomTeacherID == teacherID {
			return *cls, nil
		}
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) CheckClassUniqueness(_ context.Context, name string, excludedClasses []school.Class, _ ...core.DBExecutor) error {
	repo.class.RLock()
	defer repo.class.RUnlock()

	excluded := make(map[string]bool, len(excludedClasses))
	for _, c := range excludedClasses {
		excluded[c.ID] = true
	}
	for _, cls := range repo.class.table {
		if !excluded[cls.ID] && strings.EqualFold(cls.Name, name) {
			return school.ErrClassExists
		}
	}
	return nil
}

func (repo *schoolRepository) UpdateClass(_ context.Context, cls school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.class.Lock()
	defer repo.class.Unlock()

	orig, ok := repo.class.table[cls.ID]
	if !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	if cls.Name != "" {
		orig.Name = cls.Name
	}
	if cls.Grade != "" {
		orig.Grade = cls.Grade
	}
	if cls.HomeroomTeacherID != "" {
		orig.HomeroomTeacherID = cls.HomeroomTeacherID
	}
	if !cls.UpdatedAt.IsZero() {
		orig.UpdatedAt = cls.UpdatedAt
	} else {
		orig.UpdatedAt = time.Now().UTC()
	}

	repo.class.table[cls.ID] = orig
	return *orig, nil
}

func (repo *schoolRepository) DeleteClassesByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.class.Lock()
	defer repo.class.Unlock()
	for _, id := range ids {
		delete(repo.class.table, id)
	}
	return nil
}

// Students

func (repo *schoolRepository) CreateStudent(_ context.Context, std school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.student.Lock()
	defer repo.student.Unlock()

	std.ID = uuid.New().String()
	repo.student.table[std.ID] = &std
	return std, nil
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter *school.StudentQueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]school.Student, error) {
	repo.student.RLock()
	students := make([]school.Student, 0, len(repo.student.table))
	for _, s := range repo.student.table {
		students = append(students, *s)
	}
	repo.student.RUnlock()

	if filter != nil {
		if filter.Search != "" {
			var filtered []school.Student
			search := strings.ToLower(filter.Search)
			for _, s := range students {
				if strings.Contains(strings.ToLower(s.Name), search) {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if filter.ClassID != "" {
			var filtered []school.Student
			for _, s := range students {
				if s.ClassID == filter.ClassID {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if filter.Grade != "" {
			repo.class.RLock()
			var filtered []school.Student
			for _, s := range students {
				if cls, ok := repo.class.table[s.ClassID]; ok && cls.Grade == filter.Grade {
					filtered = append(filtered, s)
				}
			}
			repo.class.RUnlock()
			students = filtered
		}
	}

	sort.Slice(students, func(i, j int) bool { return students[i].RollNo < students[j].RollNo })
	return students, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (school.Student, error) {
	repo.student.RLock()
	defer repo.student.RUnlock()

	if std, ok := repo.student.table[id]; ok {
		return *std, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) GetClassRoster(_ context.Context, classID string, _ ...core.DBExecutor) ([]school.Student, error) {
	repo.student.RLock()
	defer repo.student.RUnlock()

	students := make([]school.Student, 0)
	for _, s := range repo.student.table {
		if s.ClassID == classID {
			students = append(students, *s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RollNo < students[j].RollNo })
	return students, nil
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, std school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.student.Lock()
	defer repo.student.Unlock()

	orig, ok := repo.student.table[std.ID]
	if !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	if std.ClassID != "" {
		orig.ClassID = std.ClassID
	}
	if std.Name != "" {
		orig.Name = std.Name
	}
	if std.RollNo != 0 {
		orig.RollNo = std.RollNo
	}
	if std.GuardianEmail != "" {
		orig.GuardianEmail = std.GuardianEmail
	}
	if !std.UpdatedAt.IsZero() {
		orig.UpdatedAt = std.UpdatedAt
	} else {
		orig.UpdatedAt = time.Now().UTC()
	}

	repo.student.table[std.ID] = orig
	return *orig, nil
}

func (repo *schoolRepository) DeleteStudentsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.student.Lock()
	defer repo.student.Unlock()
	for _, id := range ids {
		delete(repo.student.table, id)
	}
	return nil
}

// Subjects

func (repo *schoolRepository) CreateSubject(_ context.Context, sub school.Subject, _ ...core.DBExecutor) (school.Subject, error) {
	repo.subject.Lock()
	defer repo.subject.Unlock()

	sub.ID = uuid.New().String()
	repo.subject.table[sub.ID] = &sub
	return sub, nil
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, classID string, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]school.Subject, error) {
	repo.subject.RLock()
	defer repo.subject.RUnlock()

	subjects := make([]school.Subject, 0)
	for _, s := range repo.subject.table {
		if classID != "" && s.ClassID != classID {
			continue
		}
		subjects = append(subjects, *s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(_ context.Context, id string, _ ...core.DBExecutor) (school.Subject, error) {
	repo.subject.RLock()
	defer repo.subject.RUnlock()

	if sub, ok := repo.subject.table[id]; ok {
		return *sub, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) UpdateSubject(_ context.Context, sub school.Subject, _ ...core.DBExecutor) (school.Subject, error) {
	repo.subject.Lock()
	defer repo.subject.Unlock()

	orig, ok := repo.subject.table[sub.ID]
	if !ok {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	if sub.ClassID != "" {
		orig.ClassID = sub.ClassID
	}
	if sub.TeacherID != "" {
		orig.TeacherID = sub.TeacherID
	}
	if sub.Name != "" {
		orig.Name = sub.Name
	}
	if sub.Code != "" {
		orig.Code = sub.Code
	}
	if !sub.UpdatedAt.IsZero() {
		orig.UpdatedAt = sub.UpdatedAt
	} else {
		orig.UpdatedAt = time.Now().UTC()
	}

	repo.subject.table[sub.ID] = orig
	return *orig, nil
}

func (repo *schoolRepository) DeleteSubjectsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.subject.Lock()
	defer repo.subject.Unlock()
	for _, id := range ids {
		delete(repo.subject.table, id)
	}
	return nil
}
