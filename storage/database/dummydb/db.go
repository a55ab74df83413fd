// Package dummydb provides in-memory repository implementations for tests.
package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		class      *classTable
		student    *studentTable
		subject    *subjectTable
		attendance *attendanceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	classTable struct {
		sync.RWMutex
		table map[string]*school.Class
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*school.Student
	}

	subjectTable struct {
		sync.RWMutex
		table map[string]*school.Subject
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Record // keyed on "classID/date"
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		class:      &classTable{table: make(map[string]*school.Class)},
		student:    &studentTable{table: make(map[string]*school.Student)},
		subject:    &subjectTable{table: make(map[string]*school.Subject)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Record)},
	}
	return db, nil
}
