package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		class      *classTable
		attendance *attendanceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	classTable struct {
		sync.RWMutex
		classes  map[string]*class.Class
		students map[string]*class.Student
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Record
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		class: &classTable{
			classes:  make(map[string]*class.Class),
			students: make(map[string]*class.Student),
		},
		attendance: &attendanceTable{table: make(map[string]*attendance.Record)},
	}
	return db, nil
}
