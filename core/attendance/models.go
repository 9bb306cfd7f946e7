package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Status is a student's attendance outcome.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

type StudentRecord struct {
	StudentID string `json:"student_id"`
	Status    Status `json:"status"`
}

// Record is one finalized attendance sheet for a (class, date) pair.
type Record struct {
	ID        string          `json:"id"`
	ClassID   string          `json:"class_id"`
	TeacherID string          `json:"teacher_id"`
	Date      time.Time       `json:"date"` // calendar day; UTC midnight
	Students  []StudentRecord `json:"students"`
	CreatedAt time.Time       `json:"created_at"` // UTC
}

// NewRecord contains information needed to record attendance manually.
type NewRecord struct {
	ClassID  string             `json:"class_id" validate:"required"`
	Date     string             `json:"date" validate:"required,caldate"`
	Students []NewStudentRecord `json:"students" validate:"required,min=1,dive"`
}

type NewStudentRecord struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    Status `json:"status" validate:"required,oneof=present absent"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.ClassID = core.CleanString(nr.ClassID)
	nr.Date = core.CleanString(nr.Date)
	return validate.Struct(nr)
}

// ParsedDate returns the calendar day carried by Date.
// Validate must have passed first.
func (nr NewRecord) ParsedDate() time.Time {
	t, _ := time.Parse(core.DateLayout, nr.Date)
	return core.DateOf(t)
}

// StudentStats is one student's aggregate over a date range.
type StudentStats struct {
	StudentID string  `json:"student_id"`
	Present   int     `json:"present"`
	Absent    int     `json:"absent"`
	Rate      float64 `json:"rate"` // present / (present + absent)
}

// ClassStats feeds the frontend's attendance charts.
type ClassStats struct {
	ClassID  string         `json:"class_id"`
	From     time.Time      `json:"from"`
	To       time.Time      `json:"to"`
	Sessions int            `json:"sessions"`
	Students []StudentStats `json:"students"`
}
