package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Class struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	Name      string    `json:"name"`
	Section   string    `json:"section"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Student struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"roll_number"`
	Section    string    `json:"section"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name    string `json:"name" validate:"required"`
	Section string `json:"section"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Section = core.CleanString(nc.Section)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass struct {
	Name    string `json:"name"`
	Section string `json:"section"`
}

func (uc *UpdateClass) Validate(origCls Class, validate *validator.Validate) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = origCls.Name
	}

	section := core.CleanString(uc.Section)
	if section != "" {
		uc.Section = section
	} else {
		uc.Section = origCls.Section
	}
	return validate.Struct(uc)
}

// NewStudent contains information needed to enroll a new Student in a Class.
type NewStudent struct {
	Name       string `json:"name" validate:"required"`
	RollNumber string `json:"roll_number" validate:"required"`
	Section    string `json:"section"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.RollNumber = core.CleanString(ns.RollNumber, true /* lower */)
	ns.Section = core.CleanString(ns.Section)
	return validate.Struct(ns)
}
