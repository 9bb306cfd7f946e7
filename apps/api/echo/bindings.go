package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// DateRange binds the optional "from"/"to" calendar-date query params.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (dr *DateRange) Bind(ctx echo.Context) error {
	var err error
	if v := ctx.QueryParam("from"); v != "" {
		if dr.From, err = time.Parse(core.DateLayout, v); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "from", Error: "invalid date"})
		}
	}
	if v := ctx.QueryParam("to"); v != "" {
		if dr.To, err = time.Parse(core.DateLayout, v); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "invalid date"})
		}
	}
	return nil
}
