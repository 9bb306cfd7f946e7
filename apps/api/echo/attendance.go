package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/user"
)

type attendanceApi struct {
	svc      attendance.ServiceInterface
	clsSvc   class.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.ServiceInterface,
	clsSvc class.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := attendanceApi{
		svc:      svc,
		clsSvc:   clsSvc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	ag := g.Group("/attendance", jwt, teacherMiddleware())
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/stats", api.stats)
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy)
}

// ownedClass checks that the context user may manage classID. Admins may manage any class.
func (api *attendanceApi) ownedClass(ctx echo.Context, classID string) (class.Class, error) {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsAdmin() {
		return api.clsSvc.GetByID(classID)
	}
	return api.clsSvc.GetOwnedClass(classID, ctxUsr.ID)
}

// Handlers

// create records attendance manually, without a device session.
func (api *attendanceApi) create(ctx echo.Context) error {
	var data attendance.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.ownedClass(ctx, data.ClassID)
	if err != nil {
		return err
	}

	students := make([]attendance.StudentRecord, len(data.Students))
	for i, sr := range data.Students {
		students[i] = attendance.StudentRecord{StudentID: sr.StudentID, Status: sr.Status}
	}

	rec, err := api.svc.Save(cls.ID, cls.TeacherID, data.ParsedDate(), students)
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx, ctx.QueryParam("class_id"))
	if err != nil {
		return err
	}

	dates := new(DateRange)
	if err := dates.Bind(ctx); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	recs, err := api.svc.QueryByClass(cls.ID, dates.From, dates.To, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) stats(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx, ctx.QueryParam("class_id"))
	if err != nil {
		return err
	}

	dates := new(DateRange)
	if err := dates.Bind(ctx); err != nil {
		return err
	}

	stats, err := api.svc.ClassStats(cls.ID, dates.From, dates.To)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.ownedClass(ctx, rec.ClassID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	rec, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.ownedClass(ctx, rec.ClassID); err != nil {
		return err
	}

	if err := api.svc.Delete(rec.ID); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return ctx.NoContent(http.StatusNoContent)
}