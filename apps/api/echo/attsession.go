package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attsession"
	"github.com/trezcool/darasa/core/user"
)

type attSessionApi struct {
	svc      attsession.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerAttSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attsession.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := attSessionApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	sg := g.Group("/att-sessions", jwt, teacherMiddleware())
	sg.POST("", api.start)

	dg := sg.Group("/:id")
	dg.GET("", api.status)
	dg.DELETE("", api.stop)
	dg.POST("/assign", api.assign)
	dg.POST("/skip", api.skip)
}

// Handlers

func (api *attSessionApi) start(ctx echo.Context) error {
	var data StartSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartSessionRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Start(ctxUsr.ID, data.ClassID, data.ParsedDate())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *attSessionApi) stop(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	persist := ctx.QueryParam("persist") != "false"
	summary, err := api.svc.Stop(ctx.Param("id"), ctxUsr.ID, persist)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *attSessionApi) assign(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	assignment, err := api.svc.Assign(ctx.Param("id"), ctxUsr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, assignment)
}

func (api *attSessionApi) skip(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	progress, err := api.svc.Skip(ctx.Param("id"), ctxUsr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *attSessionApi) status(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	view, err := api.svc.Status(ctx.Param("id"), ctxUsr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

type StartSessionRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Date    string `json:"date" validate:"required,caldate"`
}

func (sr *StartSessionRequest) Validate(validate *validator.Validate) error {
	sr.ClassID = core.CleanString(sr.ClassID)
	sr.Date = core.CleanString(sr.Date)
	return validate.Struct(sr)
}

// ParsedDate returns the calendar day carried by Date.
// Validate must have passed first.
func (sr StartSessionRequest) ParsedDate() time.Time {
	t, _ := time.Parse(core.DateLayout, sr.Date)
	return core.DateOf(t)
}
