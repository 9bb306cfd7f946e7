package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/user"
)

type classApi struct {
	svc      class.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerClassAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc class.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := classApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	cg := g.Group("/classes", jwt, teacherMiddleware())
	cg.POST("", api.create)
	cg.GET("", api.query)

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	sg := dg.Group("/students")
	sg.POST("", api.addStudent)
	sg.GET("", api.roster)
	sg.DELETE("/:sid", api.removeStudent)
}

// ownedClass resolves the `:id` param to a class the context user may manage.
// Admins may manage any class.
func (api *classApi) ownedClass(ctx echo.Context) (class.Class, error) {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsAdmin() {
		return api.svc.GetByID(ctx.Param("id"))
	}
	return api.svc.GetOwnedClass(ctx.Param("id"), ctxUsr.ID)
}

// Handlers

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cls, err := api.svc.Create(ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	teacherID := ctxUsr.ID
	if ctxUsr.IsAdmin() {
		if tid := ctx.QueryParam("teacher_id"); tid != "" {
			teacherID = tid
		}
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.QueryByTeacher(teacherID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx)
	if err != nil {
		return err
	}

	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(cls, api.validate); err != nil {
		return err
	}

	cls, err = api.svc.Update(cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(cls.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) addStudent(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx)
	if err != nil {
		return err
	}

	var data class.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.AddStudent(cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *classApi) roster(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx)
	if err != nil {
		return err
	}

	students, err := api.svc.Roster(cls.ID)
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	if students == nil {
		students = []class.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) removeStudent(ctx echo.Context) error {
	cls, err := api.ownedClass(ctx)
	if err != nil {
		return err
	}

	std, err := api.svc.GetStudent(ctx.Param("sid"))
	if err != nil {
		return err
	}
	if std.ClassID != cls.ID {
		return errHttpNotFound
	}

	if err := api.svc.RemoveStudent(std.ID); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
