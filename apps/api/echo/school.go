package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

type schoolApi struct {
	svc        school.ServiceInterface
	usrSvc     user.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerSchoolAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc school.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := schoolApi{
		svc:        svc,
		usrSvc:     usrSvc,
		validate:   validate,
		translator: translator,
	}

	// classes
	cg := g.Group("/classes", jwt)
	cg.POST("", api.createClass, adminMiddleware())
	cg.GET("", api.queryClasses, teacherOrAdminMiddleware())
	cg.GET("/:id", api.retrieveClass, teacherOrAdminMiddleware())
	cg.PUT("/:id", api.updateClass, adminMiddleware())
	cg.DELETE("/:id", api.destroyClass, adminMiddleware())
	cg.GET("/:id/roster", api.retrieveRoster, teacherOrAdminMiddleware())
	cg.GET("/:id/subjects", api.queryClassSubjects, teacherOrAdminMiddleware())

	// students
	stg := g.Group("/students", jwt)
	stg.POST("", api.createStudent, adminMiddleware())
	stg.GET("", api.queryStudents, teacherOrAdminMiddleware())
	stg.GET("/:id", api.retrieveStudent, teacherOrAdminMiddleware())
	stg.PUT("/:id", api.updateStudent, adminMiddleware())
	stg.DELETE("/:id", api.destroyStudent, adminMiddleware())

	// subjects
	sbg := g.Group("/subjects", jwt)
	sbg.POST("", api.createSubject, adminMiddleware())
	sbg.GET("", api.querySubjects, teacherOrAdminMiddleware())
	sbg.GET("/:id", api.retrieveSubject, teacherOrAdminMiddleware())
	sbg.PUT("/:id", api.updateSubject, adminMiddleware())
	sbg.DELETE("/:id", api.destroySubject, adminMiddleware())

	// the logged-in teacher's homeroom class
	g.GET("/teachers/me/class", api.retrieveOwnClass, jwt, teacherMiddleware())
}

// trapNotFoundErr maps domain "not found" errors to a 404.
func (api *schoolApi) trapNotFoundErr(err error, msg string) error {
	switch errors.Cause(err) {
	case school.ErrClassNotFound, school.ErrStudentNotFound, school.ErrSubjectNotFound:
		return errHttpNotFound
	}
	return errors.Wrap(err, msg)
}

// Class handlers

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	cls, err := api.svc.CreateClass(data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	classes, err := api.svc.QueryClasses()
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	cls, err := api.svc.GetClassByID(ctx.Param("id"))
	if err != nil {
		return api.trapNotFoundErr(err, "finding class by ID")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) updateClass(ctx echo.Context) error {
	cls, err := api.svc.GetClassByID(ctx.Param("id"))
	if err != nil {
		return api.trapNotFoundErr(err, "finding class by ID")
	}

	var data school.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(cls, api.validate, api.svc); err != nil {
		return err
	}

	cls, err = api.svc.UpdateClass(cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) destroyClass(ctx echo.Context) error {
	if _, err := api.svc.GetClassByID(ctx.Param("id")); err != nil {
		return api.trapNotFoundErr(err, "finding class by ID")
	}
	if err := api.svc.DeleteClasses(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) retrieveRoster(ctx echo.Context) error {
	roster, err := api.svc.GetRoster(ctx.Param("id"))
	if err != nil {
		return api.trapNotFoundErr(err, "loading class roster")
	}
	if roster.Students == nil {
		roster.Students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, roster)
}

// retrieveOwnClass resolves the logged-in teacher's homeroom class.
func (api *schoolApi) retrieveOwnClass(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cls, err := api.svc.GetHomeroomClass(ctxUsr.ID)
	if err != nil {
		if errors.Cause(err) == school.ErrNoHomeroom {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding homeroom class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

// Student handlers

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.CreateStudent(data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	filter := new(school.StudentQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	std, err := api.svc.GetStudentByID(ctx.Param("id"))
	if err != nil {
		return api.trapNotFoundErr(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	std, err := api.svc.GetStudentByID(ctx.Param("id"))
	if err != nil {
		return api.trapNotFoundErr(err, "finding student by ID")
	}

	var data school.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(std, api.validate); err != nil {
		return err
	}

	std, err = api.svc.UpdateStudent(std.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	if _, err := api.svc.GetStudentByID(ctx.Param("id")); err != nil {
		return api.trapNotFoundErr(err, "finding student by ID")
	}
	if err := api.svc.DeleteStudents(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subject handlers

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects(ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) queryClassSubjects(ctx echo.Context) error {
	if _, err := api.svc.GetClassByID(ctx.Param("id")); err != nil {
		return api.trapNotFoundErr(err, "finding class by ID")
	}

	subjects, err := api.svc.QuerySubjects(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) retrieveSubject(ctx echo.Context) error {
	sub, err := api.svc.GetSubjectByID(ctx.Param("id"))
	if err != nil {
		return api.trapNotFoundErr(err, "finding subject by ID")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *schoolApi) updateSubject(ctx echo.Context) error {
	sub, err := api.svc.GetSubjectByID(ctx.Param("id"))
	if err != nil {
		return api.trapNotFoundErr(err, "finding subject by ID")
	}

	var data school.UpdateSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err = data.Validate(sub, api.validate); err != nil {
		return err
	}

	sub, err = api.svc.UpdateSubject(sub.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *schoolApi) destroySubject(ctx echo.Context) error {
	if _, err := api.svc.GetSubjectByID(ctx.Param("id")); err != nil {
		return api.trapNotFoundErr(err, "finding subject by ID")
	}
	if err := api.svc.DeleteSubjects(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}
