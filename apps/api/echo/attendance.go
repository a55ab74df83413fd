package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

type attendanceApi struct {
	svc        attendance.ServiceInterface
	schoolSvc  school.ServiceInterface
	usrSvc     user.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.ServiceInterface,
	schoolSvc school.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := attendanceApi{
		svc:        svc,
		schoolSvc:  schoolSvc,
		usrSvc:     usrSvc,
		validate:   validate,
		translator: translator,
	}

	ag := g.Group("/classes/:id/attendance", jwt, teacherOrAdminMiddleware())
	ag.GET("", api.retrieve)
	ag.POST("", api.mark, classOwnerOrAdminMiddleware(api.schoolSvc, api.usrSvc))
	ag.GET("/history", api.history)
}

// Handlers

// retrieve returns the attendance record for (class, date); 404 when the day
// has not been marked yet.
func (api *attendanceApi) retrieve(ctx echo.Context) error {
	var query RetrieveAttendanceRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to RetrieveAttendanceRequest")
	}
	if err := query.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.schoolSvc.GetClassByID(ctx.Param("id")); err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding class by ID")
	}

	rec, err := api.svc.Get(ctx.Param("id"), query.Date)
	if err != nil {
		if errors.Cause(err) == attendance.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding attendance record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.SubmitAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rec, err := api.svc.Mark(ctx.Param("id"), ctxUsr.ID, data)
	if err != nil {
		switch errors.Cause(err) {
		case attendance.ErrAlreadyMarked:
			return errHttpConflict
		case school.ErrClassNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	var filter attendance.HistoryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to HistoryFilter")
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}

	summaries, err := api.svc.History(ctx.Param("id"), filter)
	if err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "querying attendance history")
	}
	if summaries == nil {
		summaries = []attendance.DaySummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

// classOwnerOrAdminMiddleware only lets a teacher act on their own homeroom
// class; admins may act on any class.
func classOwnerOrAdminMiddleware(schoolSvc school.ServiceInterface, usrSvc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}

			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			cls, err := schoolSvc.GetHomeroomClass(ctxUsr.ID)
			if err != nil {
				if errors.Cause(err) == school.ErrNoHomeroom {
					return errHttpForbidden
				}
				return errors.Wrap(err, "finding homeroom class")
			}
			if cls.ID != ctx.Param("id") {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

type RetrieveAttendanceRequest struct {
	Date string `query:"date" json:"date" validate:"required,isodate"`
}

func (rr *RetrieveAttendanceRequest) Validate(validate *validator.Validate) error {
	rr.Date = core.CleanString(rr.Date)
	return validate.Struct(rr)
}
