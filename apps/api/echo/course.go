package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
)

type courseApi struct {
	svc       *course.Service
	enrollSvc *enroll.Service
	userSvc   *user.Service
	payments  core.PaymentService
	validate  *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *course.Service,
	enrollSvc *enroll.Service,
	userSvc *user.Service,
	payments core.PaymentService,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:       svc,
		enrollSvc: enrollSvc,
		userSvc:   userSvc,
		payments:  payments,
		validate:  validate,
	}

	cg := g.Group("/courses")

	// public catalog
	cg.GET("", api.query)
	cg.GET("/:slug", api.retrieve)
	cg.GET("/:slug/sessions", api.querySessions)

	// authed endpoints; jwt is attached per route because an empty-prefix
	// sub-group would register guarded catch-alls over the public catalog
	cg.POST("", api.create, jwt, teacherMiddleware())
	cg.POST("/:slug/publish", api.publish, jwt, teacherMiddleware())
	cg.POST("/:slug/sessions", api.addSession, jwt, teacherMiddleware())
	cg.POST("/:slug/enroll", api.enroll, jwt)

	eg := g.Group("/enrollments", jwt)
	eg.GET("", api.queryEnrollments)
	eg.GET("/:id/progress", api.retrieveProgress)
	eg.PUT("/:id/progress", api.recordProgress)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.QueryPublished(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by slug")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) publish(ctx echo.Context) error {
	crs, err := api.getOwnedCourse(ctx)
	if err != nil {
		return err
	}
	crs, err = api.svc.Publish(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "publishing course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) querySessions(ctx echo.Context) error {
	crs, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by slug")
	}

	sessions, err := api.svc.QuerySessions(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []course.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *courseApi) addSession(ctx echo.Context) error {
	crs, err := api.getOwnedCourse(ctx)
	if err != nil {
		return err
	}

	var data course.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.AddSession(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

// enroll signs the authenticated user up directly. Free courses are approved
// immediately; paid courses get a pending enrollment plus a payment intent
// whose client secret the frontend uses to collect payment.
func (api *courseApi) enroll(ctx echo.Context) error {
	crs, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by slug")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.enrollSvc.Enroll(ctx.Request().Context(), ctxUsr.ID, crs.ID)
	if err != nil {
		switch errors.Cause(err) {
		case enroll.ErrAlreadyEnrolled:
			return core.NewValidationError(enroll.ErrAlreadyEnrolled)
		case enroll.ErrCourseFull:
			return core.NewValidationError(enroll.ErrCourseFull)
		}
		return errors.Wrap(err, "enrolling")
	}

	res := EnrollResponse{Enrollment: enr}
	if !crs.IsFree() {
		intent, err := api.payments.CreateIntent(
			ctx.Request().Context(), crs.PriceCents, "usd", ctxUsr.Email,
			map[string]string{"user_id": ctxUsr.ID, "course_id": crs.ID},
		)
		if err != nil {
			return errors.Wrap(err, "creating payment intent")
		}
		res.ClientSecret = intent.ClientSecret
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *courseApi) queryEnrollments(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enrs, err := api.enrollSvc.QueryForStudent(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enroll.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *courseApi) retrieveProgress(ctx echo.Context) error {
	enr, err := api.getOwnedEnrollment(ctx)
	if err != nil {
		return err
	}
	pr, err := api.enrollSvc.EnsureProgress(ctx.Request().Context(), enr.ID)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, pr)
}

func (api *courseApi) recordProgress(ctx echo.Context) error {
	enr, err := api.getOwnedEnrollment(ctx)
	if err != nil {
		return err
	}

	var data ProgressRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgressRequest")
	}

	pr, err := api.enrollSvc.RecordProgress(ctx.Request().Context(), enr.ID, data.CompletedSessions)
	if err != nil {
		return errors.Wrap(err, "recording progress")
	}
	return ctx.JSON(http.StatusOK, pr)
}

func (api *courseApi) getOwnedCourse(ctx echo.Context) (course.Course, error) {
	crs, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return course.Course{}, errHttpNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course by slug")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "getting context user")
	}
	if crs.TeacherID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return course.Course{}, errHttpForbidden
	}
	return crs, nil
}

func (api *courseApi) getOwnedEnrollment(ctx echo.Context) (enroll.Enrollment, error) {
	enr, err := api.enrollSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == enroll.ErrNotFound {
			return enroll.Enrollment{}, errHttpNotFound
		}
		return enroll.Enrollment{}, errors.Wrap(err, "finding enrollment by ID")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "getting context user")
	}
	if enr.StudentID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return enroll.Enrollment{}, errHttpNotFound
	}
	return enr, nil
}

type (
	EnrollResponse struct {
		Enrollment   enroll.Enrollment `json:"enrollment"`
		ClientSecret string            `json:"client_secret,omitempty"`
	}

	ProgressRequest struct {
		CompletedSessions int `json:"completed_sessions"`
	}
)
