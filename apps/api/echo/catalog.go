package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/rating"
	"github.com/elimu-cd/elimu/core/user"
)

type catalogApi struct {
	svc    *catalog.Service
	enrSvc *enrollment.Service
	rtgSvc *rating.Service
	usrSvc *user.Service
}

func registerCatalogAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *catalog.Service,
	enrSvc *enrollment.Service,
	rtgSvc *rating.Service,
	usrSvc *user.Service,
) {
	api := catalogApi{svc: svc, enrSvc: enrSvc, rtgSvc: rtgSvc, usrSvc: usrSvc}

	catg := g.Group("/categories", jwt)
	catg.GET("", api.queryCategories)
	catg.POST("", api.createCategory, teacherOrAdminMiddleware())
	catg.GET("/:id", api.retrieveCategory)
	catg.PUT("/:id", api.updateCategory, teacherOrAdminMiddleware())
	catg.DELETE("/:id", api.destroyCategory, teacherOrAdminMiddleware())

	cg := g.Group("/courses", jwt)
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, teacherMiddleware())
	cg.GET("/teacher", api.queryTeacherCourses, teacherMiddleware())
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse, teacherMiddleware())
	cg.DELETE("/:id", api.destroyCourse, teacherMiddleware())

	cg.POST("/:id/enroll", api.enroll)
	cg.POST("/:id/unenroll", api.unenroll)
	cg.POST("/:id/rate", api.rate)
	cg.GET("/:id/ratings", api.queryRatings)

	g.GET("/enrollments", api.queryEnrollments, jwt)
}

// Categories

func (api *catalogApi) createCategory(ctx echo.Context) error {
	var data catalog.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *catalogApi) queryCategories(ctx echo.Context) error {
	filter := new(catalog.CategoryFilter)
	if err := ctx.Bind(filter); err != nil {
		filter = new(catalog.CategoryFilter)
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	cats, err := api.svc.QueryCategories(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []catalog.Category{}
	}
	lo, hi := pg.window(len(cats))
	return ctx.JSON(http.StatusOK, paginated(ctx, len(cats), *pg, cats[lo:hi]))
}

func (api *catalogApi) retrieveCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) updateCategory(ctx echo.Context) error {
	orig, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data catalog.UpdateCategory
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}
	if err = data.Validate(orig, core.Validate); err != nil {
		return err
	}

	cat, err := api.svc.UpdateCategory(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Courses

func (api *catalogApi) createCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data catalog.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(core.Validate); err != nil {
		return err
	}

	course, err := api.svc.CreateCourse(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *catalogApi) queryCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(catalog.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		filter = new(catalog.QueryFilter)
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	count, courses, err := api.svc.QueryCourses(ctx.Request().Context(), usr, filter, ordering.Orderings, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, courses))
}

func (api *catalogApi) queryTeacherCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	count, courses, err := api.svc.QueryTeacherCourses(ctx.Request().Context(), usr, ordering.Orderings, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying teacher courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, courses))
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	course, err := api.svc.GetCourse(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) updateCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data catalog.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	course, err := api.svc.UpdateCourse(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) destroyCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteCourse(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *catalogApi) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.enrSvc.Enroll(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *catalogApi) unenroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.enrSvc.Unenroll(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Successfully unenrolled."})
}

func (api *catalogApi) queryEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pg := new(Pagination)
	pg.Bind(ctx)

	enrs, err := api.enrSvc.QueryMine(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	lo, hi := pg.window(len(enrs))
	return ctx.JSON(http.StatusOK, paginated(ctx, len(enrs), *pg, enrs[lo:hi]))
}

// Ratings

func (api *catalogApi) rate(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data rating.NewRating
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRating")
	}
	if err = data.Validate(core.Validate); err != nil {
		return err
	}

	rtg, created, err := api.rtgSvc.Rate(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, rtg)
}

func (api *catalogApi) queryRatings(ctx echo.Context) error {
	exists, err := api.rtgSvc.CourseExists(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "checking course")
	}
	if !exists {
		return rating.ErrCourseNotFound
	}

	pg := new(Pagination)
	pg.Bind(ctx)

	ratings, err := api.rtgSvc.QueryCourseRatings(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying ratings")
	}
	if ratings == nil {
		ratings = []rating.Rating{}
	}
	lo, hi := pg.window(len(ratings))
	return ctx.JSON(http.StatusOK, paginated(ctx, len(ratings), *pg, ratings[lo:hi]))
}
