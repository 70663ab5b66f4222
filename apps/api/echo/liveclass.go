package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/liveclass"
	"github.com/elimu-cd/elimu/core/user"
)

type liveClassApi struct {
	svc    *liveclass.Service
	usrSvc *user.Service
}

func registerLiveClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *liveclass.Service, usrSvc *user.Service) {
	api := liveClassApi{svc: svc, usrSvc: usrSvc}

	lg := g.Group("/live-classes", jwt)
	lg.GET("", api.query)
	lg.POST("", api.create, teacherMiddleware())
	lg.GET("/teacher", api.queryTeacherClasses, teacherMiddleware())
	lg.GET("/upcoming", api.queryUpcoming)
	lg.GET("/:id", api.retrieve)
	lg.PUT("/:id", api.update, teacherMiddleware())
	lg.DELETE("/:id", api.destroy, teacherMiddleware())

	lg.POST("/:id/start", api.start, teacherMiddleware())
	lg.POST("/:id/end", api.end, teacherMiddleware())
	lg.POST("/:id/cancel", api.cancel, teacherMiddleware())
	lg.POST("/:id/join", api.join)
	lg.POST("/:id/leave", api.leave)
	lg.GET("/:id/participants", api.queryParticipants)
	lg.POST("/:id/participants/:participantID/approve", api.approve, teacherMiddleware())
	lg.GET("/:id/messages", api.queryMessages)
	lg.POST("/:id/messages", api.postMessage)

	rg := g.Group("/recordings", jwt)
	rg.GET("", api.queryRecordings)
	rg.POST("", api.createRecording, teacherMiddleware())
	rg.GET("/:id", api.retrieveRecording)
	rg.PUT("/:id", api.updateRecording, teacherMiddleware())
	rg.DELETE("/:id", api.destroyRecording, teacherMiddleware())
}

// Handlers

func (api *liveClassApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data liveclass.NewLiveClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLiveClass")
	}
	if err = data.Validate(core.Validate); err != nil {
		return err
	}

	lc, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, lc)
}

func (api *liveClassApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(liveclass.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		filter = new(liveclass.QueryFilter)
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	count, classes, err := api.svc.Query(ctx.Request().Context(), usr, filter, ordering.Orderings, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying live classes")
	}
	if classes == nil {
		classes = []liveclass.LiveClass{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, classes))
}

func (api *liveClassApi) queryTeacherClasses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	count, classes, err := api.svc.QueryTeacherClasses(ctx.Request().Context(), usr, ordering.Orderings, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying teacher live classes")
	}
	if classes == nil {
		classes = []liveclass.LiveClass{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, classes))
}

func (api *liveClassApi) queryUpcoming(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pg := new(Pagination)
	pg.Bind(ctx)

	count, classes, err := api.svc.QueryUpcoming(ctx.Request().Context(), usr, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying upcoming live classes")
	}
	if classes == nil {
		classes = []liveclass.LiveClass{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, classes))
}

func (api *liveClassApi) retrieve(ctx echo.Context) error {
	lc, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lc)
}

func (api *liveClassApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data liveclass.UpdateLiveClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLiveClass")
	}
	if err = data.Validate(core.Validate); err != nil {
		return err
	}

	lc, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lc)
}

func (api *liveClassApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *liveClassApi) start(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lc, err := api.svc.Start(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lc)
}

func (api *liveClassApi) end(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lc, err := api.svc.End(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lc)
}

func (api *liveClassApi) cancel(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lc, err := api.svc.Cancel(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lc)
}

func (api *liveClassApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, created, err := api.svc.Join(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, p)
}

func (api *liveClassApi) leave(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Leave(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Left the live class."})
}

func (api *liveClassApi) queryParticipants(ctx echo.Context) error {
	pg := new(Pagination)
	pg.Bind(ctx)

	parts, err := api.svc.QueryParticipants(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if parts == nil {
		parts = []liveclass.Participant{}
	}
	lo, hi := pg.window(len(parts))
	return ctx.JSON(http.StatusOK, paginated(ctx, len(parts), *pg, parts[lo:hi]))
}

func (api *liveClassApi) approve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.svc.Approve(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("participantID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *liveClassApi) postMessage(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data liveclass.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(core.Validate); err != nil {
		return err
	}

	msg, err := api.svc.PostMessage(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *liveClassApi) queryMessages(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pg := new(Pagination)
	pg.Bind(ctx)

	msgs, err := api.svc.QueryMessages(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []liveclass.Message{}
	}
	lo, hi := pg.window(len(msgs))
	return ctx.JSON(http.StatusOK, paginated(ctx, len(msgs), *pg, msgs[lo:hi]))
}

// Recordings

func (api *liveClassApi) createRecording(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data liveclass.NewRecording
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecording")
	}
	if err = data.Validate(core.Validate); err != nil {
		return err
	}

	rec, err := api.svc.CreateRecording(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *liveClassApi) queryRecordings(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pg := new(Pagination)
	pg.Bind(ctx)

	count, recs, err := api.svc.QueryRecordings(ctx.Request().Context(), usr, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying recordings")
	}
	if recs == nil {
		recs = []liveclass.Recording{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, recs))
}

func (api *liveClassApi) retrieveRecording(ctx echo.Context) error {
	rec, err := api.svc.GetRecording(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *liveClassApi) updateRecording(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data liveclass.UpdateRecording
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRecording")
	}
	if err = data.Validate(core.Validate); err != nil {
		return err
	}

	rec, err := api.svc.UpdateRecording(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *liveClassApi) destroyRecording(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteRecording(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
