package echoapi

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/material"
	"github.com/elimu-cd/elimu/core/user"
)

type materialApi struct {
	svc    *material.Service
	usrSvc *user.Service
}

func registerMaterialAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *material.Service, usrSvc *user.Service) {
	api := materialApi{svc: svc, usrSvc: usrSvc}

	mg := g.Group("/materials", jwt)
	mg.GET("", api.query)
	mg.POST("", api.upload, teacherMiddleware())
	mg.GET("/teacher", api.queryTeacherMaterials, teacherMiddleware())
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update, teacherMiddleware())
	mg.DELETE("/:id", api.destroy, teacherMiddleware())

	mg.GET("/:id/download", api.download)
	mg.POST("/:id/view", api.view)
	mg.GET("/:id/stats", api.stats, teacherMiddleware())

	g.GET("/accesses", api.queryAccesses, jwt, teacherMiddleware())

	fg := g.Group("/folders", jwt)
	fg.GET("", api.queryFolders)
	fg.POST("", api.createFolder, teacherOrAdminMiddleware())
	fg.GET("/:id", api.retrieveFolder)
	fg.PUT("/:id", api.updateFolder, teacherOrAdminMiddleware())
	fg.DELETE("/:id", api.destroyFolder, teacherOrAdminMiddleware())
}

// Handlers

func (api *materialApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data material.NewMaterial
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer file.Close()

	m, err := api.svc.Upload(ctx.Request().Context(), usr, data, fileHdr.Filename, file)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *materialApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var filter material.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		filter = material.QueryFilter{}
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	count, mats, err := api.svc.Query(ctx.Request().Context(), usr, filter, ordering.Orderings, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	if mats == nil {
		mats = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, mats))
}

func (api *materialApi) queryTeacherMaterials(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pg := new(Pagination)
	pg.Bind(ctx)

	count, mats, err := api.svc.QueryTeacherMaterials(ctx.Request().Context(), usr.ID, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying teacher materials")
	}
	if mats == nil {
		mats = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, mats))
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	m, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *materialApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data material.UpdateMaterial
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMaterial")
	}

	m, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *materialApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	m, file, err := api.svc.Download(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	defer file.Close()

	contentType := mime.TypeByExtension("." + m.FileExtension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", m.FileName))
	return ctx.Stream(http.StatusOK, contentType, file)
}

func (api *materialApi) view(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.RecordView(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "View recorded."})
}

func (api *materialApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *materialApi) queryAccesses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pg := new(Pagination)
	pg.Bind(ctx)

	count, accesses, err := api.svc.QueryAccesses(ctx.Request().Context(), usr.ID, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying accesses")
	}
	if accesses == nil {
		accesses = []material.Access{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, accesses))
}

// Folders

func (api *materialApi) createFolder(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data material.NewFolder
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFolder")
	}

	f, err := api.svc.CreateFolder(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *materialApi) queryFolders(ctx echo.Context) error {
	var filter material.FolderFilter
	if err := ctx.Bind(&filter); err != nil {
		filter = material.FolderFilter{}
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	count, folders, err := api.svc.QueryFolders(ctx.Request().Context(), filter, ordering.Orderings, pg.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying folders")
	}
	if folders == nil {
		folders = []material.Folder{}
	}
	return ctx.JSON(http.StatusOK, paginated(ctx, count, *pg, folders))
}

func (api *materialApi) retrieveFolder(ctx echo.Context) error {
	f, err := api.svc.GetFolder(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *materialApi) updateFolder(ctx echo.Context) error {
	var data material.UpdateFolder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFolder")
	}

	f, err := api.svc.UpdateFolder(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *materialApi) destroyFolder(ctx echo.Context) error {
	if err := api.svc.DeleteFolder(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
