package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/appeal"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
)

type appealApi struct {
	userSvc *user.Service
	svc     *appeal.Service
}

func registerAppealAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, svc *appeal.Service) {
	api := appealApi{userSvc: userSvc, svc: svc}

	ag := g.Group("/appeals", jwt)

	ag.POST("", api.create)
	ag.GET("", api.query)

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/resolve", api.resolve, staffMiddleware())
	dg.POST("/dismiss", api.dismiss, staffMiddleware())
}

func (api *appealApi) actor(ctx echo.Context) (grade.Actor, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return grade.Actor{}, errors.Wrap(err, "getting context user")
	}
	return grade.NewActor(usr), nil
}

// Handlers

func (api *appealApi) create(ctx echo.Context) error {
	var data appeal.NewAppeal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAppeal")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Open(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *appealApi) query(ctx echo.Context) error {
	filter := new(appeal.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []appeal.Appeal{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, appealOrderFields)

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	appeals, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying appeals")
	}
	if appeals == nil {
		appeals = []appeal.Appeal{}
	}
	return ctx.JSON(http.StatusOK, appeals)
}

func (api *appealApi) retrieve(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *appealApi) resolve(ctx echo.Context) error {
	var data appeal.ResolveAppeal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResolveAppeal")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Resolve(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *appealApi) dismiss(ctx echo.Context) error {
	var data appeal.ResolveAppeal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResolveAppeal")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Dismiss(ctx.Request().Context(), actor, ctx.Param("id"), data.Resolution)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}
