package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
)

type gradeApi struct {
	userSvc     *user.Service
	svc         *grade.Service
	analysisSvc core.AnalysisService
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, svc *grade.Service, analysisSvc core.AnalysisService) {
	api := gradeApi{userSvc: userSvc, svc: svc, analysisSvc: analysisSvc}

	gg := g.Group("/grades", jwt)

	gg.POST("", api.create, staffMiddleware())
	gg.GET("", api.query)
	gg.DELETE("", api.destroyMultiple, staffMiddleware())
	gg.GET("/analysis", api.analyze)

	dg := gg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
	dg.GET("/history", api.history)
	dg.POST("/verify", api.verify, staffMiddleware())
	dg.POST("/reject", api.reject, staffMiddleware())
	dg.POST("/requeue", api.requeue, staffMiddleware())
}

func (api *gradeApi) actor(ctx echo.Context) (grade.Actor, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return grade.Actor{}, errors.Wrap(err, "getting context user")
	}
	return grade.NewActor(usr), nil
}

// Handlers

func (api *gradeApi) create(ctx echo.Context) error {
	var data grade.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	g, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *gradeApi) query(ctx echo.Context) error {
	filter := new(grade.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grade.Grade{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, gradeOrderFields)

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	grades, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	g, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) update(ctx echo.Context) error {
	var data grade.EditGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditGrade")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	g, err := api.svc.Edit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) verify(ctx echo.Context) error {
	return api.review(ctx, api.svc.Verify)
}

func (api *gradeApi) reject(ctx echo.Context) error {
	return api.review(ctx, api.svc.Reject)
}

func (api *gradeApi) requeue(ctx echo.Context) error {
	return api.review(ctx, api.svc.Requeue)
}

func (api *gradeApi) review(ctx echo.Context, op func(ctx context.Context, actor grade.Actor, id, reason string) (grade.Grade, error)) error {
	var data ReviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewRequest")
	}

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	g, err := op(ctx.Request().Context(), actor, ctx.Param("id"), data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) history(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	edits, err := api.svc.History(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	if edits == nil {
		edits = []grade.EditHistory{}
	}
	return ctx.JSON(http.StatusOK, edits)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, query.IDs...); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// analyze runs the AI performance analysis over a student's grades.
func (api *gradeApi) analyze(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}

	studentID := ctx.QueryParam("student_id")
	if studentID == "" {
		studentID = actor.ID
	}
	if actor.IsStudent() && studentID != actor.ID {
		return errHttpForbidden
	}

	grades, err := api.svc.Query(ctx.Request().Context(), actor, &grade.QueryFilter{StudentID: studentID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if len(grades) == 0 {
		return core.NewValidationError(errors.New("no grades to analyze"))
	}

	student, err := api.userSvc.GetByID(ctx.Request().Context(), studentID)
	if err != nil {
		return err
	}

	rows := make([]string, 0, len(grades))
	for _, g := range grades {
		rows = append(rows, fmt.Sprintf("%s (%s): %g [%s]", g.CourseID, g.Semester, g.Score, g.Status))
	}
	report, err := api.analysisSvc.AnalyzeGrades(ctx.Request().Context(), student.Name, rows)
	if err != nil {
		return errors.Wrap(err, "analyzing grades")
	}
	return ctx.JSON(http.StatusOK, AnalysisResponse{StudentID: studentID, Report: report})
}

type (
	ReviewRequest struct {
		Reason string `json:"reason"`
	}

	AnalysisResponse struct {
		StudentID string `json:"student_id"`
		Report    string `json:"report"`
	}
)
