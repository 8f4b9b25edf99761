package api

import (
	"context"

	"github.com/aitechdaily/digest/app/database"
	"github.com/aitechdaily/digest/app/pipeline"
)

// PipelineTrigger is the runner surface the HTTP layer exposes.
type PipelineTrigger interface {
	RunFull(ctx context.Context) (pipeline.Result, error)
	RunCollection(ctx context.Context) (pipeline.CollectionResult, error)
	RunWeekly(ctx context.Context) (pipeline.WeeklyResult, error)
	Tracker() *pipeline.Tracker
}

type Handler struct {
	runner   PipelineTrigger
	articles database.ArticleRepository
	version  string
}
