package searchdex

import (
	"context"

	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	runFn   func(q *searchuc.Query) (*searchuc.ResultSet, error)
	countFn func(ctx context.Context, q *searchuc.Query) (int, error)
	mltFn   func(ctx context.Context, obj model.Object) (*result.Response, error)
}

func (m *mockSearchUC) Run(q *searchuc.Query) (*searchuc.ResultSet, error) {
	return m.runFn(q)
}

func (m *mockSearchUC) Count(ctx context.Context, q *searchuc.Query) (int, error) {
	return m.countFn(ctx, q)
}

func (m *mockSearchUC) MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error) {
	return m.mltFn(ctx, obj)
}

// --- indexingUseCase mock ---

type mockIndexingUC struct {
	updateFn func(ctx context.Context, t model.Type, objs []model.Object, commit bool) ([]batch.Result, error)
	removeFn func(ctx context.Context, obj model.Object, commit bool) error
	clearFn  func(ctx context.Context, types []model.Type, commit bool) error
}

func (m *mockIndexingUC) Update(
	ctx context.Context, t model.Type, objs []model.Object, commit bool,
) ([]batch.Result, error) {
	return m.updateFn(ctx, t, objs, commit)
}

func (m *mockIndexingUC) Remove(ctx context.Context, obj model.Object, commit bool) error {
	return m.removeFn(ctx, obj, commit)
}

func (m *mockIndexingUC) Clear(ctx context.Context, types []model.Type, commit bool) error {
	return m.clearFn(ctx, types, commit)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report {
	return m.report
}
