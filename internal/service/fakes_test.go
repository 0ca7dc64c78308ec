package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wms-budget/internal/domain"
	"wms-budget/internal/repository"
)

type fakeDemandSource struct {
	mu          sync.Mutex
	tasks       map[string]*domain.SourceTask
	demand      map[string][]domain.PartDemand
	demandCalls int
}

func newFakeDemandSource() *fakeDemandSource {
	return &fakeDemandSource{
		tasks:  map[string]*domain.SourceTask{},
		demand: map[string][]domain.PartDemand{},
	}
}

func (f *fakeDemandSource) addTask(taskID string, status domain.TaskStatus, demand ...domain.PartDemand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[taskID] = &domain.SourceTask{TaskID: taskID, TaskType: domain.TaskTypeEQList, TaskStatus: status, ProductCode: "PRD"}
	f.demand[taskID] = demand
}

func (f *fakeDemandSource) setDemand(taskID string, demand ...domain.PartDemand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.demand[taskID] = demand
}

func (f *fakeDemandSource) GetSourceTask(_ context.Context, taskID string) (*domain.SourceTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.NewNotFoundError("source task", "task not found: id=%s", taskID)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeDemandSource) GetPartnumberDemand(_ context.Context, taskID string) ([]domain.PartDemand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.demandCalls++
	return append([]domain.PartDemand(nil), f.demand[taskID]...), nil
}

type fakeCatalog struct {
	parts map[string]*domain.Partnumber
}

func (f *fakeCatalog) GetPartnumber(_ context.Context, id string) (*domain.Partnumber, error) {
	p, ok := f.parts[id]
	if !ok {
		return nil, domain.NewNotFoundError("partnumber", "partnumber not found: id=%s", id)
	}
	cp := *p
	return &cp, nil
}

type fakeRates struct {
	rates map[string]decimal.Decimal
}

func (f *fakeRates) GetExchangeRateToUSD(_ context.Context, currency string) (decimal.Decimal, error) {
	r, ok := f.rates[currency]
	if !ok {
		return decimal.Zero, errors.New("unknown currency " + currency)
	}
	return r, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.BudgetEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.BudgetEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) last() domain.BudgetEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	store     *repository.MemoryStore
	demands   *fakeDemandSource
	catalog   *fakeCatalog
	rates     *fakeRates
	publisher *recordingPublisher
	budgets   *BudgetService
	contents  *ContentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		store:   repository.NewMemoryStore(),
		demands: newFakeDemandSource(),
		catalog: &fakeCatalog{parts: map[string]*domain.Partnumber{
			"pn-A": {PartnumberID: "pn-A", PartNo: "PN-A-001", Price: decimal.RequireFromString("100.5"), Currency: "TWD"},
			"pn-B": {PartnumberID: "pn-B", PartNo: "PN-B-001", Price: decimal.RequireFromString("2"), Currency: "USD"},
			"pn-C": {PartnumberID: "pn-C", PartNo: domain.DefaultPartNo, Price: decimal.RequireFromString("7.25"), Currency: "TWD"},
		}},
		rates: &fakeRates{rates: map[string]decimal.Decimal{
			"TWD": decimal.RequireFromString("0.031"),
			"USD": decimal.NewFromInt(1),
		}},
		publisher: &recordingPublisher{},
	}
	guard := NewAccessGuard([]string{DefaultUnrestrictedRole})
	hierarchy := NewBudgetHierarchy(guard, f.demands)
	reconciler := NewContentReconciler(guard, f.demands, f.catalog, f.rates, logger)
	f.budgets = NewBudgetService(f.store, hierarchy, reconciler, f.publisher, logger)
	f.contents = NewContentService(f.store, guard, f.catalog, f.rates, logger)
	return f
}

var (
	admin  = domain.Identity{UserID: "u-ll", Account: "ll.admin", Roles: []string{"LL"}}
	qaUser = domain.Identity{UserID: "u-qa", Account: "qa.user", Roles: []string{"USER"}, Functions: []string{"QA"}}
	peUser = domain.Identity{UserID: "u-pe", Account: "pe.user", Roles: []string{"USER"}, Functions: []string{"PE"}}
	rdUser = domain.Identity{UserID: "u-rd", Account: "rd.user", Roles: []string{"USER"}, Functions: []string{"RD"}}
)

func partDemand(pn string, total, onHand int, fds ...domain.FunctionDemand) domain.PartDemand {
	return domain.PartDemand{PartnumberID: pn, TotalDemandQty: total, OnHandQty: onHand, FunctionDemandList: fds}
}

func fd(function string, qty int) domain.FunctionDemand {
	return domain.FunctionDemand{Function: function, DemandQty: qty}
}

func (f *fixture) lines(t *testing.T, budgetID string) map[string]ContentLineView {
	t.Helper()
	lines, err := f.contents.ListContentLines(context.Background(), budgetID)
	if err != nil {
		t.Fatalf("list content lines: %v", err)
	}
	out := make(map[string]ContentLineView, len(lines))
	for _, l := range lines {
		out[l.Content.PartnumberID] = l
	}
	return out
}

func demandQty(line ContentLineView) map[string]int {
	out := map[string]int{}
	for _, d := range line.Demands {
		out[d.Function] = d.DemandQty
	}
	return out
}
