package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wms-budget/internal/domain"
)

// MemoryStore supports the budget engine when DB is disabled.
// Transactions are serialized by a single mutex; each one works on a copy
// of the data and the copy replaces the committed state only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	budgets  map[string]*domain.Budget
	contents map[string]*domain.BudgetContent
	demands  map[string]*domain.BudgetDemand
	order    map[string]int64 // id -> insertion sequence
	seq      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

var _ Store = (*MemoryStore)(nil)

func newMemState() *memState {
	return &memState{
		budgets:  map[string]*domain.Budget{},
		contents: map[string]*domain.BudgetContent{},
		demands:  map[string]*domain.BudgetDemand{},
		order:    map[string]int64{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.budgets {
		c.budgets[k] = v.Clone()
	}
	for k, v := range s.contents {
		c.contents[k] = v.Clone()
	}
	for k, v := range s.demands {
		c.demands[k] = v.Clone()
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	c.seq = s.seq
	return c
}

func (s *memState) nextSeq(id string) {
	s.seq++
	s.order[id] = s.seq
}

// WithTx runs fn against a private working copy.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memoryTx{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type memoryTx struct {
	state *memState
}

func (t *memoryTx) Budgets() BudgetsRepository   { return (*memoryBudgets)(t) }
func (t *memoryTx) Contents() ContentsRepository { return (*memoryContents)(t) }
func (t *memoryTx) Demands() DemandsRepository   { return (*memoryDemands)(t) }

// ---- budgets ----

type memoryBudgets memoryTx

func (r *memoryBudgets) GetBudget(_ context.Context, budgetID string) (*domain.Budget, error) {
	b, ok := r.state.budgets[budgetID]
	if !ok {
		return nil, domain.NewNotFoundError("budget", "budget not found: id=%s", budgetID)
	}
	return b.Clone(), nil
}

func (r *memoryBudgets) LockBudget(ctx context.Context, budgetID string) (*domain.Budget, error) {
	return r.GetBudget(ctx, budgetID)
}

func (r *memoryBudgets) duplicated(b *domain.Budget) bool {
	for _, other := range r.state.budgets {
		if other.BudgetID != b.BudgetID && other.Name == b.Name &&
			other.PhaseID == b.PhaseID && other.BudgetType == b.BudgetType {
			return true
		}
	}
	return false
}

func (r *memoryBudgets) CreateBudget(_ context.Context, budget *domain.Budget) error {
	if r.duplicated(budget) {
		return domain.NewValidationError("budget", "duplicate budget (name=%s, phase_id=%s, budget_type=%s)",
			budget.Name, budget.PhaseID, budget.BudgetType)
	}
	if budget.PilotBudgetID.Valid {
		if _, ok := r.state.budgets[budget.PilotBudgetID.String]; !ok {
			return domain.NewValidationError("budget", "referenced row does not exist (pilot_budget_id=%s)", budget.PilotBudgetID.String)
		}
	}
	budget.BudgetID = uuid.NewString()
	now := time.Now().UTC()
	budget.CreatedAt, budget.UpdatedAt = now, now
	if budget.UpdatedBy == "" {
		budget.UpdatedBy = budget.CreatedBy
	}
	r.state.budgets[budget.BudgetID] = budget.Clone()
	r.state.nextSeq(budget.BudgetID)
	return nil
}

func (r *memoryBudgets) UpdateBudget(_ context.Context, budget *domain.Budget) error {
	cur, ok := r.state.budgets[budget.BudgetID]
	if !ok {
		return domain.NewNotFoundError("budget", "budget not found: id=%s", budget.BudgetID)
	}
	probe := cur.Clone()
	probe.Name = budget.Name
	if r.duplicated(probe) {
		return domain.NewValidationError("budget", "duplicate budget (name=%s, phase_id=%s, budget_type=%s)",
			probe.Name, probe.PhaseID, probe.BudgetType)
	}
	budget.UpdatedAt = time.Now().UTC()
	cur.Name = budget.Name
	cur.IsLock = budget.IsLock
	cur.UpdatedBy = budget.UpdatedBy
	cur.UpdatedAt = budget.UpdatedAt
	return nil
}

func (r *memoryBudgets) DeleteBudget(_ context.Context, budgetID string) error {
	if _, ok := r.state.budgets[budgetID]; !ok {
		return domain.NewNotFoundError("budget", "budget not found: id=%s", budgetID)
	}
	r.cascadeBudget(budgetID)
	return nil
}

func (r *memoryBudgets) cascadeBudget(budgetID string) {
	for id, b := range r.state.budgets {
		if b.PilotBudgetID.Valid && b.PilotBudgetID.String == budgetID {
			r.cascadeBudget(id)
		}
	}
	for id, c := range r.state.contents {
		if c.BudgetID == budgetID {
			(*memoryContents)(r).cascadeContent(id)
		}
	}
	delete(r.state.budgets, budgetID)
	delete(r.state.order, budgetID)
}

func (r *memoryBudgets) extras(pilotBudgetID string) []*domain.Budget {
	out := []*domain.Budget{}
	for _, b := range r.state.budgets {
		if b.IsExtra() && b.PilotBudgetID.Valid && b.PilotBudgetID.String == pilotBudgetID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.state.order[out[i].BudgetID] < r.state.order[out[j].BudgetID]
	})
	return out
}

func (r *memoryBudgets) ListExtraBudgets(_ context.Context, pilotBudgetID string) ([]*domain.Budget, error) {
	extras := r.extras(pilotBudgetID)
	out := make([]*domain.Budget, 0, len(extras))
	for _, b := range extras {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *memoryBudgets) SetExtraBudgetsLock(_ context.Context, pilotBudgetID string, isLock bool, updatedBy string) (int64, error) {
	now := time.Now().UTC()
	var n int64
	for _, b := range r.extras(pilotBudgetID) {
		b.IsLock = isLock
		b.UpdatedBy = updatedBy
		b.UpdatedAt = now
		n++
	}
	return n, nil
}

// ---- contents ----

type memoryContents memoryTx

func (r *memoryContents) GetContent(_ context.Context, contentID string) (*domain.BudgetContent, error) {
	c, ok := r.state.contents[contentID]
	if !ok {
		return nil, domain.NewNotFoundError("budget content", "budget content not found: id=%s", contentID)
	}
	return c.Clone(), nil
}

func (r *memoryContents) find(budgetID, partnumberID string) *domain.BudgetContent {
	for _, c := range r.state.contents {
		if c.BudgetID == budgetID && c.PartnumberID == partnumberID {
			return c
		}
	}
	return nil
}

func (r *memoryContents) ListContents(_ context.Context, budgetID string) ([]*domain.BudgetContent, error) {
	out := []*domain.BudgetContent{}
	for _, c := range r.state.contents {
		if c.BudgetID == budgetID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.state.order[out[i].ContentID] < r.state.order[out[j].ContentID]
	})
	return out, nil
}

func (r *memoryContents) CreateContent(_ context.Context, content *domain.BudgetContent) error {
	if _, ok := r.state.budgets[content.BudgetID]; !ok {
		return domain.NewValidationError("budget content", "referenced row does not exist (budget_id=%s)", content.BudgetID)
	}
	if r.find(content.BudgetID, content.PartnumberID) != nil {
		return domain.NewValidationError("budget content", "duplicate budget content (partnumber_id=%s, budget_id=%s)",
			content.PartnumberID, content.BudgetID)
	}
	content.ContentID = uuid.NewString()
	now := time.Now().UTC()
	content.CreatedAt, content.UpdatedAt = now, now
	if content.PartNo == "" {
		content.PartNo = domain.DefaultPartNo
	}
	if content.UpdatedBy == "" {
		content.UpdatedBy = content.CreatedBy
	}
	r.state.contents[content.ContentID] = content.Clone()
	r.state.nextSeq(content.ContentID)
	return nil
}

func (r *memoryContents) UpdateContent(_ context.Context, content *domain.BudgetContent) error {
	cur, ok := r.state.contents[content.ContentID]
	if !ok {
		return domain.NewNotFoundError("budget content", "budget content not found: id=%s", content.ContentID)
	}
	content.UpdatedAt = time.Now().UTC()
	next := content.Clone()
	next.PartnumberID = cur.PartnumberID
	next.BudgetID = cur.BudgetID
	next.CreatedBy = cur.CreatedBy
	next.CreatedAt = cur.CreatedAt
	r.state.contents[content.ContentID] = next
	return nil
}

func (r *memoryContents) DeleteContent(_ context.Context, contentID string) error {
	if _, ok := r.state.contents[contentID]; !ok {
		return domain.NewNotFoundError("budget content", "budget content not found: id=%s", contentID)
	}
	r.cascadeContent(contentID)
	return nil
}

func (r *memoryContents) cascadeContent(contentID string) {
	for id, d := range r.state.demands {
		if d.ContentID == contentID {
			delete(r.state.demands, id)
			delete(r.state.order, id)
		}
	}
	delete(r.state.contents, contentID)
	delete(r.state.order, contentID)
}

func (r *memoryContents) DeleteContentsByPartnumbers(_ context.Context, budgetID string, partnumberIDs []string) (int64, error) {
	drop := make(map[string]struct{}, len(partnumberIDs))
	for _, id := range partnumberIDs {
		drop[id] = struct{}{}
	}
	var n int64
	for id, c := range r.state.contents {
		if c.BudgetID != budgetID {
			continue
		}
		if _, ok := drop[c.PartnumberID]; ok {
			r.cascadeContent(id)
			n++
		}
	}
	return n, nil
}

// ---- demands ----

type memoryDemands memoryTx

func (r *memoryDemands) GetDemand(_ context.Context, demandID string) (*domain.BudgetDemand, error) {
	d, ok := r.state.demands[demandID]
	if !ok {
		return nil, domain.NewNotFoundError("budget demand", "budget demand not found: id=%s", demandID)
	}
	return d.Clone(), nil
}

func (r *memoryDemands) find(contentID, function string) *domain.BudgetDemand {
	for _, d := range r.state.demands {
		if d.ContentID == contentID && d.Function == function {
			return d
		}
	}
	return nil
}

func (r *memoryDemands) GetDemandByFunction(_ context.Context, contentID, function string) (*domain.BudgetDemand, error) {
	d := r.find(contentID, function)
	if d == nil {
		return nil, domain.NewNotFoundError("budget demand", "budget demand not found: id=%s", function)
	}
	return d.Clone(), nil
}

func sortDemands(ds []*domain.BudgetDemand) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].ContentID != ds[j].ContentID {
			return ds[i].ContentID < ds[j].ContentID
		}
		return ds[i].Function < ds[j].Function
	})
}

func (r *memoryDemands) ListDemands(_ context.Context, contentID string) ([]*domain.BudgetDemand, error) {
	out := []*domain.BudgetDemand{}
	for _, d := range r.state.demands {
		if d.ContentID == contentID {
			out = append(out, d.Clone())
		}
	}
	sortDemands(out)
	return out, nil
}

func (r *memoryDemands) ListDemandsByBudget(_ context.Context, budgetID string) (map[string][]*domain.BudgetDemand, error) {
	all := []*domain.BudgetDemand{}
	for _, d := range r.state.demands {
		if c, ok := r.state.contents[d.ContentID]; ok && c.BudgetID == budgetID {
			all = append(all, d.Clone())
		}
	}
	sortDemands(all)
	grouped := make(map[string][]*domain.BudgetDemand)
	for _, d := range all {
		grouped[d.ContentID] = append(grouped[d.ContentID], d)
	}
	return grouped, nil
}

func (r *memoryDemands) CreateDemand(_ context.Context, demand *domain.BudgetDemand) error {
	if _, ok := r.state.contents[demand.ContentID]; !ok {
		return domain.NewValidationError("budget demand", "referenced row does not exist (content_id=%s)", demand.ContentID)
	}
	if r.find(demand.ContentID, demand.Function) != nil {
		return domain.NewValidationError("budget demand", "duplicate budget demand (function=%s, content_id=%s)",
			demand.Function, demand.ContentID)
	}
	demand.DemandID = uuid.NewString()
	now := time.Now().UTC()
	demand.CreatedAt, demand.UpdatedAt = now, now
	if demand.UpdatedBy == "" {
		demand.UpdatedBy = demand.CreatedBy
	}
	r.state.demands[demand.DemandID] = demand.Clone()
	r.state.nextSeq(demand.DemandID)
	return nil
}

func (r *memoryDemands) UpdateDemand(_ context.Context, demand *domain.BudgetDemand) error {
	cur, ok := r.state.demands[demand.DemandID]
	if !ok {
		return domain.NewNotFoundError("budget demand", "budget demand not found: id=%s", demand.DemandID)
	}
	demand.UpdatedAt = time.Now().UTC()
	cur.DemandQty = demand.DemandQty
	cur.UpdatedBy = demand.UpdatedBy
	cur.UpdatedAt = demand.UpdatedAt
	return nil
}

func (r *memoryDemands) DeleteDemand(_ context.Context, demandID string) error {
	if _, ok := r.state.demands[demandID]; !ok {
		return domain.NewNotFoundError("budget demand", "budget demand not found: id=%s", demandID)
	}
	delete(r.state.demands, demandID)
	delete(r.state.order, demandID)
	return nil
}

func (r *memoryDemands) DeleteDemandsByFunctions(_ context.Context, contentID string, functions []string) (int64, error) {
	drop := make(map[string]struct{}, len(functions))
	for _, f := range functions {
		drop[f] = struct{}{}
	}
	var n int64
	for id, d := range r.state.demands {
		if d.ContentID != contentID {
			continue
		}
		if _, ok := drop[d.Function]; ok {
			delete(r.state.demands, id)
			delete(r.state.order, id)
			n++
		}
	}
	return n, nil
}
