package service

import (
	"context"
	"strings"

	"wms-budget/internal/domain"
	"wms-budget/internal/repository"
)

// DefaultUnrestrictedRole 不受 function 限制的角色
const DefaultUnrestrictedRole = "LL"

// Operation 写操作类型
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// AccessGuard 预算 / 内容 / 需求写操作前的锁定与权限检查
type AccessGuard struct {
	unrestricted map[string]bool
}

// NewAccessGuard 创建 AccessGuard；roles 为空时使用 DefaultUnrestrictedRole
func NewAccessGuard(unrestrictedRoles []string) *AccessGuard {
	m := make(map[string]bool, len(unrestrictedRoles))
	for _, r := range unrestrictedRoles {
		if r = strings.TrimSpace(r); r != "" {
			m[r] = true
		}
	}
	if len(m) == 0 {
		m[DefaultUnrestrictedRole] = true
	}
	return &AccessGuard{unrestricted: m}
}

// CheckUnlocked 预算锁定时拒绝修改其内容
func (g *AccessGuard) CheckUnlocked(budget *domain.Budget) error {
	if budget.IsLock {
		return domain.NewConflictError("budget", "budget %s is locked, content and demand cannot be modified", budget.Name)
	}
	return nil
}

// CheckManualEdit PILOT 预算的内容只能由同步写入
func (g *AccessGuard) CheckManualEdit(budget *domain.Budget) error {
	if budget.IsPilot() {
		return domain.NewValidationError("budget content", "content of PILOT budget %s cannot be modified manually", budget.Name)
	}
	return nil
}

// CheckFunctionOverlap 操作者 function 必须与内容行的需求 function 有交集
func (g *AccessGuard) CheckFunctionOverlap(identity domain.Identity, demands []*domain.BudgetDemand) error {
	if identity.HasAnyRole(g.unrestricted) {
		return nil
	}
	if len(demands) == 0 {
		return nil
	}
	functions := domain.Functions(demands)
	if !identity.SharesFunction(functions) {
		return domain.NewForbiddenError("budget content",
			"user %s (functions %v) cannot modify content demanded by %v", identity.Actor(), identity.Functions, functions)
	}
	return nil
}

// ContentTarget 被修改的内容行（insert 时 Content 为 nil）
type ContentTarget struct {
	Budget  *domain.Budget
	Content *domain.BudgetContent
	Manual  bool // 人工修改（对 PILOT 预算禁止）
}

// Guard 组合检查：人工修改限制 → 锁定 → 跨 function（update / delete）
func (g *AccessGuard) Guard(ctx context.Context, tx repository.Tx, identity domain.Identity, op Operation, target ContentTarget) error {
	if target.Manual {
		if err := g.CheckManualEdit(target.Budget); err != nil {
			return err
		}
	}
	if err := g.CheckUnlocked(target.Budget); err != nil {
		return err
	}
	if op == OpInsert || target.Content == nil {
		return nil
	}
	demands, err := tx.Demands().ListDemands(ctx, target.Content.ContentID)
	if err != nil {
		return err
	}
	return g.CheckFunctionOverlap(identity, demands)
}
