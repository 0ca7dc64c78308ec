package domain

// Identity 操作者身份（显式传入每个修改操作）
type Identity struct {
	UserID    string
	Account   string
	Roles     []string
	Functions []string
}

// HasAnyRole 是否持有任一角色
func (i Identity) HasAnyRole(roles map[string]bool) bool {
	for _, r := range i.Roles {
		if roles[r] {
			return true
		}
	}
	return false
}

// SharesFunction 操作者 function 集合与给定集合是否有交集
func (i Identity) SharesFunction(functions []string) bool {
	own := make(map[string]struct{}, len(i.Functions))
	for _, f := range i.Functions {
		own[f] = struct{}{}
	}
	for _, f := range functions {
		if _, ok := own[f]; ok {
			return true
		}
	}
	return false
}

// Actor 写入 created_by / updated_by 的值，优先使用账号
func (i Identity) Actor() string {
	if i.Account != "" {
		return i.Account
	}
	return i.UserID
}
