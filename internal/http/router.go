package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes /health
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}

// RegisterBudgetRoutes 注册 /budget/api/v1/ 下所有路由
func (r *Router) RegisterBudgetRoutes(budgets *BudgetHandler, contents *ContentHandler) {
	r.mux.Handle("/budget/api/v1/budgets", budgets)
	r.mux.Handle("/budget/api/v1/budgets/synchronize/", budgets)
	r.mux.Handle("/budget/api/v1/budgets/export", contents)
	r.mux.Handle("/budget/api/v1/budgets/content", contents)
	r.mux.Handle("/budget/api/v1/budgets/content/list", contents)
	r.mux.Handle("/budget/api/v1/budgets/demand", contents)
}
