package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
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

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAuthRoutes 注册操作员登录/登出路由
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("/mes/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Login(w, req)
	})
	r.Handle("/mes/api/v1/auth/logout", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Logout(w, req)
	})
}

// RegisterUnitRoutes 注册序列化单元生命周期路由
func (r *Router) RegisterUnitRoutes(h *UnitHandler) {
	r.HandleHandler("/mes/api/v1/units/", h)
}

// RegisterTestResultRoutes 注册治具测试上报路由
func (r *Router) RegisterTestResultRoutes(h *TestResultHandler) {
	r.HandleHandler("/mes/api/v1/test-results", h)
}

// RegisterPrintJobRoutes 注册打印队列路由
func (r *Router) RegisterPrintJobRoutes(h *PrintJobHandler) {
	r.HandleHandler("/mes/api/v1/print-jobs", h)
	r.HandleHandler("/mes/api/v1/print-jobs/", h)
}

// RegisterProductionOrderRoutes 注册生产工单路由
func (r *Router) RegisterProductionOrderRoutes(h *ProductionOrderHandler) {
	r.HandleHandler("/mes/api/v1/production-orders", h)
	r.HandleHandler("/mes/api/v1/production-orders/", h)
}

// RegisterInventoryRoutes 注册库存流水路由
func (r *Router) RegisterInventoryRoutes(h *InventoryHandler) {
	r.HandleHandler("/mes/api/v1/inventory/move", h)
}

// RegisterHealthRoutes liveness probe
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok())
	})
}
