package httpapi

// Result 与 fixture/station 客户端约定保持一致：
// - ok: 请求是否成功
// - error: 失败原因（仅失败时）
// - 其余字段由各 handler 填充（sn / job / gate / unit ...）
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func Ok() Result {
	return Result{OK: true}
}

func Fail(message string) Result {
	return Result{OK: false, Error: message}
}
