package display

// Result 统一响应结构
// - code: 2000 成功
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultConflict 当前会话状态不允许该操作
	ResultConflict = 4090
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// Warn 请求合法但暂无数据（例如还没有估计结果）
func Warn(message string) Result[any] {
	return Result[any]{Code: ResultSuccess, Type: "warning", Message: message, Result: nil}
}

// Conflict 状态冲突
func Conflict(message string) Result[any] {
	return Result[any]{Code: ResultConflict, Type: "error", Message: message, Result: nil}
}
