package models

// RequestInfo 是访问日志中记录的 HTTP 请求信息。
type RequestInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent,omitempty"`
	Status     int    `json:"status"`
	LatencyMs  int64  `json:"latency_ms"`
}

// ErrorInfo 是日志中记录的错误信息。
type ErrorInfo struct {
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`        // 错误分类，例如 "database_error"
	StatusCode int    `json:"status_code,omitempty"` // 返回给客户端的 HTTP 状态码
}
