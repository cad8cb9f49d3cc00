package http

import (
	"context"
	"time"
)

type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	// Body 支持 io.Reader、[]byte，其余类型按 JSON 序列化
	Body interface{}
	// Response 非空时把响应体按 JSON 反序列化到这里
	Response interface{}

	Timeout time.Duration
}
