package http

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 一次 HTTP 请求的参数
//
//	Body:     nil / io.Reader / []byte / 其他值（JSON 序列化）
//	Response: nil / *[]byte（原始响应体）/ 其他指针（JSON 反序列化）
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
}
