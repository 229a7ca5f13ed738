package httpclient

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client HTTP 客户端包装器
type Client struct {
	*resty.Client
}

// Config 客户端配置
type Config struct {
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		RetryCount:       0,
		RetryWaitTime:    100 * time.Millisecond,
		RetryMaxWaitTime: 2 * time.Second,
	}
}

// New 创建新的 HTTP 客户端，零值字段使用默认配置
// 重试仅针对传输错误、429 与 5xx，等待时间按指数退避增长
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWaitTime <= 0 {
		cfg.RetryWaitTime = def.RetryWaitTime
	}
	if cfg.RetryMaxWaitTime <= 0 {
		cfg.RetryMaxWaitTime = def.RetryMaxWaitTime
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(cfg.RetryMaxWaitTime).
		AddRetryCondition(RetryableResponse)

	return &Client{Client: client}
}

// RetryableResponse 判断响应是否值得重试
func RetryableResponse(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	status := resp.StatusCode()
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// WithBaseURL 设置基础 URL
func (c *Client) WithBaseURL(url string) *Client {
	c.SetBaseURL(url)
	return c
}

// WithHeader 设置请求头
func (c *Client) WithHeader(key, value string) *Client {
	c.SetHeader(key, value)
	return c
}

// WithBearerAuth 设置 Bearer 认证
func (c *Client) WithBearerAuth(token string) *Client {
	c.SetAuthScheme("Bearer")
	c.SetAuthToken(token)
	return c
}
