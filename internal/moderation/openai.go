package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/ding113/moderation-gateway/internal/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

// OpenAIConfig OpenAI moderations 客户端配置
type OpenAIConfig struct {
	APIKey           string
	BaseURL          string
	Model            string
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
}

// OpenAIClassifier 基于 OpenAI moderations API 的远程分类器
type OpenAIClassifier struct {
	client  *httpclient.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClassifier 创建 OpenAI 分类器
func NewOpenAIClassifier(cfg OpenAIConfig) *OpenAIClassifier {
	client := httpclient.New(httpclient.Config{
		Timeout:          cfg.Timeout,
		RetryCount:       cfg.RetryCount,
		RetryWaitTime:    cfg.RetryWaitTime,
		RetryMaxWaitTime: cfg.RetryMaxWaitTime,
	}).
		WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		WithHeader("Content-Type", "application/json").
		WithBearerAuth(cfg.APIKey)

	return &OpenAIClassifier{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// moderationRequest 请求体
type moderationRequest struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

// moderationResponse 响应体
type moderationResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Results []moderationResult `json:"results"`
}

// moderationResult 单条结果；字段为指针以区分"缺失"与"false/0"
type moderationResult struct {
	Flagged        *bool          `json:"flagged"`
	Categories     wireCategories `json:"categories"`
	CategoryScores wireScores     `json:"category_scores"`
}

// wireCategories 上游类别标记（使用上游的键名）
type wireCategories struct {
	Sexual          *bool `json:"sexual"`
	Hate            *bool `json:"hate"`
	Violence        *bool `json:"violence"`
	SelfHarm        *bool `json:"self-harm"`
	SexualMinors    *bool `json:"sexual/minors"`
	HateThreatening *bool `json:"hate/threatening"`
	ViolenceGraphic *bool `json:"violence/graphic"`
}

// wireScores 上游类别分数（使用上游的键名）
type wireScores struct {
	Sexual          *float64 `json:"sexual"`
	Hate            *float64 `json:"hate"`
	Violence        *float64 `json:"violence"`
	SelfHarm        *float64 `json:"self-harm"`
	SexualMinors    *float64 `json:"sexual/minors"`
	HateThreatening *float64 `json:"hate/threatening"`
	ViolenceGraphic *float64 `json:"violence/graphic"`
}

// errorResponse 上游错误体
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c wireCategories) toMap() (map[model.Category]bool, error) {
	fields := map[model.Category]*bool{
		model.CategorySexual:          c.Sexual,
		model.CategoryHate:            c.Hate,
		model.CategoryViolence:        c.Violence,
		model.CategorySelfHarm:        c.SelfHarm,
		model.CategorySexualMinors:    c.SexualMinors,
		model.CategoryHateThreatening: c.HateThreatening,
		model.CategoryViolenceGraphic: c.ViolenceGraphic,
	}

	out := make(map[model.Category]bool, len(fields))
	for category, v := range fields {
		if v == nil {
			return nil, fmt.Errorf("missing category %q", category)
		}
		out[category] = *v
	}
	return out, nil
}

func (s wireScores) toMap() (map[model.Category]float64, error) {
	fields := map[model.Category]*float64{
		model.CategorySexual:          s.Sexual,
		model.CategoryHate:            s.Hate,
		model.CategoryViolence:        s.Violence,
		model.CategorySelfHarm:        s.SelfHarm,
		model.CategorySexualMinors:    s.SexualMinors,
		model.CategoryHateThreatening: s.HateThreatening,
		model.CategoryViolenceGraphic: s.ViolenceGraphic,
	}

	out := make(map[model.Category]float64, len(fields))
	for category, v := range fields {
		if v == nil {
			return nil, fmt.Errorf("missing score %q", category)
		}
		if !validScore(*v) {
			return nil, fmt.Errorf("score %q out of range: %v", category, *v)
		}
		out[category] = *v
	}
	return out, nil
}

// verdict 校验响应并转换为 RemoteVerdict
func (r *moderationResponse) verdict() (*RemoteVerdict, error) {
	if len(r.Results) == 0 {
		return nil, fmt.Errorf("response contains no results")
	}

	result := r.Results[0]
	if result.Flagged == nil {
		return nil, fmt.Errorf("missing flagged")
	}

	categories, err := result.Categories.toMap()
	if err != nil {
		return nil, err
	}
	scores, err := result.CategoryScores.toMap()
	if err != nil {
		return nil, err
	}

	return &RemoteVerdict{
		Flagged:    *result.Flagged,
		Categories: categories,
		Scores:     scores,
	}, nil
}

// Classify 调用 moderations 接口
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (*RemoteVerdict, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(moderationRequest{Input: text, Model: c.model}).
		Post("/moderations")
	if err != nil {
		return nil, errors.NewClassifierTransportError(err)
	}

	if resp.IsError() {
		return nil, upstreamError(resp)
	}

	var body moderationResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errors.NewClassifierError(
			errors.ClassifierMalformedResponse, resp.StatusCode(), "invalid JSON response", err)
	}

	verdict, err := body.verdict()
	if err != nil {
		return nil, errors.NewClassifierError(
			errors.ClassifierMalformedResponse, resp.StatusCode(), err.Error(), err)
	}

	return verdict, nil
}

// upstreamError 将非 2xx 响应转换为分类器错误
func upstreamError(resp *resty.Response) *errors.ClassifierError {
	status := resp.StatusCode()
	message := strings.TrimSpace(resp.String())

	var body errorResponse
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error.Message != "" {
		message = body.Error.Message
	}
	if message == "" {
		message = resp.Status()
	}

	return errors.NewClassifierError(errors.ClassifierKindForStatus(status), status, message, nil)
}
