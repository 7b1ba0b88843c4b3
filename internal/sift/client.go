package sift

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/constants"
	"github.com/featheredtoast/discourse-sift/internal/models"
)

// quoteBlockRE 匹配帖子中的引用块。引用的是别人的内容，
// 不应参与本帖的分类。非贪婪 + 跨行，一个帖子可能有多个引用块。
var quoteBlockRE = regexp.MustCompile(`(?s)\[quote.+?/quote\]`)

// FieldStore 是客户端持久化原始响应所需的最小外部协作面。
type FieldStore interface {
	SaveCustomField(ctx context.Context, postID uint64, name, value string) error
}

// Client 是分类服务的无状态 HTTP/JSON 客户端。
// 两个端点相互独立: 分类提交与裁决上报。所有出站调用都有超时上界，
// 客户端自身从不重试 (重试语义属于任务队列协作方)。
type Client struct {
	cfg    config.SiftConfig
	http   *http.Client
	fields FieldStore
	logger *zap.Logger
}

// NewClient 创建分类服务客户端。
// 配置不完整不是构造错误: 功能生效与否由调用方按
// ClassificationConfigured / ReportingConfigured 判定。
func NewClient(cfg config.SiftConfig, fields FieldStore, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		fields: fields,
		logger: logger,
	}
}

// SubmitForClassification 提交帖子内容分类，永不向调用方抛错:
// 传输失败或非 200 响应时按降级倾向开关合成结果
// (error_is_false_response=true 时合成"未通过"，内容走人工复审)。
// 每次调用 (包括合成结果) 都把原始响应持久化到帖子的 sift 自定义字段。
func (c *Client) SubmitForClassification(ctx context.Context, post *models.Post, author *models.User) Risk {
	payload := map[string]any{
		"category":          fmt.Sprintf("%d", post.CategoryID),
		"subcategory":       fmt.Sprintf("%d", post.TopicID),
		"user_id":           fmt.Sprintf("%d", post.UserID),
		"user_display_name": author.Username,
		"content_id":        fmt.Sprintf("%d", post.ID),
		"text":              c.buildClassifyText(post),
	}
	if c.cfg.LanguageCode != "" {
		payload["language"] = c.cfg.LanguageCode
	} else {
		payload["language"] = constants.LanguageWildcard
	}

	body, err := c.post(ctx, c.cfg.EndPoint, payload)
	if err != nil {
		c.logger.Error("分类服务调用失败，按配置的降级倾向合成结果",
			zap.Uint64("post_id", post.ID),
			zap.Bool("error_is_false_response", c.cfg.ErrorIsFalseResponse),
			zap.Error(err),
		)
		return c.storeAndReturn(ctx, post, FallbackRisk(!c.cfg.ErrorIsFalseResponse))
	}

	risk, parseErr := ParseRisk(body)
	if parseErr != nil {
		c.logger.Error("分类服务响应无法解析，按配置的降级倾向合成结果",
			zap.Uint64("post_id", post.ID),
			zap.Error(parseErr),
		)
		return c.storeAndReturn(ctx, post, FallbackRisk(!c.cfg.ErrorIsFalseResponse))
	}
	return c.storeAndReturn(ctx, post, risk)
}

// storeAndReturn 把原始响应写到帖子的自定义字段上 (外部协作方写入)。
// 写入失败只记日志: 审计字段缺失不应使分类流程失败。
func (c *Client) storeAndReturn(ctx context.Context, post *models.Post, risk Risk) Risk {
	if err := c.fields.SaveCustomField(ctx, post.ID, constants.ResponseCustomField, string(risk.Raw)); err != nil {
		c.logger.Error("持久化分类原始响应失败",
			zap.Uint64("post_id", post.ID),
			zap.Error(err),
		)
	}
	post.RawClassification = risk.Raw
	return risk
}

// SubmitForAction 向裁决上报端点提交版主的认可/否决。
// 本方法运行在尽力而为的后台任务中: 所有传输错误吞掉并记日志，
// 永不向触发方传播失败。
func (c *Client) SubmitForAction(ctx context.Context, post *models.Post, author, moderator *models.User, reason, extraRemarks string) {
	payload := map[string]any{
		"text":                   truncateChars(strings.TrimSpace(post.Raw), constants.MaxClassifyTextChars),
		"reason":                 reason,
		"user_id":                fmt.Sprintf("%d", post.UserID),
		"user_display_name":      author.DisplayName(),
		"moderator_display_name": moderator.DisplayName(),
		"category":               fmt.Sprintf("%d", post.CategoryID),
		"moderator_id":           fmt.Sprintf("%d", moderator.ID),
		"content_id":             fmt.Sprintf("%d", post.ID),
		"subcategory":            fmt.Sprintf("%d", post.TopicID),
	}
	if c.cfg.LanguageCode != "" {
		payload["language"] = c.cfg.LanguageCode
	} else {
		payload["language"] = constants.LanguageWildcard
	}
	if extraRemarks != "" {
		payload["reason_other_text"] = extraRemarks
	}

	// sift_flagged: 分类器本身判定未通过政策。
	// user_flagged: 在分类器标记之外还有真人举报 (标记数超出分类器自身占位)。
	siftFlagged := c.siftFlagged(post)
	userFlagged := post.ActionCount > 0
	if siftFlagged {
		userFlagged = post.ActionCount > 1
	}
	payload["sift_flagged"] = siftFlagged
	payload["user_flagged"] = userFlagged

	if _, err := c.post(ctx, c.cfg.ActionEndPoint, payload); err != nil {
		c.logger.Error("裁决上报失败 (尽力而为，不重试)",
			zap.Uint64("post_id", post.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}
	c.logger.Info("裁决上报成功",
		zap.Uint64("post_id", post.ID),
		zap.String("reason", reason),
		zap.Int64("moderator_id", moderator.ID),
	)
}

// siftFlagged 从帖子上存储的分类结果反推分类器是否标记了该帖。
func (c *Client) siftFlagged(post *models.Post) bool {
	if len(post.RawClassification) == 0 {
		return false
	}
	stored, err := ParseRisk(post.RawClassification)
	if err != nil {
		return false
	}
	return !stored.Response
}

// buildClassifyText 构造分类用文本: 去引用块、削到长度上限，
// 首帖再前置主题标题 (标题只随首帖分类一次)。
func (c *Client) buildClassifyText(post *models.Post) string {
	text := truncateChars(strings.TrimSpace(post.Raw), constants.MaxClassifyTextChars)
	text = quoteBlockRE.ReplaceAllString(text, "")
	if post.IsFirstPost() {
		text = post.TopicTitle + " " + text
	}
	return text
}

// post 统一的出站 POST: 拼 URL、按需注入额外参数、Basic Auth、
// 读响应体。非 200 状态按错误返回。
func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	if c.cfg.ExtraRequestParameter != "" {
		payload[constants.RequestExtraParamField] = c.cfg.ExtraRequestParameter
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	requestURL := strings.TrimRight(c.cfg.APIURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(constants.BasicAuthUser, c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用端点 %s 失败: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("端点 %s 返回非 200 状态: %d", endpoint, resp.StatusCode)
	}
	return respBody, nil
}

// truncateChars 按字符数截断 (不拆多字节字符)。
func truncateChars(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
