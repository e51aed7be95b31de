package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
)

// Пути Core API
const (
	pathRatingCategories    = "/api/core/rating-categories/"
	pathCheckEligibility    = "/api/core/check-rating-eligibility/"
	pathRatings             = "/api/core/ratings/"
	pathMyRatingsGiven      = "/api/core/my-ratings/given/"
	pathMyRatingsReceived   = "/api/core/my-ratings/received/"
	pathUserStats           = "/api/core/users/%d/stats/"
	pathHealth              = "/api/core/health/"
	maxErrorMessageLength   = 500
	defaultRequestTimeout   = 10 * time.Second
	contentTypeJSON         = "application/json"
	authorizationHeaderName = "Authorization"
)

// CoreClient клиент для взаимодействия с Core API.
// Повторы запросов не выполняются: решение о повторе принимает вызывающий
type CoreClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoreClient создает новый клиент Core API
func NewCoreClient(baseURL string, timeout time.Duration) *CoreClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &CoreClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type eligibilityRequest struct {
	RateeID     int64              `json:"ratee_id"`
	RoleContext entity.RoleContext `json:"role_context"`
}

// FetchCategories получает категории оценки для контекста.
// Тело возвращается как есть, нормализация формы ответа выполняется в сервисе
func (c *CoreClient) FetchCategories(ctx context.Context, token string, rc entity.RoleContext) ([]byte, error) {
	query := url.Values{}
	query.Set("role_context", string(rc))

	return c.getRaw(ctx, token, pathRatingCategories, query)
}

// CheckEligibility проверяет, может ли текущий пользователь оценить ratee
func (c *CoreClient) CheckEligibility(ctx context.Context, token string, rateeID int64, rc entity.RoleContext) (*entity.EligibilityResult, error) {
	body, err := c.do(ctx, http.MethodPost, token, pathCheckEligibility, nil, eligibilityRequest{
		RateeID:     rateeID,
		RoleContext: rc,
	}, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result entity.EligibilityResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode eligibility response: %w", err)
	}

	return &result, nil
}

// CreateRating создает оценку в Core API
func (c *CoreClient) CreateRating(ctx context.Context, token string, req *entity.CreateRatingRequest) (*entity.Rating, error) {
	body, err := c.do(ctx, http.MethodPost, token, pathRatings, nil, req, http.StatusCreated, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var rating entity.Rating
	if err := json.Unmarshal(body, &rating); err != nil {
		return nil, fmt.Errorf("failed to decode rating response: %w", err)
	}

	return &rating, nil
}

func (c *CoreClient) GetMyRatingsGiven(ctx context.Context, token string, page, pageSize int) ([]byte, error) {
	return c.getRaw(ctx, token, pathMyRatingsGiven, pageQuery(page, pageSize))
}

func (c *CoreClient) GetMyRatingsReceived(ctx context.Context, token string, page, pageSize int) ([]byte, error) {
	return c.getRaw(ctx, token, pathMyRatingsReceived, pageQuery(page, pageSize))
}

func (c *CoreClient) GetUserStats(ctx context.Context, token string, userID int64) ([]byte, error) {
	return c.getRaw(ctx, token, fmt.Sprintf(pathUserStats, userID), nil)
}

// Health проверяет доступность Core API
func (c *CoreClient) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "", pathHealth, nil, nil, http.StatusOK)
	return err
}

func (c *CoreClient) getRaw(ctx context.Context, token, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, token, path, query, nil, http.StatusOK)
}

func (c *CoreClient) do(
	ctx context.Context,
	method, token, path string,
	query url.Values,
	payload interface{},
	expected ...int,
) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	// Добавляем JWT токен пользователя для аутентификации в Core API
	if token != "" {
		req.Header.Set(authorizationHeaderName, "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveCoreAPIRequest(method, routeLabel(path), 0, time.Since(start))
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveCoreAPIRequest(method, routeLabel(path), resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	for _, code := range expected {
		if resp.StatusCode == code {
			return body, nil
		}
	}

	return nil, &infrastructure.APIError{
		StatusCode: resp.StatusCode,
		Message:    extractErrorMessage(body, resp.StatusCode),
	}
}

// routeLabel убирает id пользователя из пути для метрик
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/api/core/users/") {
		return pathUserStats
	}
	return path
}

func pageQuery(page, pageSize int) url.Values {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	return query
}

// extractErrorMessage достает текст ошибки из ответа бэкенда.
// Порядок полей: error, message, detail, non_field_errors, details, ошибки полей
func extractErrorMessage(body []byte, status int) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		raw := strings.TrimSpace(string(body))
		if raw == "" {
			return http.StatusText(status)
		}
		if len(raw) > maxErrorMessageLength {
			raw = raw[:maxErrorMessageLength]
		}
		return raw
	}

	for _, key := range []string{"error", "message", "detail"} {
		if msg, ok := parsed[key].(string); ok && msg != "" {
			return msg
		}
	}
	if msgs := stringList(parsed["non_field_errors"]); len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	if details, ok := parsed["details"].(map[string]interface{}); ok {
		if msg := fieldMessages(details); msg != "" {
			return msg
		}
	}
	if msg := fieldMessages(parsed); msg != "" {
		return msg
	}

	return http.StatusText(status)
}

// fieldMessages склеивает ошибки валидации полей вида {"field": ["msg"]}
func fieldMessages(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		if msgs := stringList(fields[key]); len(msgs) > 0 {
			parts = append(parts, key+": "+strings.Join(msgs, ", "))
		}
	}
	return strings.Join(parts, "; ")
}

func stringList(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ infrastructure.CoreAPIClient = (*CoreClient)(nil)
