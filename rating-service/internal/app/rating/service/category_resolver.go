package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"peerrate/pkg/logger"
	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
)

var (
	errCategoriesEmpty     = errors.New("rating categories response is empty")
	errCategoriesMalformed = errors.New("rating categories response has unknown shape")
)

// Причины перехода на встроенный список, метка reason в метрике
const (
	fallbackReasonFetchError = "fetch_error"
	fallbackReasonEmpty      = "empty"
	fallbackReasonMalformed  = "malformed"
)

// fallbackCategories - встроенные категории на случай недоступности Core API
var fallbackCategories = map[entity.RoleContext][]string{
	entity.RoleContextEmployeeToCompany: {
		"Work Environment",
		"Management Quality",
		"Career Growth",
		"Work-Life Balance",
		"Compensation",
		"Company Culture",
	},
	entity.RoleContextEmployerToEmployee: {
		"Technical Skills",
		"Communication",
		"Reliability",
		"Team Collaboration",
		"Problem Solving",
		"Professionalism",
	},
}

// FallbackCategories возвращает копию встроенного списка категорий для контекста
func FallbackCategories(rc entity.RoleContext) []string {
	categories := fallbackCategories[rc]
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// CategoryResolver получает список категорий оценки для контекста.
// Результат никогда не пустой: при любой проблеме с Core API используется встроенный список
type CategoryResolver struct {
	core infrastructure.CoreAPIClient
}

func NewCategoryResolver(core infrastructure.CoreAPIClient) *CategoryResolver {
	return &CategoryResolver{core: core}
}

func (r *CategoryResolver) Resolve(ctx context.Context, actor entity.Actor, rc entity.RoleContext) ([]string, error) {
	if !rc.Valid() {
		return nil, entity.ErrInvalidRoleContext
	}

	raw, err := r.core.FetchCategories(ctx, actor.Token, rc)
	if err != nil {
		return r.fallback(rc, fallbackReasonFetchError, err), nil
	}

	categories, err := NormalizeCategories(raw, rc)
	if err != nil {
		reason := fallbackReasonMalformed
		if errors.Is(err, errCategoriesEmpty) {
			reason = fallbackReasonEmpty
		}
		return r.fallback(rc, reason, err), nil
	}

	return categories, nil
}

func (r *CategoryResolver) fallback(rc entity.RoleContext, reason string, cause error) []string {
	logger.Warn().
		Err(cause).
		Str("role_context", string(rc)).
		Str("reason", reason).
		Msg("Using fallback rating categories")
	metrics.RecordCategoryFallback(string(rc), reason)

	return FallbackCategories(rc)
}

// NormalizeCategories приводит ответ Core API к списку категорий.
// Поддерживаемые формы:
//
//	["A", "B"]
//	{"categories": {"EMPLOYEE_TO_COMPANY": ["A", "B"]}}
//	{"EMPLOYEE_TO_COMPANY": ["A", "B"]}
//
// Пробелы обрезаются, пустые значения и повторы отбрасываются.
func NormalizeCategories(raw []byte, rc entity.RoleContext) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errCategoriesEmpty
	}

	var list []string
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, errCategoriesMalformed
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errCategoriesMalformed
		}
		found, err := categoriesFromObject(obj, rc)
		if err != nil {
			return nil, err
		}
		list = found
	default:
		return nil, errCategoriesMalformed
	}

	cleaned := cleanCategories(list)
	if len(cleaned) == 0 {
		return nil, errCategoriesEmpty
	}
	return cleaned, nil
}

func categoriesFromObject(obj map[string]json.RawMessage, rc entity.RoleContext) ([]string, error) {
	if wrapped, ok := obj["categories"]; ok {
		wrapped = bytes.TrimSpace(wrapped)
		if len(wrapped) > 0 && wrapped[0] == '[' {
			var list []string
			if err := json.Unmarshal(wrapped, &list); err != nil {
				return nil, errCategoriesMalformed
			}
			return list, nil
		}

		var byContext map[string]json.RawMessage
		if err := json.Unmarshal(wrapped, &byContext); err != nil {
			return nil, errCategoriesMalformed
		}
		obj = byContext
	}

	value, ok := obj[string(rc)]
	if !ok {
		return nil, errCategoriesEmpty
	}

	var list []string
	if err := json.Unmarshal(value, &list); err != nil {
		return nil, errCategoriesMalformed
	}
	return list, nil
}

func cleanCategories(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, category := range list {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		out = append(out, category)
	}
	return out
}
