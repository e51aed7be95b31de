package service

import (
	"context"
	"errors"
	"testing"

	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
	"peerrate/rating-service/internal/app/rating/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testActor = entity.Actor{UserID: 1, Role: entity.UserRoleEmployer, Token: "token"}

// ===================== NormalizeCategories Tests =====================

func TestNormalizeCategories_Shapes(t *testing.T) {
	rc := entity.RoleContextEmployeeToCompany

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"bare array", `["A","B"]`, []string{"A", "B"}},
		{"wrapped by context", `{"categories":{"EMPLOYEE_TO_COMPANY":["A","B"],"EMPLOYER_TO_EMPLOYEE":["X"]}}`, []string{"A", "B"}},
		{"wrapped array", `{"categories":["A"]}`, []string{"A"}},
		{"top level context", `{"EMPLOYEE_TO_COMPANY":["A"]}`, []string{"A"}},
		{"trim and dedupe", `["  A ","", "B", "A", "  "]`, []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCategories([]byte(tt.raw), rc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCategories_Errors(t *testing.T) {
	rc := entity.RoleContextEmployerToEmployee

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty body", "  ", errCategoriesEmpty},
		{"null", "null", errCategoriesEmpty},
		{"empty array", "[]", errCategoriesEmpty},
		{"only blanks", `["", " "]`, errCategoriesEmpty},
		{"other context only", `{"categories":{"EMPLOYEE_TO_COMPANY":["A"]}}`, errCategoriesEmpty},
		{"non string items", `[1,2]`, errCategoriesMalformed},
		{"scalar", `"A"`, errCategoriesMalformed},
		{"broken json", `{"categories":`, errCategoriesMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCategories([]byte(tt.raw), rc)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, got)
		})
	}
}

// ===================== Resolve Tests =====================

func TestResolve_FromCore(t *testing.T) {
	core := new(mocks.MockCoreAPIClient)
	core.On("FetchCategories", mock.Anything, "token", entity.RoleContextEmployerToEmployee).
		Return([]byte(`{"categories":{"EMPLOYER_TO_EMPLOYEE":["Reliability","Communication"]}}`), nil)

	resolver := NewCategoryResolver(core)

	// Act
	categories, err := resolver.Resolve(context.Background(), testActor, entity.RoleContextEmployerToEmployee)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"Reliability", "Communication"}, categories)
	core.AssertExpectations(t)
}

func TestResolve_FallbackOnFetchError(t *testing.T) {
	core := new(mocks.MockCoreAPIClient)
	core.On("FetchCategories", mock.Anything, "token", entity.RoleContextEmployeeToCompany).
		Return(nil, &infrastructure.APIError{StatusCode: 503, Message: "down"})

	resolver := NewCategoryResolver(core)

	categories, err := resolver.Resolve(context.Background(), testActor, entity.RoleContextEmployeeToCompany)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"Work Environment", "Management Quality", "Career Growth",
		"Work-Life Balance", "Compensation", "Company Culture",
	}, categories)
}

func TestResolve_FallbackOnEmptyAndMalformed(t *testing.T) {
	for _, body := range []string{"", "[]", "<html>", `{"categories":{}}`} {
		core := new(mocks.MockCoreAPIClient)
		core.On("FetchCategories", mock.Anything, mock.Anything, entity.RoleContextEmployerToEmployee).
			Return([]byte(body), nil)

		categories, err := NewCategoryResolver(core).Resolve(context.Background(), testActor, entity.RoleContextEmployerToEmployee)

		require.NoError(t, err, body)
		assert.Equal(t, FallbackCategories(entity.RoleContextEmployerToEmployee), categories, body)
		assert.Len(t, categories, 6)
	}
}

func TestResolve_InvalidRoleContext(t *testing.T) {
	core := new(mocks.MockCoreAPIClient)

	categories, err := NewCategoryResolver(core).Resolve(context.Background(), testActor, entity.RoleContext("COMPANY_TO_COMPANY"))

	assert.True(t, errors.Is(err, entity.ErrInvalidRoleContext))
	assert.Nil(t, categories)
	core.AssertNotCalled(t, "FetchCategories", mock.Anything, mock.Anything, mock.Anything)
}

func TestFallbackCategories_ReturnsCopy(t *testing.T) {
	first := FallbackCategories(entity.RoleContextEmployerToEmployee)
	first[0] = "changed"

	assert.Equal(t, "Technical Skills", FallbackCategories(entity.RoleContextEmployerToEmployee)[0])
}
