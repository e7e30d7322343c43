package recordstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/member-records/internal/domain/education"
)

// testClientConfig returns a config suitable for unit tests: generous rate
// limits and no minimum interval, so tests never sleep.
func testClientConfig(baseURL string) ClientConfig {
	config := DefaultClientConfig(baseURL)
	config.RateLimiterConfig = RateLimiterConfig{
		RequestsPerSecond: 1000,
		BurstSize:         1000,
		MinInterval:       0,
		WaitTimeout:       time.Second,
	}
	config.PageSize = 2
	return config
}

func TestClient_FindRecordsByCategory_Pagination(t *testing.T) {
	pages := map[string][]EducationRecordDTO{
		"1": {
			{ID: "r1", SubjectID: "s1", GraduationYear: "2027", Category: "STUDENT"},
			{ID: "r2", SubjectID: "s2", GraduationYear: "2026", Category: "STUDENT"},
		},
		"2": {
			{ID: "r3", SubjectID: "s3", GraduationYear: "2028", Category: "STUDENT"},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/education-records", r.URL.Path)
		assert.Equal(t, "STUDENT", r.URL.Query().Get("category"))

		page := r.URL.Query().Get("page")
		data := pages[page]
		json.NewEncoder(w).Encode(APIResponse[[]EducationRecordDTO]{
			Success: true,
			Data:    data,
			Meta:    &Meta{Page: atoi(page), PerPage: 2, TotalPages: 2, TotalCount: 3},
		})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	records, rejected, err := client.FindRecordsByCategory(context.Background(), education.CategoryStudent)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, records, 3)
	assert.Equal(t, education.RecordID("r1"), records[0].ID)
	assert.Equal(t, education.RecordID("r3"), records[2].ID)
}

func TestClient_FindRecordsByCategory_SkipsInvalidRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(APIResponse[[]EducationRecordDTO]{
			Success: true,
			Data: []EducationRecordDTO{
				{ID: "r1", SubjectID: "s1", GraduationYear: "2027", Category: "STUDENT"},
				{ID: "r2", SubjectID: "s2", GraduationYear: "2026", Category: "BOGUS"},
			},
			Meta: &Meta{Page: 1, PerPage: 2, TotalPages: 1, TotalCount: 2},
		})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	records, rejected, err := client.FindRecordsByCategory(context.Background(), education.CategoryStudent)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Error(), "r2")
}

func TestClient_UpdateRecordCategory(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody UpdateCategoryDTO

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(APIResponse[EducationRecordDTO]{Success: true})
	}))
	defer server.Close()

	config := testClientConfig(server.URL)
	config.APIKey = "secret"
	client := NewClient(config)

	err := client.UpdateRecordCategory(context.Background(), "r1", education.CategoryNewGraduated)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/v1/education-records/r1/category", gotPath)
	assert.Equal(t, "NEW_GRADUATED", gotBody.Category)
}

func TestClient_UpdateRecordCategory_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(APIErrorDTO{Code: "NOT_FOUND", Message: "no such record"})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	err := client.UpdateRecordCategory(context.Background(), "missing", education.CategoryGraduated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such record")
}

func TestClient_CountRecordsByCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode(APIResponse[[]EducationRecordDTO]{
			Success: true,
			Data:    []EducationRecordDTO{{ID: "r1", SubjectID: "s1", GraduationYear: "2027", Category: "STUDENT"}},
			Meta:    &Meta{Page: 1, PerPage: 1, TotalPages: 42, TotalCount: 42},
		})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	count, err := client.CountRecordsByCategory(context.Background(), education.CategoryStudent)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(APIResponse[[]EducationRecordDTO]{
			Success: true,
			Meta:    &Meta{Page: 1, PerPage: 1, TotalPages: 0, TotalCount: 0},
		})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	count, err := client.CountRecordsByCategory(context.Background(), education.CategoryStudent)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 3, calls)
}

func TestClient_IsHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(APIResponse[map[string]any]{Success: true})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	assert.True(t, client.IsHealthy(context.Background()))

	server.Close()
	assert.False(t, client.IsHealthy(context.Background()))
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:   3,
		SuccessThreshold:   1,
		Timeout:            time.Hour,
		HalfOpenMaxRetries: 1,
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow())
		cb.RecordFailure()
	}

	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.001, // effectively no refill during the test
		BurstSize:         2,
		MinInterval:       0,
		WaitTimeout:       10 * time.Millisecond,
	})

	ctx := context.Background()
	require.NoError(t, rl.Allow(ctx))
	require.NoError(t, rl.Allow(ctx))

	err := rl.Allow(ctx)
	require.Error(t, err)
	var rateLimitErr *RateLimitError
	assert.ErrorAs(t, err, &rateLimitErr)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
