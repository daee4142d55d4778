package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/campus-issue-service/internal/auth"
	"github.com/spec-kit/campus-issue-service/internal/config"
	"github.com/spec-kit/campus-issue-service/internal/domain"
	"github.com/spec-kit/campus-issue-service/internal/events"
	"github.com/spec-kit/campus-issue-service/internal/observability"
	"github.com/spec-kit/campus-issue-service/internal/persistence"
	"github.com/spec-kit/campus-issue-service/internal/repository"
	"github.com/spec-kit/campus-issue-service/internal/service"
)

// stub repositories backing the full HTTP stack. They reproduce the Postgres
// contract the services depend on: pgx.ErrNoRows for absent rows and
// conditional writes that fail when the expected pre-state is gone.

type stubUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return fmt.Errorf("duplicate email %s", user.Email)
		}
	}
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.Role == role {
			result = append(result, *user)
		}
	}
	return result, nil
}

type stubIssueRepo struct {
	mu     sync.Mutex
	seq    int
	users  *stubUserRepo
	issues map[string]*domain.Issue
}

func newStubIssueRepo(users *stubUserRepo) *stubIssueRepo {
	return &stubIssueRepo{users: users, issues: make(map[string]*domain.Issue)}
}

func (r *stubIssueRepo) Create(_ context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	issue.ID = fmt.Sprintf("issue-%d", r.seq)
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt
	clone := *issue
	r.issues[issue.ID] = &clone
	return nil
}

func (r *stubIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *issue
	return &clone, nil
}

func (r *stubIssueRepo) ListWithFilter(_ context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Issue
	for _, issue := range r.issues {
		if filter.Status != nil && issue.Status != *filter.Status {
			continue
		}
		if filter.CreatedBy != nil && issue.CreatedBy.ID != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (issue.AssignedTo == nil || issue.AssignedTo.ID != *filter.AssignedTo) {
			continue
		}
		result = append(result, *issue)
	}
	return result, nil
}

func (r *stubIssueRepo) Assign(ctx context.Context, issueID, staffID string) error {
	staff, err := r.users.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok || issue.Status != domain.IssueStatusPending {
		return pgx.ErrNoRows
	}
	ref := staff.Ref()
	issue.Status = domain.IssueStatusAssigned
	issue.AssignedTo = &ref
	issue.UpdatedAt = time.Now()
	return nil
}

func (r *stubIssueRepo) Reassign(ctx context.Context, issueID, staffID string) error {
	staff, err := r.users.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok || issue.Status != domain.IssueStatusAssigned {
		return pgx.ErrNoRows
	}
	ref := staff.Ref()
	issue.AssignedTo = &ref
	issue.UpdatedAt = time.Now()
	return nil
}

func (r *stubIssueRepo) AdvanceStatus(_ context.Context, issueID string, current, next domain.IssueStatus, assigneeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok || issue.Status != current || issue.AssignedTo == nil || issue.AssignedTo.ID != assigneeID {
		return pgx.ErrNoRows
	}
	issue.Status = next
	issue.UpdatedAt = time.Now()
	return nil
}

type testEnv struct {
	app     *fiber.App
	authSvc *service.AuthService

	studentToken string
	staffToken   string
	adminToken   string

	studentID string
	staffID   string
	adminID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	users := newStubUserRepo()
	issues := newStubIssueRepo(users)

	authCfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}
	authSvc := service.NewAuthService(authCfg, users)
	issueSvc := service.NewIssueService(service.IssueDependencies{
		IssueRepo:  issues,
		UserRepo:   users,
		Dispatcher: events.NewInMemoryDispatcher(),
	})
	dirSvc := service.NewDirectoryService(users)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("campus-issue-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:           handlers.NewAuthHandler(authSvc),
		Issues:         handlers.NewIssuesHandler(issueSvc),
		Directory:      handlers.NewDirectoryHandler(dirSvc),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), users),
	})

	env := &testEnv{app: app, authSvc: authSvc}
	env.studentID, env.studentToken = env.seedUser(t, "Alice", "alice@campus.edu", "student")
	env.staffID, env.staffToken = env.seedUser(t, "Sam", "sam@campus.edu", "staff")
	env.adminID, env.adminToken = env.seedUser(t, "Ada", "ada@campus.edu", "admin")
	return env
}

func (e *testEnv) seedUser(t *testing.T, name, email, role string) (string, string) {
	t.Helper()
	user, err := e.authSvc.Register(context.Background(), service.RegisterInput{
		Name:     name,
		Email:    email,
		Password: "secret",
		Role:     role,
	})
	require.NoError(t, err)
	token, _, err := e.authSvc.TokenManager().GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	return user.ID, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	_ = resp.Body.Close()
	return resp, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := errObj["code"].(string)
	return code
}

func issueField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	issue, ok := body["issue"].(map[string]any)
	require.True(t, ok, "expected issue envelope, got %v", body)
	return issue[field]
}

func issueIDs(t *testing.T, body map[string]any) []string {
	t.Helper()
	raw, ok := body["issues"].([]any)
	require.True(t, ok, "expected issues envelope, got %v", body)
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		issue, ok := item.(map[string]any)
		require.True(t, ok)
		id, _ := issue["id"].(string)
		ids = append(ids, id)
	}
	return ids
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/issues/pending", "/issues/create", "/auth/me"} {
		method := http.MethodGet
		if path == "/issues/create" {
			method = http.MethodPost
		}
		resp, body := env.do(t, method, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, body), path)
	}

	resp, body := env.do(t, http.MethodGet, "/issues/pending", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/issues/create", env.studentToken, fiber.Map{
		"title":       "Broken AC",
		"category":    "hostel",
		"description": "AC not cooling since Monday",
		"location":    "Room 210",
		"priority":    "High",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Pending", issueField(t, body, "status"))
	issueID, _ := issueField(t, body, "id").(string)
	require.NotEmpty(t, issueID)
	createdBy, _ := issueField(t, body, "createdBy").(map[string]any)
	require.NotNil(t, createdBy)
	assert.Equal(t, env.studentID, createdBy["id"])

	// queue visible to everyone before assignment
	resp, body = env.do(t, http.MethodGet, "/issues/pending", env.staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, issueIDs(t, body), issueID)

	resp, body = env.do(t, http.MethodPut, "/issues/assign", env.adminToken, fiber.Map{
		"issueId": issueID,
		"staffId": env.staffID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Assigned", issueField(t, body, "status"))
	assignedTo, _ := issueField(t, body, "assignedTo").(map[string]any)
	require.NotNil(t, assignedTo)
	assert.Equal(t, env.staffID, assignedTo["id"])

	resp, body = env.do(t, http.MethodGet, "/issues/pending", env.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, issueIDs(t, body), issueID)

	resp, body = env.do(t, http.MethodGet, "/issues/student/assignedIssues", env.studentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, issueIDs(t, body), issueID)

	resp, body = env.do(t, http.MethodGet, "/issues/staff/assignedIssues", env.staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, issueIDs(t, body), issueID)

	resp, body = env.do(t, http.MethodPut, "/issues/status", env.staffToken, fiber.Map{
		"issueId": issueID,
		"status":  "In Progress",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "In Progress", issueField(t, body, "status"))

	resp, body = env.do(t, http.MethodPut, "/issues/status", env.staffToken, fiber.Map{
		"issueId": issueID,
		"status":  "Resolved",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Resolved", issueField(t, body, "status"))

	resp, body = env.do(t, http.MethodGet, "/issues/resolved", env.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, issueIDs(t, body), issueID)
}

func TestRoleGates(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
	}{
		{"student cannot assign", http.MethodPut, "/issues/assign", env.studentToken, fiber.Map{"issueId": "x", "staffId": "y"}},
		{"staff cannot assign", http.MethodPut, "/issues/assign", env.staffToken, fiber.Map{"issueId": "x", "staffId": "y"}},
		{"staff cannot create", http.MethodPost, "/issues/create", env.staffToken, fiber.Map{"title": "t"}},
		{"admin cannot create", http.MethodPost, "/issues/create", env.adminToken, fiber.Map{"title": "t"}},
		{"student cannot register", http.MethodPost, "/auth/register", env.studentToken, fiber.Map{"name": "X", "email": "x@campus.edu", "password": "p", "role": "staff"}},
		{"staff cannot list all", http.MethodGet, "/issues/openIssues", env.staffToken, nil},
		{"student cannot view staff listing", http.MethodGet, "/issues/staff/assignedIssues", env.studentToken, nil},
		{"staff cannot view directory", http.MethodGet, "/issues/staff", env.staffToken, nil},
		{"student cannot update status", http.MethodPut, "/issues/status", env.studentToken, fiber.Map{"issueId": "x", "status": "Resolved"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, "FORBIDDEN", errorCode(t, body))
		})
	}
}

func TestAssignValidationAndConflicts(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/issues/assign", env.adminToken, fiber.Map{"issueId": "issue-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	resp, body = env.do(t, http.MethodPut, "/issues/assign", env.adminToken, fiber.Map{
		"issueId": "issue-404",
		"staffId": env.staffID,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))

	// create and assign, then a second assign must be rejected
	_, created := env.do(t, http.MethodPost, "/issues/create", env.studentToken, fiber.Map{
		"title":       "Leaking tap",
		"category":    "plumbing",
		"description": "Water everywhere",
		"location":    "Block B",
	})
	issueID, _ := issueField(t, created, "id").(string)
	require.NotEmpty(t, issueID)

	resp, _ = env.do(t, http.MethodPut, "/issues/assign", env.adminToken, fiber.Map{
		"issueId": issueID,
		"staffId": env.staffID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/issues/assign", env.adminToken, fiber.Map{
		"issueId": issueID,
		"staffId": env.staffID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, body))

	resp, body = env.do(t, http.MethodPut, "/issues/assign", env.adminToken, fiber.Map{
		"issueId": issueID,
		"staffId": env.studentID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
}

func TestStatusUpdateValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/issues/status", env.staffToken, fiber.Map{
		"issueId": "issue-1",
		"status":  "Closed",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	resp, body = env.do(t, http.MethodPut, "/issues/status", env.staffToken, fiber.Map{
		"issueId": "issue-404",
		"status":  "In Progress",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestRegisterAndLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/auth/register", env.adminToken, fiber.Map{
		"name":     "Tess",
		"email":    "tess@campus.edu",
		"password": "secret",
		"role":     "staff",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "staff", user["role"])

	resp, body = env.do(t, http.MethodPost, "/auth/login", "", fiber.Map{
		"email":    "tess@campus.edu",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, body["expiresAt"])

	resp, body = env.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me, _ := body["user"].(map[string]any)
	require.NotNil(t, me)
	assert.Equal(t, "tess@campus.edu", me["email"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	for _, payload := range []fiber.Map{
		{"email": "alice@campus.edu", "password": "wrong"},
		{"email": "nobody@campus.edu", "password": "secret"},
	} {
		resp, body := env.do(t, http.MethodPost, "/auth/login", "", payload)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))
	}
}

func TestDirectories(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/issues/staff", env.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users, ok := body["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 1)
	staff, _ := users[0].(map[string]any)
	assert.Equal(t, "sam@campus.edu", staff["email"])
	assert.Nil(t, staff["passwordHash"])

	resp, body = env.do(t, http.MethodGet, "/issues/student", env.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users, ok = body["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 1)
	student, _ := users[0].(map[string]any)
	assert.Equal(t, "alice@campus.edu", student["email"])

	resp, body = env.do(t, http.MethodGet, "/issues/staff", env.studentToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))
}
