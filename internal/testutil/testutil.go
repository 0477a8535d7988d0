package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/database"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the password of every user created by CreateTestUser.
const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing. The pool is
// pinned to one connection so every query sees the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), database.GormConfig(logger.Silent))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func RandomID() uuid.UUID {
	return uuid.New()
}

func shortID() string {
	return uuid.NewString()[:8]
}

// CreateTestAgent creates an active agent assigned to the given sites.
func CreateTestAgent(t *testing.T, db *gorm.DB, name string, sites ...string) *models.Agent {
	t.Helper()

	agent := &models.Agent{
		Name:     name,
		CRMID:    "crm-" + shortID(),
		Email:    "agent-" + shortID() + "@example.com",
		Phone:    "555-0100",
		IsActive: true,
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to create test agent: %v", err)
	}

	for _, site := range sites {
		AssignSite(t, db, agent, site)
	}

	return agent
}

// AssignSite adds a site assignment to the agent.
func AssignSite(t *testing.T, db *gorm.DB, agent *models.Agent, site string) {
	t.Helper()

	as := models.AgentSite{AgentID: agent.ID, Site: site}
	if err := db.Create(&as).Error; err != nil {
		t.Fatalf("failed to assign site %q: %v", site, err)
	}
	agent.Sites = append(agent.Sites, as)
}

// CreateTestUser creates an active user with the given role, optionally
// linked to an agent.
func CreateTestUser(t *testing.T, db *gorm.DB, role models.Role, agent *models.Agent) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     string(role) + "-" + shortID(),
		Email:        "user-" + shortID() + "@example.com",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if agent != nil {
		user.AgentID = &agent.ID
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Agent = agent
	return user
}

// CreateTestLead creates a lead captured by agent at site.
func CreateTestLead(t *testing.T, db *gorm.DB, agent *models.Agent, site, buyerName string) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		BuyerName:        buyerName,
		BuyerPhone:       "555-0199",
		BuyerEmail:       "buyer-" + shortID() + "@example.com",
		FirstVisit:       true,
		PurchaseTimeline: models.Timeline0To3Months,
		PriceRange:       models.Price300kTo400k,
		CapturingAgentID: agent.ID,
		Site:             site,
		CreatedByName:    agent.Name,
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("failed to create test lead: %v", err)
	}

	return lead
}

// ActorFor builds the access actor for a stored user.
func ActorFor(user *models.User) access.Actor {
	return access.Actor{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		AgentID:  user.AgentID,
	}
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService

	// Agent works "Cedar Creek" and is linked to User.
	Agent *models.Agent
	User  *models.User
	Token string

	Admin      *models.User
	AdminToken string
}

// Site is the site the default agent is assigned to.
const Site = "Cedar Creek"

// NewTestContext creates a DB with one agent, a user linked to it, an admin,
// and tokens for both users.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	agent := CreateTestAgent(t, db, "Test Agent", Site)
	user := CreateTestUser(t, db, models.RoleUser, agent)
	admin := CreateTestUser(t, db, models.RoleAdmin, nil)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Agent:      agent,
		User:       user,
		Token:      GenerateTestToken(t, jwtService, user),
		Admin:      admin,
		AdminToken: GenerateTestToken(t, jwtService, admin),
	}
}
