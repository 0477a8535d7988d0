package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/dto"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"github.com/tlogandesigns/site-visitor-dash/internal/testutil"
)

type leadPage struct {
	Items      []models.Lead `json:"items"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

func createLeadBody(site string) map[string]interface{} {
	return map[string]interface{}{
		"buyer_name":        "Jordan Buyer",
		"buyer_phone":       "555-123-4567",
		"buyer_email":       "Jordan@Example.com",
		"first_visit":       true,
		"interested_in":     []string{"Single family", "Townhome"},
		"purchase_timeline": string(models.Timeline3To6Months),
		"price_range":       string(models.Price400kTo500k),
		"notes":             "Loved the corner lot",
		"site":              site,
	}
}

func TestLeadHandler_Create(t *testing.T) {
	env := setupRouter(t)

	t.Run("user at own site", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/leads", createLeadBody(testutil.Site), env.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.CreateLeadResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.Lead)
		assert.True(t, resp.Synced)
		assert.Empty(t, resp.SyncError)
		assert.Equal(t, "jordan@example.com", resp.Lead.BuyerEmail)
		assert.Equal(t, env.Agent.ID, resp.Lead.CapturingAgentID)
		assert.Equal(t, "crm-lead-1", resp.Lead.CRMLeadID)

		payloads := env.CRM.received()
		require.NotEmpty(t, payloads)
		last := payloads[len(payloads)-1]
		assert.Equal(t, crmsync.EventNewLead, last.EventType)
		assert.Equal(t, "Jordan", last.FirstName)
		assert.Equal(t, "Buyer", last.LastName)
		assert.Equal(t, testutil.Site, last.Site)

		var notes int64
		require.NoError(t, env.DB.Model(&models.LeadNote{}).Where("lead_id = ?", resp.Lead.ID).Count(&notes).Error)
		assert.Equal(t, int64(1), notes)
	})

	t.Run("missing email gets placeholder", func(t *testing.T) {
		body := createLeadBody(testutil.Site)
		delete(body, "buyer_email")

		rr := env.do(t, "POST", "/api/v1/leads", body, env.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.CreateLeadResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.Lead.BuyerEmail)
		assert.Contains(t, resp.Lead.BuyerEmail, "@")
	})

	t.Run("crm failure still creates lead", func(t *testing.T) {
		env.CRM.setStatus(http.StatusBadGateway)
		defer env.CRM.setStatus(http.StatusOK)

		rr := env.do(t, "POST", "/api/v1/leads", createLeadBody(testutil.Site), env.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.CreateLeadResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.False(t, resp.Synced)
		assert.NotEmpty(t, resp.SyncError)

		var stored models.Lead
		require.NoError(t, env.DB.First(&stored, "id = ?", resp.Lead.ID).Error)
		assert.False(t, stored.CRMSynced)
		assert.NotEmpty(t, stored.CRMSyncError)
	})

	t.Run("user outside scope", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/leads", createLeadBody("Oak Hollow"), env.Token)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("unknown purchase timeline", func(t *testing.T) {
		body := createLeadBody(testutil.Site)
		body["purchase_timeline"] = "someday"

		rr := env.do(t, "POST", "/api/v1/leads", body, env.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "purchase_timeline")
	})

	t.Run("request validation", func(t *testing.T) {
		body := createLeadBody("")
		body["buyer_name"] = " "
		body["buyer_email"] = "not-an-email"

		rr := env.do(t, "POST", "/api/v1/leads", body, env.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "buyer_name")
		assert.Contains(t, resp.Details, "buyer_email")
		assert.Contains(t, resp.Details, "site")
	})

	t.Run("invalid body", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/leads", "not an object", env.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("admin names the capturing agent", func(t *testing.T) {
		oak := testutil.CreateTestAgent(t, env.DB, "Oak Agent", "Oak Hollow")
		body := createLeadBody("Oak Hollow")
		body["capturing_agent_id"] = oak.ID.String()

		rr := env.do(t, "POST", "/api/v1/leads", body, env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.CreateLeadResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, oak.ID, resp.Lead.CapturingAgentID)
	})

	t.Run("admin without capturing agent", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/leads", createLeadBody(testutil.Site), env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestLeadHandler_List(t *testing.T) {
	env := setupRouter(t)
	oak := testutil.CreateTestAgent(t, env.DB, "Oak Agent", "Oak Hollow")

	for i := 0; i < 12; i++ {
		testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, fmt.Sprintf("Cedar Buyer %02d", i))
	}
	for i := 0; i < 3; i++ {
		testutil.CreateTestLead(t, env.DB, oak, "Oak Hollow", fmt.Sprintf("Oak Buyer %02d", i))
	}

	t.Run("user sees own site only", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads?page_size=5&page=3", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page leadPage
		testutil.ParseJSONResponse(t, rr, &page)
		assert.Equal(t, int64(12), page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.Len(t, page.Items, 2)
		for _, l := range page.Items {
			assert.Equal(t, testutil.Site, l.Site)
		}
	})

	t.Run("admin sees every site", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads", nil, env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page leadPage
		testutil.ParseJSONResponse(t, rr, &page)
		assert.Equal(t, int64(15), page.Total)
		assert.Equal(t, leads.DefaultPageSize, page.PageSize)
	})

	t.Run("search and sort", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads?search=oak&sortBy=buyerName&sortOrder=asc", nil, env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page leadPage
		testutil.ParseJSONResponse(t, rr, &page)
		require.Len(t, page.Items, 3)
		assert.Equal(t, "Oak Buyer 00", page.Items[0].BuyerName)
		assert.Equal(t, "Oak Buyer 02", page.Items[2].BuyerName)
	})

	t.Run("user filtering another site gets nothing", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads?site=Oak%20Hollow", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page leadPage
		testutil.ParseJSONResponse(t, rr, &page)
		assert.Equal(t, int64(0), page.Total)
	})

	t.Run("invalid params", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads?page_size=500", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		rr = env.do(t, "GET", "/api/v1/leads?sort_by=password", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestLeadHandler_Get(t *testing.T) {
	env := setupRouter(t)
	oak := testutil.CreateTestAgent(t, env.DB, "Oak Agent", "Oak Hollow")
	mine := testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, "Mine Buyer")
	theirs := testutil.CreateTestLead(t, env.DB, oak, "Oak Hollow", "Their Buyer")

	rr := env.do(t, "POST", "/api/v1/leads/"+mine.ID.String()+"/notes", map[string]string{"note": "first"}, env.Token)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	rr = env.do(t, "POST", "/api/v1/leads/"+mine.ID.String()+"/notes", map[string]string{"note": "second"}, env.Token)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	t.Run("in scope with notes", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads/"+mine.ID.String(), nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.LeadDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, mine.ID, resp.Lead.ID)
		require.Len(t, resp.Notes, 2)
		assert.Equal(t, "second", resp.Notes[0].Body)
	})

	t.Run("outside scope", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads/"+theirs.ID.String(), nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("missing", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads/"+uuid.New().String(), nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads/not-a-uuid", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestLeadHandler_Update(t *testing.T) {
	env := setupRouter(t)
	lead := testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, "Jordan Buyer")
	before := len(env.CRM.received())

	body := map[string]interface{}{"offer_on_table": true, "occupation": "Nurse"}
	rr := env.do(t, "PATCH", "/api/v1/leads/"+lead.ID.String(), body, env.Token)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var updated models.Lead
	testutil.ParseJSONResponse(t, rr, &updated)
	assert.True(t, updated.OfferOnTable)
	assert.Equal(t, "Nurse", updated.Occupation)
	assert.Equal(t, lead.BuyerName, updated.BuyerName)

	assert.Len(t, env.CRM.received(), before, "edits are not synced")

	rr = env.do(t, "PATCH", "/api/v1/leads/"+lead.ID.String(), map[string]interface{}{}, env.Token)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "PATCH", "/api/v1/leads/"+lead.ID.String(), map[string]interface{}{"price_range": "cheap"}, env.Token)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestLeadHandler_AddNote(t *testing.T) {
	env := setupRouter(t)
	lead := testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, "Jordan Buyer")

	t.Run("user note syncs", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/leads/"+lead.ID.String()+"/notes", map[string]string{"note": "Called back"}, env.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.NoteResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.True(t, resp.Synced)
		assert.Equal(t, env.Agent.ID, resp.Note.AgentID)

		payloads := env.CRM.received()
		require.NotEmpty(t, payloads)
		last := payloads[len(payloads)-1]
		assert.Equal(t, crmsync.EventNoteAdded, last.EventType)
		assert.Equal(t, "Called back", last.Note)
	})

	t.Run("admin note is attributed to capturing agent", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/leads/"+lead.ID.String()+"/notes", map[string]string{"note": "Manager follow-up"}, env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.NoteResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, lead.CapturingAgentID, resp.Note.AgentID)
		require.NotNil(t, resp.Note.AuthorUserID)
		assert.Equal(t, env.Admin.ID, *resp.Note.AuthorUserID)
	})

	t.Run("empty note", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/leads/"+lead.ID.String()+"/notes", map[string]string{"note": "  "}, env.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("list notes", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/leads/"+lead.ID.String()+"/notes", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Data  []models.LeadNote `json:"data"`
			Total int               `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, "Manager follow-up", resp.Data[0].Body)
	})
}

func TestLeadHandler_Delete(t *testing.T) {
	env := setupRouter(t)
	lead := testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, "Jordan Buyer")
	path := "/api/v1/leads/" + lead.ID.String()

	rr := env.do(t, "DELETE", path, nil, env.Token)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, "DELETE", path, nil, env.AdminToken)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = env.do(t, "DELETE", path, nil, env.AdminToken)
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, "GET", path, nil, env.AdminToken)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestLeadHandler_Resync(t *testing.T) {
	env := setupRouter(t)
	lead := testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, "Jordan Buyer")
	path := "/api/v1/leads/" + lead.ID.String() + "/resync"

	rr := env.do(t, "POST", path, nil, env.Token)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	// No job queue in tests.
	rr = env.do(t, "POST", path, nil, env.AdminToken)
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}

func TestLeadHandler_StatsAndSites(t *testing.T) {
	env := setupRouter(t)
	oak := testutil.CreateTestAgent(t, env.DB, "Oak Agent", "Oak Hollow")
	testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, "Cedar One")
	synced := testutil.CreateTestLead(t, env.DB, env.Agent, testutil.Site, "Cedar Two")
	testutil.CreateTestLead(t, env.DB, oak, "Oak Hollow", "Oak One")
	require.NoError(t, env.DB.Model(synced).Update("crm_synced", true).Error)

	t.Run("user stats are scoped", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/stats", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var stats leads.Stats
		testutil.ParseJSONResponse(t, rr, &stats)
		assert.Equal(t, int64(2), stats.Total)
		assert.Equal(t, int64(1), stats.Synced)
		assert.Equal(t, int64(1), stats.Unsynced)
	})

	t.Run("admin stats", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/stats?site=Oak%20Hollow", nil, env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var stats leads.Stats
		testutil.ParseJSONResponse(t, rr, &stats)
		assert.Equal(t, int64(1), stats.Total)
	})

	t.Run("sites", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/sites", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Data []string `json:"data"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, []string{testutil.Site}, resp.Data)

		rr = env.do(t, "GET", "/api/v1/sites", nil, env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, []string{testutil.Site, "Oak Hollow"}, resp.Data)
	})
}
