//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/realtime"
	"github.com/bissquit/statusroom/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testPassword = "password123"

// newUser registers a fresh account with role and returns a client signed in as it.
func newUser(t *testing.T, role domain.Role) (*testutil.Client, *domain.User) {
	t.Helper()
	client := newTestClient(t)
	user := client.Register(t, testutil.RandomName("user"), testutil.RandomEmail(), testPassword, role)
	return client, user
}

// createOrganization creates an organization owned by client.
func createOrganization(t *testing.T, client *testutil.Client) *domain.Organization {
	t.Helper()

	resp, err := client.POST("/api/v1/organizations", map[string]string{
		"name": testutil.RandomName("org"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data domain.Organization `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return &result.Data
}

// createService creates a service in an organization with an optional initial status.
func createService(t *testing.T, client *testutil.Client, orgID, name string, status domain.ServiceStatus) *domain.Service {
	t.Helper()

	payload := map[string]string{"name": name}
	if status != "" {
		payload["status"] = string(status)
	}

	resp, err := client.POST("/api/v1/organizations/"+orgID+"/services", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data domain.Service `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return &result.Data
}

// createIncident opens an incident on a service.
func createIncident(t *testing.T, client *testutil.Client, serviceID, name, message string) *domain.Incident {
	t.Helper()

	resp, err := client.POST("/api/v1/services/"+serviceID+"/incidents", map[string]string{
		"name":          name,
		"issue_message": message,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data domain.Incident `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return &result.Data
}

// setServiceStatus changes the status of a service.
func setServiceStatus(t *testing.T, client *testutil.Client, serviceID string, status domain.ServiceStatus) *domain.Service {
	t.Helper()

	resp, err := client.PATCH("/api/v1/services/"+serviceID+"/status", map[string]string{
		"status": string(status),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data domain.Service `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return &result.Data
}

// organizationServices is the decoded GET /organizations/{orgID}/services payload.
type organizationServices struct {
	OrganizationID string                   `json:"organization_id"`
	Services       []domain.SnapshotService `json:"services"`
	Capability     string                   `json:"capability"`
	IsCollaborator bool                     `json:"is_collaborator"`
}

func getOrganizationServices(t *testing.T, client *testutil.Client, orgID string) organizationServices {
	t.Helper()

	resp, err := client.GET("/api/v1/organizations/" + orgID + "/services")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data organizationServices `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func findService(t *testing.T, services []domain.SnapshotService, id string) domain.SnapshotService {
	t.Helper()
	for _, s := range services {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("service %s not in snapshot", id)
	return domain.SnapshotService{}
}

// listIncidents returns the full incident history of a service.
func listIncidents(t *testing.T, client *testutil.Client, serviceID string) []domain.Incident {
	t.Helper()

	resp, err := client.GET("/api/v1/services/" + serviceID + "/incidents")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data []domain.Incident `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// requestCollaboration files a collaboration request and returns it.
func requestCollaboration(t *testing.T, client *testutil.Client, orgID string) *domain.CollaborationRequest {
	t.Helper()

	resp, err := client.POST("/api/v1/collaboration-requests", map[string]string{
		"organization_id": orgID,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data domain.CollaborationRequest `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return &result.Data
}

// decideRequest accepts or rejects a collaboration request.
func decideRequest(t *testing.T, client *testutil.Client, requestID string, decision domain.CollaborationStatus) *domain.CollaborationRequest {
	t.Helper()

	resp, err := client.PATCH("/api/v1/collaboration-requests/"+requestID, map[string]string{
		"status": string(decision),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data domain.CollaborationRequest `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return &result.Data
}

// newCollaborator registers a user and makes it a collaborator of orgID.
func newCollaborator(t *testing.T, admin *testutil.Client, orgID string) (*testutil.Client, *domain.User, *domain.CollaborationRequest) {
	t.Helper()
	client, user := newUser(t, domain.RoleUser)
	request := requestCollaboration(t, client, orgID)
	decideRequest(t, admin, request.ID, domain.CollaborationAccepted)
	return client, user, request
}

// roomViewer is a websocket connection to the realtime endpoint.
type roomViewer struct {
	t    *testing.T
	conn *websocket.Conn
}

// dialViewer opens an anonymous websocket connection.
func dialViewer(t *testing.T) *roomViewer {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &roomViewer{t: t, conn: conn}
}

func (v *roomViewer) send(messageType, orgID string) {
	v.t.Helper()
	require.NoError(v.t, v.conn.WriteJSON(realtime.InboundMessage{Type: messageType, OrganizationID: orgID}))
}

// join enters an organization's room and returns the snapshot sent on join.
func (v *roomViewer) join(orgID string) domain.Snapshot {
	v.t.Helper()
	v.send(realtime.MessageJoinRoom, orgID)
	return v.nextSnapshot()
}

// next reads one event.
func (v *roomViewer) next() (string, json.RawMessage) {
	v.t.Helper()
	require.NoError(v.t, v.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(v.t, v.conn.ReadJSON(&msg))
	return msg.Event, msg.Data
}

// nextSnapshot reads events until an update-services event arrives.
func (v *roomViewer) nextSnapshot() domain.Snapshot {
	v.t.Helper()
	for {
		event, data := v.next()
		if event != realtime.EventUpdateServices {
			continue
		}
		var raw any
		require.NoError(v.t, json.Unmarshal(data, &raw))
		testValidator.ValidateSchema(v.t, "Snapshot", raw)

		var snapshot domain.Snapshot
		require.NoError(v.t, json.Unmarshal(data, &snapshot))
		return snapshot
	}
}

// expectSilence asserts no event arrives within d.
func (v *roomViewer) expectSilence(d time.Duration) {
	v.t.Helper()
	require.NoError(v.t, v.conn.SetReadDeadline(time.Now().Add(d)))
	_, _, err := v.conn.ReadMessage()
	require.Error(v.t, err, "expected no message")
	var netErr interface{ Timeout() bool }
	require.ErrorAs(v.t, err, &netErr)
	require.True(v.t, netErr.Timeout())
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
