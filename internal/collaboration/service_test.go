package collaboration

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrgID   = "org-1"
	testAdminID = "admin-1"
	testUserID  = "user-1"
)

// mockRepository is an in-memory Repository. RunInTx serializes callers and
// restores the previous state when fn fails.
type mockRepository struct {
	tx sync.Mutex
	mu sync.Mutex

	orgs     map[string]*domain.Organization
	requests map[string]*domain.CollaborationRequest
	nextID   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orgs: map[string]*domain.Organization{
			testOrgID: {ID: testOrgID, Name: "Acme", AdminID: testAdminID, Collaborators: []string{}},
		},
		requests: make(map[string]*domain.CollaborationRequest),
	}
}

func (m *mockRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.tx.Lock()
	defer m.tx.Unlock()

	m.mu.Lock()
	orgs := make(map[string]*domain.Organization, len(m.orgs))
	for id, org := range m.orgs {
		c := *org
		c.Collaborators = slices.Clone(org.Collaborators)
		orgs[id] = &c
	}
	requests := make(map[string]*domain.CollaborationRequest, len(m.requests))
	for id, req := range m.requests {
		c := *req
		requests[id] = &c
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.orgs, m.requests = orgs, requests
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockRepository) LockOrganization(_ context.Context, id string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	org, ok := m.orgs[id]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	c := *org
	c.Collaborators = slices.Clone(org.Collaborators)
	return &c, nil
}

func (m *mockRepository) AddCollaborator(_ context.Context, organizationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	org := m.orgs[organizationID]
	if !slices.Contains(org.Collaborators, userID) {
		org.Collaborators = append(org.Collaborators, userID)
	}
	return nil
}

func (m *mockRepository) RemoveCollaborator(_ context.Context, organizationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	org := m.orgs[organizationID]
	i := slices.Index(org.Collaborators, userID)
	if i < 0 {
		return ErrCollaboratorNotFound
	}
	org.Collaborators = slices.Delete(org.Collaborators, i, i+1)
	return nil
}

func (m *mockRepository) CreateRequest(_ context.Context, request *domain.CollaborationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	request.ID = fmt.Sprintf("req-%d", m.nextID)
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	c := *request
	m.requests[request.ID] = &c
	return nil
}

func (m *mockRepository) GetRequest(_ context.Context, id string) (*domain.CollaborationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	c := *req
	return &c, nil
}

func (m *mockRepository) HasPendingRequest(_ context.Context, organizationID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, req := range m.requests {
		if req.OrganizationID == organizationID && req.UserID == userID && req.Status == domain.CollaborationPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) UpdateRequestStatus(_ context.Context, id string, status domain.CollaborationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	req.Status = status
	return nil
}

func (m *mockRepository) ListRequestsForAdmin(_ context.Context, adminID string, status domain.CollaborationStatus) ([]domain.CollaborationRequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var views []domain.CollaborationRequestView
	for _, req := range m.requests {
		org := m.orgs[req.OrganizationID]
		if org.AdminID == adminID && req.Status == status {
			views = append(views, domain.CollaborationRequestView{CollaborationRequest: *req, OrganizationName: org.Name})
		}
	}
	return views, nil
}

func (m *mockRepository) ListRequestsByUser(_ context.Context, userID string) ([]domain.CollaborationRequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var views []domain.CollaborationRequestView
	for _, req := range m.requests {
		if req.UserID == userID {
			views = append(views, domain.CollaborationRequestView{CollaborationRequest: *req})
		}
	}
	return views, nil
}

func (m *mockRepository) collaborators() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.orgs[testOrgID].Collaborators)
}

var (
	admin = domain.Actor{ID: testAdminID, Role: domain.RoleAdmin}
	user  = domain.Actor{ID: testUserID, Role: domain.RoleUser}
)

func TestRequestCollaboration(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo)

	// Act
	req, err := service.RequestCollaboration(context.Background(), user, testOrgID)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.CollaborationPending, req.Status)
	assert.Equal(t, testUserID, req.UserID)
}

func TestRequestCollaboration_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(repo *mockRepository)
		actor   domain.Actor
		orgID   string
		wantErr error
	}{
		{
			name:    "admin cannot request",
			actor:   admin,
			orgID:   testOrgID,
			wantErr: domain.ErrAlreadyAdmin,
		},
		{
			name: "existing collaborator",
			setup: func(repo *mockRepository) {
				repo.orgs[testOrgID].Collaborators = []string{testUserID}
			},
			actor:   user,
			orgID:   testOrgID,
			wantErr: domain.ErrAlreadyCollaborator,
		},
		{
			name: "duplicate pending",
			setup: func(repo *mockRepository) {
				repo.requests["req-0"] = &domain.CollaborationRequest{
					ID: "req-0", OrganizationID: testOrgID, UserID: testUserID, Status: domain.CollaborationPending,
				}
			},
			actor:   user,
			orgID:   testOrgID,
			wantErr: domain.ErrDuplicatePending,
		},
		{
			name:    "unknown organization",
			actor:   user,
			orgID:   "missing",
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			if tt.setup != nil {
				tt.setup(repo)
			}
			service := NewService(repo)

			req, err := service.RequestCollaboration(context.Background(), tt.actor, tt.orgID)

			assert.Nil(t, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequestCollaboration_RejectedUserMayRequestAgain(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	first, err := service.RequestCollaboration(ctx, user, testOrgID)
	require.NoError(t, err)
	_, err = service.RespondToRequest(ctx, admin, first.ID, domain.CollaborationRejected)
	require.NoError(t, err)

	second, err := service.RequestCollaboration(ctx, user, testOrgID)

	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRespondToRequest_AcceptIsIdempotent(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()
	req, err := service.RequestCollaboration(ctx, user, testOrgID)
	require.NoError(t, err)

	// Act
	first, err := service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationAccepted)
	require.NoError(t, err)
	second, err := service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationAccepted)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, domain.CollaborationAccepted, first.Status)
	assert.Equal(t, domain.CollaborationAccepted, second.Status)
	assert.Equal(t, []string{testUserID}, repo.collaborators())
}

func TestRespondToRequest_Reject(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()
	req, err := service.RequestCollaboration(ctx, user, testOrgID)
	require.NoError(t, err)

	got, err := service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationRejected)

	require.NoError(t, err)
	assert.Equal(t, domain.CollaborationRejected, got.Status)
	assert.Empty(t, repo.collaborators())
}

func TestRespondToRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		actor    domain.Actor
		decision domain.CollaborationStatus
		prepare  func(t *testing.T, s *Service, requestID string)
		wantErr  error
	}{
		{
			name:     "not the admin",
			actor:    domain.Actor{ID: "someone-else", Role: domain.RoleAdmin},
			decision: domain.CollaborationAccepted,
			wantErr:  domain.ErrForbidden,
		},
		{
			name:     "requester cannot accept own request",
			actor:    user,
			decision: domain.CollaborationAccepted,
			wantErr:  domain.ErrForbidden,
		},
		{
			name:     "pending is not a decision",
			actor:    admin,
			decision: domain.CollaborationPending,
			wantErr:  domain.ErrInvalidStatus,
		},
		{
			name:     "unknown decision",
			actor:    admin,
			decision: "Maybe",
			wantErr:  domain.ErrInvalidStatus,
		},
		{
			name:     "flip a decided request",
			actor:    admin,
			decision: domain.CollaborationRejected,
			prepare: func(t *testing.T, s *Service, requestID string) {
				_, err := s.RespondToRequest(context.Background(), admin, requestID, domain.CollaborationAccepted)
				require.NoError(t, err)
			},
			wantErr: ErrAlreadyDecided,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			service := NewService(repo)
			req, err := service.RequestCollaboration(context.Background(), user, testOrgID)
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(t, service, req.ID)
			}

			got, err := service.RespondToRequest(context.Background(), tt.actor, req.ID, tt.decision)

			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRespondToRequest_NotFound(t *testing.T) {
	service := NewService(newMockRepository())

	_, err := service.RespondToRequest(context.Background(), admin, "missing", domain.CollaborationAccepted)

	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestSuspendCollaborator_RoundTrip(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()
	req, err := service.RequestCollaboration(ctx, user, testOrgID)
	require.NoError(t, err)
	_, err = service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationAccepted)
	require.NoError(t, err)

	// Act: suspend
	suspended, err := service.SuspendCollaborator(ctx, admin, testOrgID, testUserID, req.ID)

	// Assert: back to pending, no longer a collaborator
	require.NoError(t, err)
	assert.Equal(t, domain.CollaborationPending, suspended.Status)
	assert.Empty(t, repo.collaborators())

	// A suspended user is already pending and cannot file a second request.
	_, err = service.RequestCollaboration(ctx, user, testOrgID)
	assert.ErrorIs(t, err, domain.ErrDuplicatePending)

	// Act: re-accept
	_, err = service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationAccepted)

	// Assert: member exactly once
	require.NoError(t, err)
	assert.Equal(t, []string{testUserID}, repo.collaborators())
}

func TestSuspendCollaborator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		actor   domain.Actor
		userID  string
		reqID   func(acceptedID string) string
		accept  bool
		wantErr error
	}{
		{
			name:    "collaborator cannot suspend",
			actor:   user,
			userID:  testUserID,
			accept:  true,
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "request of another user",
			actor:   admin,
			userID:  "user-2",
			accept:  true,
			wantErr: ErrRequestNotFound,
		},
		{
			name:    "unknown request",
			actor:   admin,
			userID:  testUserID,
			reqID:   func(string) string { return "missing" },
			accept:  true,
			wantErr: ErrRequestNotFound,
		},
		{
			name:    "not a collaborator",
			actor:   admin,
			userID:  testUserID,
			accept:  false,
			wantErr: ErrCollaboratorNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			service := NewService(repo)
			ctx := context.Background()
			req, err := service.RequestCollaboration(ctx, user, testOrgID)
			require.NoError(t, err)
			if tt.accept {
				_, err = service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationAccepted)
				require.NoError(t, err)
			}
			requestID := req.ID
			if tt.reqID != nil {
				requestID = tt.reqID(req.ID)
			}

			_, err = service.SuspendCollaborator(ctx, tt.actor, testOrgID, tt.userID, requestID)

			assert.ErrorIs(t, err, tt.wantErr)
			if tt.accept {
				assert.Equal(t, []string{testUserID}, repo.collaborators(), "membership unchanged on failure")
			}
		})
	}
}

func TestRespondToRequest_ConcurrentAcceptsAddOnce(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()
	req, err := service.RequestCollaboration(ctx, user, testOrgID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationAccepted)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{testUserID}, repo.collaborators())
}

func TestListings(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()
	req, err := service.RequestCollaboration(ctx, user, testOrgID)
	require.NoError(t, err)

	pending, err := service.ListPendingForAdmin(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
	assert.Equal(t, "Acme", pending[0].OrganizationName)

	_, err = service.RespondToRequest(ctx, admin, req.ID, domain.CollaborationAccepted)
	require.NoError(t, err)

	active, err := service.ListActiveCollaborators(ctx, admin)
	require.NoError(t, err)
	require.Len(t, active, 1)

	mine, err := service.ListMine(ctx, user)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.CollaborationAccepted, mine[0].Status)

	pending, err = service.ListPendingForAdmin(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
