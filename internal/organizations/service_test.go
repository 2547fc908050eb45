package organizations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	orgs      map[string]*domain.Organization
	seq       int
	deleteErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{orgs: make(map[string]*domain.Organization)}
}

func (m *mockRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockRepository) Create(_ context.Context, org *domain.Organization) error {
	for _, o := range m.orgs {
		if domain.NameKey(o.Name) == domain.NameKey(org.Name) {
			return ErrOrganizationExists
		}
	}
	m.seq++
	org.ID = fmt.Sprintf("org-%d", m.seq)
	m.orgs[org.ID] = org
	return nil
}

func (m *mockRepository) Get(_ context.Context, id string) (*domain.Organization, error) {
	if o, ok := m.orgs[id]; ok {
		return o, nil
	}
	return nil, ErrOrganizationNotFound
}

func (m *mockRepository) Lock(ctx context.Context, id string) (*domain.Organization, error) {
	return m.Get(ctx, id)
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.orgs, id)
	return nil
}

func (m *mockRepository) ListForUser(_ context.Context, userID string) ([]domain.OrganizationSummary, error) {
	var result []domain.OrganizationSummary
	for _, o := range m.orgs {
		result = append(result, domain.OrganizationSummary{
			ID:             o.ID,
			Name:           o.Name,
			IsAdmin:        o.AdminID == userID,
			IsCollaborator: o.HasCollaborator(userID),
		})
	}
	return result, nil
}

func (m *mockRepository) ListByAdmin(_ context.Context, adminID string) ([]domain.OrganizationSummary, error) {
	var result []domain.OrganizationSummary
	for _, o := range m.orgs {
		if o.AdminID == adminID {
			result = append(result, domain.OrganizationSummary{ID: o.ID, Name: o.Name, IsAdmin: true})
		}
	}
	return result, nil
}

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	published []string
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, organizationID string) error {
	m.published = append(m.published, organizationID)
	return m.err
}

var (
	adminUser = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	otherUser = domain.Actor{ID: "user-1", Role: domain.RoleUser}
)

func TestCreate(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockPublisher{})

	// Act
	org, err := service.Create(context.Background(), adminUser, "  Acme  ")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, adminUser.ID, org.AdminID)
	assert.Empty(t, org.Collaborators)
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		actor   domain.Actor
		orgName string
		wantErr error
	}{
		{"user role cannot create", otherUser, "Beta", domain.ErrForbidden},
		{"empty name", adminUser, "   ", ErrEmptyName},
		{"duplicate name ignores case", adminUser, "ACME", domain.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			service := NewService(repo, &mockPublisher{})
			_, err := service.Create(context.Background(), adminUser, "Acme")
			require.NoError(t, err)

			org, err := service.Create(context.Background(), tt.actor, tt.orgName)

			assert.Nil(t, org)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDelete_PublishesEmptyRoom(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	publisher := &mockPublisher{}
	service := NewService(repo, publisher)
	org, err := service.Create(context.Background(), adminUser, "Acme")
	require.NoError(t, err)

	// Act
	err = service.Delete(context.Background(), adminUser, org.ID)

	// Assert
	require.NoError(t, err)
	assert.NotContains(t, repo.orgs, org.ID)
	assert.Equal(t, []string{org.ID}, publisher.published)
}

func TestDelete_Errors(t *testing.T) {
	repo := newMockRepository()
	publisher := &mockPublisher{}
	service := NewService(repo, publisher)
	org, err := service.Create(context.Background(), adminUser, "Acme")
	require.NoError(t, err)
	org.Collaborators = []string{otherUser.ID}

	// Collaborators cannot delete the organization.
	err = service.Delete(context.Background(), otherUser, org.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Another admin-role user is not this organization's admin.
	err = service.Delete(context.Background(), domain.Actor{ID: "admin-2", Role: domain.RoleAdmin}, org.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = service.Delete(context.Background(), adminUser, "missing")
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	repo.deleteErr = errors.New("database error")
	err = service.Delete(context.Background(), adminUser, org.ID)
	assert.Error(t, err)

	assert.Empty(t, publisher.published)
	assert.Contains(t, repo.orgs, org.ID)
}

func TestDelete_PublishFailureIsNotReturned(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, &mockPublisher{err: errors.New("hub closed")})
	org, err := service.Create(context.Background(), adminUser, "Acme")
	require.NoError(t, err)

	err = service.Delete(context.Background(), adminUser, org.ID)

	assert.NoError(t, err)
}

func TestListForUser(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, nil)
	acme, err := service.Create(context.Background(), adminUser, "Acme")
	require.NoError(t, err)
	acme.Collaborators = []string{otherUser.ID}
	_, err = service.Create(context.Background(), domain.Actor{ID: "admin-2", Role: domain.RoleAdmin}, "Beta")
	require.NoError(t, err)

	all, err := service.ListForUser(context.Background(), otherUser)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, o := range all {
		assert.False(t, o.IsAdmin)
		assert.Equal(t, o.ID == acme.ID, o.IsCollaborator)
	}

	mine, err := service.ListMine(context.Background(), adminUser)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, acme.ID, mine[0].ID)
}
