package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/briefcase-app/briefcase-server/internal/model"
	"github.com/briefcase-app/briefcase-server/internal/testutil"
)

func newPermissionService(permStore *MockPermissionStore, roleStore *MockRoleStore, groupStore *MockGroupStore, docStore *MockDocumentStore) *Permission {
	return NewPermission(permStore, roleStore, groupStore, docStore, testutil.MakeNoopLogger())
}

func TestPermissionService_Check(t *testing.T) {
	senderID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	recipientID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440001")
	strangerID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440002")
	documentID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440003")

	doc := model.Document{
		ID:          documentID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      model.StatusActive,
	}

	tests := []struct {
		name       string
		userID     uuid.UUID
		capability model.Capability
		mockSetup  func(*MockPermissionStore, *MockDocumentStore)
		want       bool
		wantErr    bool
	}{
		{
			name:       "sender holds every capability",
			userID:     senderID,
			capability: model.CapabilityDelete,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
			},
			want: true,
		},
		{
			name:       "recipient holds read",
			userID:     recipientID,
			capability: model.CapabilityRead,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
			},
			want: true,
		},
		{
			name:       "recipient does not hold write implicitly",
			userID:     recipientID,
			capability: model.CapabilityWrite,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
				permStore.On("Get", mock.Anything, documentID, recipientID, model.CapabilityWrite).
					Return(model.DocumentPermission{}, model.ErrNotFound)
			},
			want: false,
		},
		{
			name:       "active explicit grant",
			userID:     strangerID,
			capability: model.CapabilityRead,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
				expires := time.Now().Add(time.Hour)
				permStore.On("Get", mock.Anything, documentID, strangerID, model.CapabilityRead).
					Return(model.DocumentPermission{
						DocumentID: documentID,
						UserID:     strangerID,
						Capability: model.CapabilityRead,
						ExpiresAt:  &expires,
					}, nil)
			},
			want: true,
		},
		{
			name:       "write grant does not imply read",
			userID:     strangerID,
			capability: model.CapabilityRead,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
				permStore.On("Get", mock.Anything, documentID, strangerID, model.CapabilityRead).
					Return(model.DocumentPermission{}, model.ErrNotFound)
			},
			want: false,
		},
		{
			name:       "expired grant is inert",
			userID:     strangerID,
			capability: model.CapabilityRead,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
				expired := time.Now().Add(-time.Hour)
				permStore.On("Get", mock.Anything, documentID, strangerID, model.CapabilityRead).
					Return(model.DocumentPermission{
						DocumentID: documentID,
						UserID:     strangerID,
						Capability: model.CapabilityRead,
						ExpiresAt:  &expired,
					}, nil)
			},
			want: false,
		},
		{
			name:       "no grant at all",
			userID:     strangerID,
			capability: model.CapabilityAdmin,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
				permStore.On("Get", mock.Anything, documentID, strangerID, model.CapabilityAdmin).
					Return(model.DocumentPermission{}, model.ErrNotFound)
			},
			want: false,
		},
		{
			name:       "document not found",
			userID:     strangerID,
			capability: model.CapabilityRead,
			mockSetup: func(permStore *MockPermissionStore, docStore *MockDocumentStore) {
				docStore.On("GetByID", mock.Anything, documentID).Return(model.Document{}, model.ErrNotFound)
			},
			wantErr: true,
		},
		{
			name:       "invalid capability",
			userID:     strangerID,
			capability: model.Capability("execute"),
			mockSetup:  func(permStore *MockPermissionStore, docStore *MockDocumentStore) {},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			permStore := &MockPermissionStore{}
			roleStore := &MockRoleStore{}
			groupStore := &MockGroupStore{}
			docStore := &MockDocumentStore{}
			tt.mockSetup(permStore, docStore)

			service := newPermissionService(permStore, roleStore, groupStore, docStore)

			got, err := service.Check(context.Background(), tt.userID, documentID, tt.capability)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			permStore.AssertExpectations(t)
			docStore.AssertExpectations(t)
		})
	}
}

func TestPermissionService_CheckBulk(t *testing.T) {
	senderID := uuid.New()
	docA := uuid.New()
	docB := uuid.New()
	docC := uuid.New()

	permStore := &MockPermissionStore{}
	docStore := &MockDocumentStore{}

	docStore.On("GetByID", mock.Anything, docA).
		Return(model.Document{ID: docA, SenderID: senderID}, nil)
	docStore.On("GetByID", mock.Anything, docB).
		Return(model.Document{ID: docB, SenderID: uuid.New(), RecipientID: uuid.New()}, nil)
	docStore.On("GetByID", mock.Anything, docC).
		Return(model.Document{}, errors.New("database error"))
	permStore.On("Get", mock.Anything, docB, senderID, model.CapabilityRead).
		Return(model.DocumentPermission{}, model.ErrNotFound)

	service := newPermissionService(permStore, &MockRoleStore{}, &MockGroupStore{}, docStore)

	result, err := service.CheckBulk(context.Background(), senderID, []uuid.UUID{docA, docB, docC}, model.CapabilityRead)
	require.NoError(t, err)

	// A store failure on one document denies that document only.
	assert.Equal(t, map[uuid.UUID]bool{docA: true, docB: false, docC: false}, result)
	docStore.AssertExpectations(t)
}

func TestPermissionService_Grant(t *testing.T) {
	senderID := uuid.New()
	granteeID := uuid.New()
	strangerID := uuid.New()
	documentID := uuid.New()

	doc := model.Document{ID: documentID, SenderID: senderID, RecipientID: uuid.New()}

	t.Run("sender grants read", func(t *testing.T) {
		permStore := &MockPermissionStore{}
		docStore := &MockDocumentStore{}
		docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
		permStore.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.DocumentPermission) bool {
			return p.DocumentID == documentID && p.UserID == granteeID &&
				p.Capability == model.CapabilityRead && p.GrantedBy != nil && *p.GrantedBy == senderID
		})).Return(model.DocumentPermission{
			ID:         uuid.New(),
			DocumentID: documentID,
			UserID:     granteeID,
			Capability: model.CapabilityRead,
		}, nil)

		service := newPermissionService(permStore, &MockRoleStore{}, &MockGroupStore{}, docStore)

		perm, err := service.Grant(context.Background(), senderID, documentID, granteeID, model.CapabilityRead, nil)
		require.NoError(t, err)
		assert.Equal(t, granteeID, perm.UserID)
		permStore.AssertExpectations(t)
	})

	t.Run("non-admin granter denied", func(t *testing.T) {
		permStore := &MockPermissionStore{}
		docStore := &MockDocumentStore{}
		docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
		permStore.On("Get", mock.Anything, documentID, strangerID, model.CapabilityAdmin).
			Return(model.DocumentPermission{}, model.ErrNotFound)

		service := newPermissionService(permStore, &MockRoleStore{}, &MockGroupStore{}, docStore)

		_, err := service.Grant(context.Background(), strangerID, documentID, granteeID, model.CapabilityRead, nil)
		var denied *model.PermissionDeniedError
		assert.ErrorAs(t, err, &denied)
	})

	t.Run("invalid capability", func(t *testing.T) {
		service := newPermissionService(&MockPermissionStore{}, &MockRoleStore{}, &MockGroupStore{}, &MockDocumentStore{})

		_, err := service.Grant(context.Background(), senderID, documentID, granteeID, model.Capability("execute"), nil)
		var validation *model.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestPermissionService_GrantToGroup(t *testing.T) {
	senderID := uuid.New()
	documentID := uuid.New()
	groupID := uuid.New()
	memberA := uuid.New()
	memberB := uuid.New()

	doc := model.Document{ID: documentID, SenderID: senderID, RecipientID: uuid.New()}

	t.Run("grants to every member", func(t *testing.T) {
		permStore := &MockPermissionStore{}
		groupStore := &MockGroupStore{}
		docStore := &MockDocumentStore{}

		groupStore.On("MemberIDs", mock.Anything, groupID).Return([]uuid.UUID{memberA, memberB}, nil)
		docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
		permStore.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.DocumentPermission) bool {
			return p.UserID == memberA
		})).Return(model.DocumentPermission{UserID: memberA}, nil)
		permStore.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.DocumentPermission) bool {
			return p.UserID == memberB
		})).Return(model.DocumentPermission{UserID: memberB}, nil)

		service := newPermissionService(permStore, &MockRoleStore{}, groupStore, docStore)

		granted, err := service.GrantToGroup(context.Background(), senderID, documentID, groupID, model.CapabilityRead, nil)
		require.NoError(t, err)
		assert.Len(t, granted, 2)
		permStore.AssertExpectations(t)
	})

	t.Run("member store error skips that member", func(t *testing.T) {
		permStore := &MockPermissionStore{}
		groupStore := &MockGroupStore{}
		docStore := &MockDocumentStore{}

		groupStore.On("MemberIDs", mock.Anything, groupID).Return([]uuid.UUID{memberA, memberB}, nil)
		docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
		permStore.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.DocumentPermission) bool {
			return p.UserID == memberA
		})).Return(model.DocumentPermission{}, errors.New("database error"))
		permStore.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.DocumentPermission) bool {
			return p.UserID == memberB
		})).Return(model.DocumentPermission{UserID: memberB}, nil)

		service := newPermissionService(permStore, &MockRoleStore{}, groupStore, docStore)

		granted, err := service.GrantToGroup(context.Background(), senderID, documentID, groupID, model.CapabilityRead, nil)
		require.NoError(t, err)
		assert.Len(t, granted, 1)
	})

	t.Run("denied granter aborts the whole batch", func(t *testing.T) {
		strangerID := uuid.New()
		permStore := &MockPermissionStore{}
		groupStore := &MockGroupStore{}
		docStore := &MockDocumentStore{}

		groupStore.On("MemberIDs", mock.Anything, groupID).Return([]uuid.UUID{memberA, memberB}, nil)
		docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
		permStore.On("Get", mock.Anything, documentID, strangerID, model.CapabilityAdmin).
			Return(model.DocumentPermission{}, model.ErrNotFound)

		service := newPermissionService(permStore, &MockRoleStore{}, groupStore, docStore)

		granted, err := service.GrantToGroup(context.Background(), strangerID, documentID, groupID, model.CapabilityRead, nil)
		var denied *model.PermissionDeniedError
		assert.ErrorAs(t, err, &denied)
		assert.Nil(t, granted)
	})
}

func TestPermissionService_Revoke(t *testing.T) {
	senderID := uuid.New()
	granteeID := uuid.New()
	documentID := uuid.New()

	doc := model.Document{ID: documentID, SenderID: senderID, RecipientID: uuid.New()}

	t.Run("sender revokes", func(t *testing.T) {
		permStore := &MockPermissionStore{}
		docStore := &MockDocumentStore{}
		docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
		permStore.On("Delete", mock.Anything, documentID, granteeID, model.CapabilityRead).Return(nil)

		service := newPermissionService(permStore, &MockRoleStore{}, &MockGroupStore{}, docStore)

		err := service.Revoke(context.Background(), senderID, documentID, granteeID, model.CapabilityRead)
		assert.NoError(t, err)
		permStore.AssertExpectations(t)
	})

	t.Run("revoking a missing grant returns not found", func(t *testing.T) {
		permStore := &MockPermissionStore{}
		docStore := &MockDocumentStore{}
		docStore.On("GetByID", mock.Anything, documentID).Return(doc, nil)
		permStore.On("Delete", mock.Anything, documentID, granteeID, model.CapabilityRead).Return(model.ErrNotFound)

		service := newPermissionService(permStore, &MockRoleStore{}, &MockGroupStore{}, docStore)

		err := service.Revoke(context.Background(), senderID, documentID, granteeID, model.CapabilityRead)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestPermissionService_UserPermissionSummary(t *testing.T) {
	userID := uuid.New()
	docA := uuid.New()
	docB := uuid.New()
	expired := time.Now().Add(-time.Hour)

	permStore := &MockPermissionStore{}
	permStore.On("ListByUser", mock.Anything, userID).Return([]model.DocumentPermission{
		{DocumentID: docA, UserID: userID, Capability: model.CapabilityRead},
		{DocumentID: docA, UserID: userID, Capability: model.CapabilityWrite},
		{DocumentID: docB, UserID: userID, Capability: model.CapabilityRead, ExpiresAt: &expired},
	}, nil)

	service := newPermissionService(permStore, &MockRoleStore{}, &MockGroupStore{}, &MockDocumentStore{})

	summary, err := service.UserPermissionSummary(context.Background(), userID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Capability{model.CapabilityRead, model.CapabilityWrite}, summary[docA])
	assert.NotContains(t, summary, docB)
}

func TestPermissionService_HasRole(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name     string
		roles    []string
		roleName string
		want     bool
	}{
		{"direct role", []string{model.RoleEditor}, model.RoleEditor, true},
		{"admin satisfies any role", []string{model.RoleAdmin}, model.RoleEditor, true},
		{"missing role", []string{model.RoleViewer}, model.RoleEditor, false},
		{"no roles", nil, model.RoleEditor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roleStore := &MockRoleStore{}
			roleStore.On("ActiveRoleNames", mock.Anything, userID, mock.Anything).Return(tt.roles, nil)

			service := newPermissionService(&MockPermissionStore{}, roleStore, &MockGroupStore{}, &MockDocumentStore{})

			got, err := service.HasRole(context.Background(), userID, tt.roleName)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermissionService_AssignRole(t *testing.T) {
	adminID := uuid.New()
	userID := uuid.New()
	roleID := uuid.New()

	t.Run("admin assigns role", func(t *testing.T) {
		roleStore := &MockRoleStore{}
		roleStore.On("ActiveRoleNames", mock.Anything, adminID, mock.Anything).Return([]string{model.RoleAdmin}, nil)
		roleStore.On("GetByName", mock.Anything, model.RoleEditor).Return(model.Role{ID: roleID, Name: model.RoleEditor}, nil)
		roleStore.On("UpsertAssignment", mock.Anything, mock.MatchedBy(func(a model.RoleAssignment) bool {
			return a.UserID == userID && a.RoleID == roleID && a.AssignedBy != nil && *a.AssignedBy == adminID
		})).Return(model.RoleAssignment{UserID: userID, RoleID: roleID}, nil)

		service := newPermissionService(&MockPermissionStore{}, roleStore, &MockGroupStore{}, &MockDocumentStore{})

		assignment, err := service.AssignRole(context.Background(), adminID, userID, model.RoleEditor, nil)
		require.NoError(t, err)
		assert.Equal(t, roleID, assignment.RoleID)
		roleStore.AssertExpectations(t)
	})

	t.Run("non-admin denied", func(t *testing.T) {
		roleStore := &MockRoleStore{}
		roleStore.On("ActiveRoleNames", mock.Anything, adminID, mock.Anything).Return([]string{model.RoleEditor}, nil)

		service := newPermissionService(&MockPermissionStore{}, roleStore, &MockGroupStore{}, &MockDocumentStore{})

		_, err := service.AssignRole(context.Background(), adminID, userID, model.RoleViewer, nil)
		var denied *model.PermissionDeniedError
		assert.ErrorAs(t, err, &denied)
	})

	t.Run("unknown role", func(t *testing.T) {
		roleStore := &MockRoleStore{}
		roleStore.On("ActiveRoleNames", mock.Anything, adminID, mock.Anything).Return([]string{model.RoleAdmin}, nil)
		roleStore.On("GetByName", mock.Anything, "missing").Return(model.Role{}, model.ErrNotFound)

		service := newPermissionService(&MockPermissionStore{}, roleStore, &MockGroupStore{}, &MockDocumentStore{})

		_, err := service.AssignRole(context.Background(), adminID, userID, "missing", nil)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestPermissionService_EnsureDefaultRoles(t *testing.T) {
	t.Run("creates missing roles", func(t *testing.T) {
		roleStore := &MockRoleStore{}
		roleStore.On("GetByName", mock.Anything, mock.Anything).Return(model.Role{}, model.ErrNotFound).Times(4)
		roleStore.On("Create", mock.Anything, mock.Anything).Return(model.Role{}, nil).Times(4)

		service := newPermissionService(&MockPermissionStore{}, roleStore, &MockGroupStore{}, &MockDocumentStore{})

		err := service.EnsureDefaultRoles(context.Background())
		require.NoError(t, err)
		roleStore.AssertExpectations(t)
	})

	t.Run("idempotent when roles exist", func(t *testing.T) {
		roleStore := &MockRoleStore{}
		roleStore.On("GetByName", mock.Anything, mock.Anything).Return(model.Role{ID: uuid.New()}, nil).Times(4)

		service := newPermissionService(&MockPermissionStore{}, roleStore, &MockGroupStore{}, &MockDocumentStore{})

		err := service.EnsureDefaultRoles(context.Background())
		require.NoError(t, err)
		roleStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestPermissionService_Groups(t *testing.T) {
	ownerID := uuid.New()
	strangerID := uuid.New()
	groupID := uuid.New()
	memberID := uuid.New()

	group := model.PermissionGroup{ID: groupID, Name: "legal", OwnerID: ownerID}

	t.Run("create group", func(t *testing.T) {
		groupStore := &MockGroupStore{}
		groupStore.On("Create", mock.Anything, mock.MatchedBy(func(g model.PermissionGroup) bool {
			return g.Name == "legal" && g.OwnerID == ownerID
		})).Return(group, nil)

		service := newPermissionService(&MockPermissionStore{}, &MockRoleStore{}, groupStore, &MockDocumentStore{})

		created, err := service.CreateGroup(context.Background(), ownerID, "legal", "")
		require.NoError(t, err)
		assert.Equal(t, groupID, created.ID)
	})

	t.Run("create group requires name", func(t *testing.T) {
		service := newPermissionService(&MockPermissionStore{}, &MockRoleStore{}, &MockGroupStore{}, &MockDocumentStore{})

		_, err := service.CreateGroup(context.Background(), ownerID, "", "")
		var validation *model.ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("only owner adds members", func(t *testing.T) {
		groupStore := &MockGroupStore{}
		groupStore.On("GetByID", mock.Anything, groupID).Return(group, nil)

		service := newPermissionService(&MockPermissionStore{}, &MockRoleStore{}, groupStore, &MockDocumentStore{})

		_, err := service.AddGroupMember(context.Background(), strangerID, groupID, memberID)
		var denied *model.PermissionDeniedError
		assert.ErrorAs(t, err, &denied)
	})

	t.Run("owner removes member", func(t *testing.T) {
		groupStore := &MockGroupStore{}
		groupStore.On("GetByID", mock.Anything, groupID).Return(group, nil)
		groupStore.On("RemoveMember", mock.Anything, groupID, memberID).Return(nil)

		service := newPermissionService(&MockPermissionStore{}, &MockRoleStore{}, groupStore, &MockDocumentStore{})

		err := service.RemoveGroupMember(context.Background(), ownerID, groupID, memberID)
		assert.NoError(t, err)
		groupStore.AssertExpectations(t)
	})

	t.Run("only owner deletes group", func(t *testing.T) {
		groupStore := &MockGroupStore{}
		groupStore.On("GetByID", mock.Anything, groupID).Return(group, nil)

		service := newPermissionService(&MockPermissionStore{}, &MockRoleStore{}, groupStore, &MockDocumentStore{})

		err := service.DeleteGroup(context.Background(), strangerID, groupID)
		var denied *model.PermissionDeniedError
		assert.ErrorAs(t, err, &denied)
	})
}
