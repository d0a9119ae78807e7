package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

// MockDocumentStore mocks the DocumentStore interface
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, doc model.Document, seal model.SealFunc) (model.Document, error) {
	args := m.Called(ctx, doc, seal)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (model.Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentStore) Update(ctx context.Context, doc model.Document) (model.Document, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDocumentStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentStore) IncrementAccessCount(ctx context.Context, id uuid.UUID) (model.Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentStore) ListForUser(ctx context.Context, userID uuid.UUID, sent, received bool) ([]model.Document, error) {
	args := m.Called(ctx, userID, sent, received)
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentStore) ListAccessibleTo(ctx context.Context, userID uuid.UUID) ([]model.Document, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentStore) ListExpired(ctx context.Context, now time.Time) ([]model.Document, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentStore) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]model.Document, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentStore) ListExpiringWithin(ctx context.Context, from, to time.Time) ([]model.Document, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentStore) CountByStatus(ctx context.Context) (map[model.DocumentStatus]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[model.DocumentStatus]int), args.Error(1)
}

func (m *MockDocumentStore) Purge(ctx context.Context, id uuid.UUID, finalEvent model.LifecycleEvent) error {
	args := m.Called(ctx, id, finalEvent)
	return args.Error(0)
}

// MockUserStore mocks the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.User), args.Error(1)
}

// MockPermissionStore mocks the PermissionStore interface
type MockPermissionStore struct {
	mock.Mock
}

func (m *MockPermissionStore) Upsert(ctx context.Context, perm model.DocumentPermission) (model.DocumentPermission, error) {
	args := m.Called(ctx, perm)
	return args.Get(0).(model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionStore) Get(ctx context.Context, documentID, userID uuid.UUID, capability model.Capability) (model.DocumentPermission, error) {
	args := m.Called(ctx, documentID, userID, capability)
	return args.Get(0).(model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionStore) Delete(ctx context.Context, documentID, userID uuid.UUID, capability model.Capability) error {
	args := m.Called(ctx, documentID, userID, capability)
	return args.Error(0)
}

func (m *MockPermissionStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).([]model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DocumentPermission, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.DocumentPermission), args.Error(1)
}

// MockRoleStore mocks the RoleStore interface
type MockRoleStore struct {
	mock.Mock
}

func (m *MockRoleStore) Create(ctx context.Context, role model.Role) (model.Role, error) {
	args := m.Called(ctx, role)
	return args.Get(0).(model.Role), args.Error(1)
}

func (m *MockRoleStore) GetByName(ctx context.Context, name string) (model.Role, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Role), args.Error(1)
}

func (m *MockRoleStore) ActiveRoleNames(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error) {
	args := m.Called(ctx, userID, now)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRoleStore) UpsertAssignment(ctx context.Context, assignment model.RoleAssignment) (model.RoleAssignment, error) {
	args := m.Called(ctx, assignment)
	return args.Get(0).(model.RoleAssignment), args.Error(1)
}

// MockGroupStore mocks the GroupStore interface
type MockGroupStore struct {
	mock.Mock
}

func (m *MockGroupStore) Create(ctx context.Context, group model.PermissionGroup) (model.PermissionGroup, error) {
	args := m.Called(ctx, group)
	return args.Get(0).(model.PermissionGroup), args.Error(1)
}

func (m *MockGroupStore) GetByID(ctx context.Context, id uuid.UUID) (model.PermissionGroup, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.PermissionGroup), args.Error(1)
}

func (m *MockGroupStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.PermissionGroup, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]model.PermissionGroup), args.Error(1)
}

func (m *MockGroupStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGroupStore) AddMember(ctx context.Context, member model.GroupMember) (model.GroupMember, error) {
	args := m.Called(ctx, member)
	return args.Get(0).(model.GroupMember), args.Error(1)
}

func (m *MockGroupStore) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MockGroupStore) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockAccessLogStore mocks the AccessLogStore interface
type MockAccessLogStore struct {
	mock.Mock
}

func (m *MockAccessLogStore) Create(ctx context.Context, log model.AccessLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAccessLogStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.AccessLog, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).([]model.AccessLog), args.Error(1)
}

func (m *MockAccessLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

// MockLifecycleEventStore mocks the LifecycleEventStore interface
type MockLifecycleEventStore struct {
	mock.Mock
}

func (m *MockLifecycleEventStore) Create(ctx context.Context, event model.LifecycleEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockLifecycleEventStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.LifecycleEvent, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).([]model.LifecycleEvent), args.Error(1)
}

// MockCleanupJobStore mocks the CleanupJobStore interface
type MockCleanupJobStore struct {
	mock.Mock
}

func (m *MockCleanupJobStore) Create(ctx context.Context, job model.CleanupJob) (model.CleanupJob, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(model.CleanupJob), args.Error(1)
}

func (m *MockCleanupJobStore) Finalize(ctx context.Context, id uuid.UUID, status string, processed, failed int, errorMessage string) error {
	args := m.Called(ctx, id, status, processed, failed, errorMessage)
	return args.Error(0)
}

func (m *MockCleanupJobStore) ListSince(ctx context.Context, since time.Time) ([]model.CleanupJob, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]model.CleanupJob), args.Error(1)
}

// MockLifecycleConfigStore mocks the LifecycleConfigStore interface
type MockLifecycleConfigStore struct {
	mock.Mock
}

func (m *MockLifecycleConfigStore) Get(ctx context.Context, name string) (model.LifecycleSetting, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.LifecycleSetting), args.Error(1)
}

func (m *MockLifecycleConfigStore) Set(ctx context.Context, name, value, description string) error {
	args := m.Called(ctx, name, value, description)
	return args.Error(0)
}

func (m *MockLifecycleConfigStore) SetIfAbsent(ctx context.Context, name, value, description string) (bool, error) {
	args := m.Called(ctx, name, value, description)
	return args.Bool(0), args.Error(1)
}

// MockBlobStorage mocks the BlobStorage interface
type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *MockBlobStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockBlobStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockPermissionChecker mocks the permissionChecker interface
type MockPermissionChecker struct {
	mock.Mock
}

func (m *MockPermissionChecker) Check(ctx context.Context, userID, documentID uuid.UUID, capability model.Capability) (bool, error) {
	args := m.Called(ctx, userID, documentID, capability)
	return args.Bool(0), args.Error(1)
}
