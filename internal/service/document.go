package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/briefcase-app/briefcase-server/internal/crypto"
	"github.com/briefcase-app/briefcase-server/internal/logger"
	"github.com/briefcase-app/briefcase-server/internal/model"
)

// permissionChecker is the capability gate consumed by the document service.
type permissionChecker interface {
	Check(ctx context.Context, userID, documentID uuid.UUID, capability model.Capability) (bool, error)
}

// Document implements the document use cases: create, read metadata,
// download, update, delete and list. Every operation is gated by an explicit
// authorization check before any state changes, and every attempt is
// recorded in the audit trail.
type Document struct {
	docStore    model.DocumentStore
	userStore   model.UserStore
	auditStore  model.AccessLogStore
	perms       permissionChecker
	engine      *crypto.Engine
	blobs       model.BlobStorage
	maxFileSize int64
	inlineLimit int64
	logger      *logger.Logger
}

func NewDocument(
	docStore model.DocumentStore,
	userStore model.UserStore,
	auditStore model.AccessLogStore,
	perms permissionChecker,
	engine *crypto.Engine,
	blobs model.BlobStorage,
	maxFileSize int64,
	inlineLimit int64,
	logger *logger.Logger,
) *Document {
	return &Document{
		docStore:    docStore,
		userStore:   userStore,
		auditStore:  auditStore,
		perms:       perms,
		engine:      engine,
		blobs:       blobs,
		maxFileSize: maxFileSize,
		inlineLimit: inlineLimit,
		logger:      logger,
	}
}

// DownloadResult carries decrypted content together with the post-download
// document state.
type DownloadResult struct {
	Document model.Document
	Content  []byte
}

// Create validates the payload, generates the document id, and runs the
// two-phase write: placeholder row, encrypt under the new id, finalize with
// the envelope. The store executes all three inside one transaction so no
// partially encrypted document is ever visible to readers.
func (s *Document) Create(ctx context.Context, params model.CreateDocumentParams) (model.Document, error) {
	recipient, err := s.userStore.GetByID(ctx, params.RecipientID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Document{}, fmt.Errorf("recipient user: %w", model.ErrNotFound)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to get recipient: %w", err)
	}
	if !recipient.IsActive {
		return model.Document{}, model.NewValidationError("recipient user is not active")
	}

	if err := s.validateCreate(params); err != nil {
		return model.Document{}, err
	}

	doc := model.Document{
		ID:          uuid.New(),
		Title:       params.Title,
		Description: params.Description,
		FileName:    params.FileName,
		FileSize:    int64(len(params.Content)),
		MimeType:    params.MimeType,
		SenderID:    params.SenderID,
		RecipientID: params.RecipientID,
		ExpiresAt:   params.ExpiresAt,
		ViewLimit:   params.ViewLimit,
		Status:      model.StatusActive,
	}

	offload := doc.FileSize > s.inlineLimit
	if offload {
		doc.StorageKey = blobKey(doc.ID)
	}

	var uploaded bool
	seal := func(id uuid.UUID) (string, string, error) {
		env, err := s.engine.Encrypt(params.Content, id)
		if err != nil {
			return "", "", err
		}
		if !offload {
			return env.Ciphertext, env.IV, nil
		}
		if err := s.blobs.Upload(ctx, doc.StorageKey, strings.NewReader(env.Ciphertext)); err != nil {
			return "", "", fmt.Errorf("failed to upload ciphertext: %w", err)
		}
		uploaded = true
		return "", env.IV, nil
	}

	saved, err := s.docStore.Create(ctx, doc, seal)
	if err != nil {
		if uploaded {
			if derr := s.blobs.Delete(ctx, doc.StorageKey); derr != nil {
				s.logger.Error("failed to delete orphaned ciphertext object",
					"key", doc.StorageKey, "error", derr)
			}
		}
		if errors.Is(err, crypto.ErrEncryptionFailed) {
			s.logger.Error("document encryption failed", "document_id", doc.ID, "error", err)
			return model.Document{}, crypto.ErrEncryptionFailed
		}
		return model.Document{}, fmt.Errorf("failed to create document: %w", err)
	}

	s.logAccess(ctx, saved.ID, params.SenderID, model.ActionUpload, true, "")
	return saved, nil
}

// Get returns document metadata. Allowed for the sender, the recipient, or
// a user holding an active read grant.
func (s *Document) Get(ctx context.Context, documentID, userID uuid.UUID) (model.Document, error) {
	doc, err := s.docStore.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "document not found")
			return model.Document{}, model.ErrNotFound
		}
		return model.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	allowed, err := s.canRead(ctx, &doc, userID)
	if err != nil {
		return model.Document{}, err
	}
	if !allowed {
		s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "user not authorized to access this document")
		return model.Document{}, &model.PermissionDeniedError{Reason: "no read access to document"}
	}

	s.refreshStatus(ctx, &doc)
	s.logAccess(ctx, documentID, userID, model.ActionView, true, "")
	return doc, nil
}

// Download decrypts and returns document content. Gating is the same as Get
// plus the recomputed status must be ACTIVE: expired or view-exhausted
// documents are never decrypted, not even for the sender. The access count
// is incremented only after a successful decrypt, atomically against
// concurrent downloads, so a view limit of 1 admits exactly one download.
func (s *Document) Download(ctx context.Context, documentID, userID uuid.UUID) (DownloadResult, error) {
	doc, err := s.docStore.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "document not found")
			return DownloadResult{}, model.ErrNotFound
		}
		return DownloadResult{}, fmt.Errorf("failed to get document: %w", err)
	}

	allowed, err := s.canRead(ctx, &doc, userID)
	if err != nil {
		return DownloadResult{}, err
	}
	if !allowed {
		s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "user not authorized to access this document")
		return DownloadResult{}, &model.PermissionDeniedError{Reason: "no read access to document"}
	}

	if status := doc.ComputeStatus(time.Now()); status != model.StatusActive {
		s.refreshStatus(ctx, &doc)
		s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false,
			fmt.Sprintf("document not active: %s", status))
		return DownloadResult{}, &model.PermissionDeniedError{Reason: fmt.Sprintf("document is %s", status)}
	}

	ciphertext, err := s.loadCiphertext(ctx, doc)
	if err != nil {
		s.logger.Error("failed to load document ciphertext", "document_id", documentID, "error", err)
		return DownloadResult{}, fmt.Errorf("failed to load document content: %w", err)
	}

	content, err := s.engine.Decrypt(crypto.Envelope{Ciphertext: ciphertext, IV: doc.EncryptionIV}, documentID)
	if err != nil {
		s.logger.Error("document decryption failed", "document_id", documentID, "error", err)
		s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "decryption failed")
		return DownloadResult{}, crypto.ErrDecryptionFailed
	}

	// A failed decrypt must not consume a view, so the increment runs only
	// now. The store guards the bump with the view limit; losing a race on
	// the last view denies this download.
	updated, err := s.docStore.IncrementAccessCount(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrViewLimitReached) {
			s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "view limit reached")
			return DownloadResult{}, &model.PermissionDeniedError{Reason: "view limit reached"}
		}
		return DownloadResult{}, fmt.Errorf("failed to increment access count: %w", err)
	}

	s.logAccess(ctx, documentID, userID, model.ActionDownload, true, "")
	return DownloadResult{Document: updated, Content: content}, nil
}

// Update applies a partial metadata update. Allowed for the sender or a
// holder of an active write grant. Status is recomputed afterwards; raising
// the view limit can move a view-exhausted document back to active.
func (s *Document) Update(ctx context.Context, documentID, userID uuid.UUID, update model.DocumentUpdate) (model.Document, error) {
	doc, err := s.docStore.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Document{}, model.ErrNotFound
		}
		return model.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	allowed, err := s.holdsCapability(ctx, &doc, userID, model.CapabilityWrite)
	if err != nil {
		return model.Document{}, err
	}
	if !allowed {
		s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "user not authorized to update document metadata")
		return model.Document{}, &model.PermissionDeniedError{Reason: "no write access to document"}
	}

	if update.ViewLimit != nil && *update.ViewLimit <= 0 {
		return model.Document{}, model.NewValidationError("view limit must be positive")
	}

	if update.Title != nil {
		doc.Title = *update.Title
	}
	if update.Description != nil {
		doc.Description = *update.Description
	}
	if update.ExpiresAt != nil {
		doc.ExpiresAt = update.ExpiresAt
	}
	if update.ViewLimit != nil {
		doc.ViewLimit = update.ViewLimit
	}
	doc.RefreshStatus(time.Now())

	saved, err := s.docStore.Update(ctx, doc)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to update document: %w", err)
	}

	s.logAccess(ctx, documentID, userID, model.ActionUpdate, true, "")
	return saved, nil
}

// Delete soft-deletes a document. Allowed for the sender or a holder of an
// active delete grant. The row remains recoverable until the cleanup engine
// purges it after the grace period.
func (s *Document) Delete(ctx context.Context, documentID, userID uuid.UUID) error {
	doc, err := s.docStore.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to get document: %w", err)
	}

	allowed, err := s.holdsCapability(ctx, &doc, userID, model.CapabilityDelete)
	if err != nil {
		return err
	}
	if !allowed {
		s.logAccess(ctx, documentID, userID, model.ActionAccessDenied, false, "user not authorized to delete document")
		return &model.PermissionDeniedError{Reason: "no delete access to document"}
	}

	if err := s.docStore.SoftDelete(ctx, documentID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to soft delete document: %w", err)
	}

	s.logAccess(ctx, documentID, userID, model.ActionDelete, true, "")
	return nil
}

// ListForUser lists the user's documents. The filter is applied server-side:
// as recipient the user never sees view-exhausted documents, as sender they
// see all of their own regardless of exhaustion.
func (s *Document) ListForUser(ctx context.Context, userID uuid.UUID, sent, received bool) ([]model.Document, error) {
	if !sent && !received {
		return []model.Document{}, nil
	}

	docs, err := s.docStore.ListForUser(ctx, userID, sent, received)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ListAccessible lists every document the user can reach as sender,
// recipient, or through an active read, write or admin grant.
func (s *Document) ListAccessible(ctx context.Context, userID uuid.UUID) ([]model.Document, error) {
	docs, err := s.docStore.ListAccessibleTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible documents: %w", err)
	}
	return docs, nil
}

// AccessHistory returns the audit trail for a document. Sender only.
func (s *Document) AccessHistory(ctx context.Context, documentID, userID uuid.UUID) ([]model.AccessLog, error) {
	doc, err := s.docStore.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc.SenderID != userID {
		return nil, &model.PermissionDeniedError{Reason: "only the sender may view access history"}
	}

	logs, err := s.auditStore.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return logs, nil
}

func (s *Document) validateCreate(params model.CreateDocumentParams) error {
	if params.Title == "" {
		return model.NewValidationError("title is required")
	}
	if params.FileName == "" {
		return model.NewValidationError("file name is required")
	}
	if len(params.Content) == 0 {
		return model.NewValidationError("content is required")
	}
	if int64(len(params.Content)) > s.maxFileSize {
		return model.NewValidationError("content exceeds maximum file size of %d bytes", s.maxFileSize)
	}
	if params.ViewLimit != nil && *params.ViewLimit <= 0 {
		return model.NewValidationError("view limit must be positive")
	}
	if params.ExpiresAt != nil && !params.ExpiresAt.After(time.Now()) {
		return model.NewValidationError("expiry must be in the future")
	}
	return nil
}

// canRead combines the sender/recipient path with the explicit-grant path.
func (s *Document) canRead(ctx context.Context, doc *model.Document, userID uuid.UUID) (bool, error) {
	if doc.RecipientID == userID {
		return true, nil
	}
	return s.holdsCapability(ctx, doc, userID, model.CapabilityRead)
}

// holdsCapability short-circuits for the sender, then falls through to the
// evaluator for explicit grants.
func (s *Document) holdsCapability(ctx context.Context, doc *model.Document, userID uuid.UUID, capability model.Capability) (bool, error) {
	if doc.SenderID == userID {
		return true, nil
	}
	allowed, err := s.perms.Check(ctx, userID, doc.ID, capability)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s permission: %w", capability, err)
	}
	return allowed, nil
}

// refreshStatus recomputes the derived status and opportunistically persists
// it when drift is detected. Persistence failure is logged, never surfaced:
// the in-memory status is authoritative for this request.
func (s *Document) refreshStatus(ctx context.Context, doc *model.Document) {
	if !doc.RefreshStatus(time.Now()) {
		return
	}
	if err := s.docStore.UpdateStatus(ctx, doc.ID, doc.Status); err != nil {
		s.logger.Warn("failed to persist refreshed document status",
			"document_id", doc.ID, "status", doc.Status, "error", err)
	}
}

func (s *Document) loadCiphertext(ctx context.Context, doc model.Document) (string, error) {
	if doc.StorageKey == "" {
		return doc.EncryptedContent, nil
	}

	reader, err := s.blobs.Download(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to download ciphertext object: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read ciphertext object: %w", err)
	}
	return string(data), nil
}

// logAccess appends an audit record. Audit writes are best-effort and never
// fail the operation they describe.
func (s *Document) logAccess(ctx context.Context, documentID, userID uuid.UUID, action model.AccessAction, success bool, errorMessage string) {
	err := s.auditStore.Create(ctx, model.AccessLog{
		ID:           uuid.New(),
		DocumentID:   documentID,
		UserID:       userID,
		Action:       action,
		Success:      success,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		s.logger.Error("failed to write access log",
			"document_id", documentID, "user_id", userID, "action", action, "error", err)
	}
}

func blobKey(documentID uuid.UUID) string {
	return fmt.Sprintf("documents/%s", documentID.String())
}
