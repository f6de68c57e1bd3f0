package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
	"github.com/yourorg/custodian/internal/digest"
	"github.com/yourorg/custodian/internal/storage"
)

const (
	attachmentPrefix = "attachments/"
	// imagePrefix holds photos written before uploads were anchored. They are
	// served read-only.
	imagePrefix = "images/"
)

// Service stores attachments together with their anchor blocks and checks
// them back. Attachments go to the data bucket, blocks to the blocks bucket;
// the two writes are not transactional.
type Service struct {
	data   storage.BlobStore
	blocks storage.BlobStore
	feed   PriceFeed
	audit  auditlog.Recorder
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(data, blocks storage.BlobStore, feed PriceFeed, audit auditlog.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		data:   data,
		blocks: blocks,
		feed:   feed,
		audit:  audit,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Upload anchors file under a new block linked to prevHash. prevHash is
// recorded as given; it is not checked against existing blocks.
func (s *Service) Upload(ctx context.Context, actorID string, file openapi_types.File, prevHash string) (UploadResult, error) {
	if prevHash == "" {
		return UploadResult{}, apperr.Missing("prev_hash")
	}
	content, err := file.Bytes()
	if err != nil {
		return UploadResult{}, apperr.ValidationError{Field: "image_file", Message: err.Error()}
	}
	imageHash := digest.Bytes(content)

	price, err := s.feed.Price(ctx)
	if err != nil {
		return UploadResult{}, err
	}

	attachmentPath := attachmentPrefix + s.newID() + "." + extension(file.Filename())
	block := AnchorBlock{
		Timestamp:      s.now().UTC().Format(auditlog.TimestampLayout),
		PrevHash:       prevHash,
		ImageSHA256:    imageHash,
		BTCUSDAnchor:   price,
		AttachmentPath: attachmentPath,
	}
	merkleRoot, raw, err := digest.JSON(block)
	if err != nil {
		return UploadResult{}, fmt.Errorf("serialize anchor block: %w", err)
	}

	if err := s.data.PutObject(ctx, attachmentPath, content, http.DetectContentType(content)); err != nil {
		return UploadResult{}, fmt.Errorf("store attachment: %w", err)
	}
	if err := s.blocks.PutObject(ctx, blockKey(merkleRoot), raw, "application/json"); err != nil {
		s.logger.Error("anchor block write failed after attachment write", "attachmentPath", attachmentPath, "error", err)
		return UploadResult{}, fmt.Errorf("store anchor block: %w", err)
	}

	result := UploadResult{MerkleRoot: merkleRoot, AttachmentPath: attachmentPath}
	if _, _, err := s.audit.Append(ctx, actorID, auditlog.ActionUploadAttachment, result); err != nil {
		s.logger.Error("anchor block stored without audit entry", "merkleRoot", merkleRoot, "attachmentPath", attachmentPath, "error", err)
		return UploadResult{}, fmt.Errorf("anchor block %s: %w", merkleRoot, apperr.AuditError{Action: auditlog.ActionUploadAttachment, Err: err})
	}
	s.logger.Info("anchor block stored", "merkleRoot", merkleRoot, "attachmentPath", attachmentPath, "actorId", actorID)
	return result, nil
}

// Verify re-hashes the attachment a block points to and compares it with the
// digest recorded in the block. The block is looked up by key only; its own
// digest is not recomputed.
func (s *Service) Verify(ctx context.Context, merkleRoot string) (VerifyResult, error) {
	if merkleRoot == "" {
		return VerifyResult{}, apperr.Missing("merkle_root")
	}
	raw, err := s.blocks.GetObject(ctx, blockKey(merkleRoot))
	if errors.Is(err, storage.ErrNotFound) {
		return VerifyResult{
			Status:  StatusBlockNotFound,
			Message: fmt.Sprintf("Block %s not found.", merkleRoot),
		}, nil
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load anchor block: %w", err)
	}
	var block AnchorBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return VerifyResult{}, fmt.Errorf("decode anchor block %s: %w", merkleRoot, err)
	}

	content, err := s.data.GetObject(ctx, block.AttachmentPath)
	if errors.Is(err, storage.ErrNotFound) {
		return VerifyResult{
			Status:  StatusAttachmentNotFound,
			Message: fmt.Sprintf("Attachment %s not found.", block.AttachmentPath),
			Block:   &block,
		}, nil
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load attachment: %w", err)
	}

	recomputed := digest.Bytes(content)
	if !digest.Equal(recomputed, block.ImageSHA256) {
		s.logger.Warn("attachment hash mismatch", "merkleRoot", merkleRoot, "expected", block.ImageSHA256, "recomputed", recomputed)
		return VerifyResult{
			Status:         StatusHashMismatch,
			Message:        "Verification failed: attachment content does not match the anchored hash.",
			Block:          &block,
			RecomputedHash: recomputed,
		}, nil
	}
	return VerifyResult{
		Success:        true,
		Status:         StatusVerified,
		Message:        "Verification successful: attachment matches the anchored hash.",
		Block:          &block,
		RecomputedHash: recomputed,
	}, nil
}

// Attachment returns the raw bytes stored under attachments/<name>.
func (s *Service) Attachment(ctx context.Context, name string) ([]byte, storage.ObjectMeta, error) {
	return s.object(ctx, "attachment", attachmentPrefix, name)
}

// Image returns the raw bytes stored under images/<name>.
func (s *Service) Image(ctx context.Context, name string) ([]byte, storage.ObjectMeta, error) {
	return s.object(ctx, "image", imagePrefix, name)
}

func (s *Service) object(ctx context.Context, kind, prefix, name string) ([]byte, storage.ObjectMeta, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, storage.ObjectMeta{}, apperr.ValidationError{Field: "name", Message: "invalid " + kind + " name"}
	}
	key := prefix + name
	body, err := s.data.GetObject(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ObjectMeta{}, apperr.NotFoundError{Kind: kind, Key: key}
	}
	if err != nil {
		return nil, storage.ObjectMeta{}, fmt.Errorf("load %s: %w", kind, err)
	}
	meta, err := s.data.Head(ctx, key)
	if err != nil {
		meta = storage.ObjectMeta{Key: key, Size: len(body)}
	}
	return body, meta, nil
}

func extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.ReplaceAll(filename, "\\", "/")), "."))
	if ext == "" {
		return "bin"
	}
	return ext
}
