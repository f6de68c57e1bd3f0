package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/digest"
	"github.com/yourorg/custodian/internal/storage"
)

// Recorder is what mutating operations depend on to leave an audit trail.
type Recorder interface {
	Append(ctx context.Context, actorID, action string, data any) (Entry, string, error)
}

// Chain appends to and verifies the hash-linked audit log. Entries live in a
// blob store keyed by their own digest; the head hash lives in a pointer cell.
//
// Chain holds no lock. Two concurrent appends may read the same head, both
// link to it, and leave the head on only one of them; the other entry stays
// stored but unreachable. StrictHead turns that into a ConflictError for the
// losing writer instead.
type Chain struct {
	blobs    storage.BlobStore
	pointers storage.PointerStore
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes a Chain.
type Option func(*Chain)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithLogger sets the logger used for append and verify events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewChain(blobs storage.BlobStore, pointers storage.PointerStore, cfg Config, opts ...Option) *Chain {
	if cfg.HeadKey == "" {
		cfg.HeadKey = DefaultHeadKey
	}
	c := &Chain{
		blobs:    blobs,
		pointers: pointers,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Head returns the newest entry hash, or Genesis when the chain is empty.
func (c *Chain) Head(ctx context.Context) (string, error) {
	head, err := c.pointers.Get(ctx, c.cfg.HeadKey)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && head == "") {
		return Genesis, nil
	}
	if err != nil {
		return "", fmt.Errorf("read chain head: %w", err)
	}
	return head, nil
}

// Append links a new entry to the current head, stores it under its digest
// and moves the head to it.
func (c *Chain) Append(ctx context.Context, actorID, action string, data any) (Entry, string, error) {
	head, err := c.Head(ctx)
	if err != nil {
		return Entry{}, "", err
	}
	payload, err := digest.Canonical(data)
	if err != nil {
		return Entry{}, "", fmt.Errorf("serialize audit data: %w", err)
	}
	entry := Entry{
		Timestamp:    c.now().UTC().Format(TimestampLayout),
		ActorID:      actorID,
		Action:       action,
		Data:         payload,
		PreviousHash: head,
	}
	hash, raw, err := digest.JSON(entry)
	if err != nil {
		return Entry{}, "", fmt.Errorf("serialize audit entry: %w", err)
	}
	if err := c.blobs.PutObject(ctx, hash, raw, "application/json"); err != nil {
		return Entry{}, "", fmt.Errorf("store audit entry: %w", err)
	}

	if c.cfg.StrictHead {
		prev := head
		if prev == Genesis {
			prev = ""
		}
		ok, err := c.pointers.CompareAndSwap(ctx, c.cfg.HeadKey, prev, hash)
		if err != nil {
			return Entry{}, "", fmt.Errorf("advance chain head: %w", err)
		}
		if !ok {
			c.logger.Warn("audit head moved during append", "hash", hash, "previousHash", head, "action", action)
			return entry, hash, apperr.ConflictError{Reason: fmt.Sprintf("audit chain head moved from %s during append", head)}
		}
	} else if err := c.pointers.Set(ctx, c.cfg.HeadKey, hash); err != nil {
		return Entry{}, "", fmt.Errorf("advance chain head: %w", err)
	}

	c.logger.Debug("audit entry appended", "hash", hash, "previousHash", head, "action", action, "actorId", actorID)
	return entry, hash, nil
}

// Entry fetches and decodes the stored entry for hash.
func (c *Chain) Entry(ctx context.Context, hash string) (Entry, []byte, error) {
	raw, err := c.blobs.GetObject(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, nil, apperr.NotFoundError{Kind: "audit entry", Key: hash}
	}
	if err != nil {
		return Entry{}, nil, fmt.Errorf("load audit entry %s: %w", hash, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, raw, fmt.Errorf("decode audit entry %s: %w", hash, err)
	}
	return entry, raw, nil
}

// Verify walks from the head back to Genesis, re-hashing the exact stored
// bytes of every entry. The first missing or mismatching entry ends the walk.
// Storage failures other than a missing key are returned as errors.
func (c *Chain) Verify(ctx context.Context) (VerifyResult, error) {
	current, err := c.pointers.Get(ctx, c.cfg.HeadKey)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && current == "") {
		return VerifyResult{Verified: true, LogCount: 0, Message: "No logs found."}, nil
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("read chain head: %w", err)
	}

	count := 0
	for current != "" && current != Genesis {
		raw, err := c.blobs.GetObject(ctx, current)
		if errors.Is(err, storage.ErrNotFound) {
			return c.broken(apperr.IntegrityError{Key: current, Count: count, Reason: "missing"},
				fmt.Sprintf("Verification failed: Log entry for hash %s not found.", current)), nil
		}
		if err != nil {
			return VerifyResult{}, fmt.Errorf("load audit entry %s: %w", current, err)
		}
		if computed := digest.Bytes(raw); computed != current {
			return c.broken(apperr.IntegrityError{Key: current, Count: count, Reason: "hash mismatch"},
				fmt.Sprintf("Verification failed: Hash mismatch for log entry %s.", current)), nil
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return c.broken(apperr.IntegrityError{Key: current, Count: count, Reason: "undecodable"},
				fmt.Sprintf("Verification failed: Log entry %s is not valid JSON.", current)), nil
		}
		count++
		current = entry.PreviousHash
	}

	return VerifyResult{
		Verified: true,
		LogCount: count,
		Message:  fmt.Sprintf("Successfully verified %d log entries. The chain is intact.", count),
	}, nil
}

func (c *Chain) broken(ierr apperr.IntegrityError, message string) VerifyResult {
	c.logger.Warn("audit chain verification failed", "hash", ierr.Key, "logCount", ierr.Count, "reason", ierr.Reason)
	return VerifyResult{Verified: false, LogCount: ierr.Count, Message: message, BrokenAt: ierr.Key}
}
