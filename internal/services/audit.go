package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/backoffice-api/apiserver/internal/store"
	"github.com/backoffice-api/apiserver/types"
)

// AuditLogRepository defines persistence operations for audit logs.
type AuditLogRepository interface {
	Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error)
	List(ctx context.Context, filter store.AuditLogFilter) ([]types.AuditLog, error)
}

// AuditPublisher sends audit events to a message broker for external
// consumers. Satisfied by *mq.MQ.
type AuditPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AuditExporter archives audit exports to object storage. Satisfied by
// *storage.Storage.
type AuditExporter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// AuditService records, lists and exports the audit trail. Recording
// always writes to the database; broker publishing and storage export
// are optional and skipped when unconfigured.
type AuditService struct {
	repo      AuditLogRepository
	publisher AuditPublisher
	channel   string
	exporter  AuditExporter
}

func NewAuditService(repo AuditLogRepository, publisher AuditPublisher, channel string, exporter AuditExporter) *AuditService {
	return &AuditService{
		repo:      repo,
		publisher: publisher,
		channel:   channel,
		exporter:  exporter,
	}
}

// Info records an informational audit entry.
func (s *AuditService) Info(ctx context.Context, email, location, action string, data any) {
	s.record(ctx, "INFO", email, location, action, data)
}

// Error records a failure audit entry.
func (s *AuditService) Error(ctx context.Context, email, location, action string, data any) {
	s.record(ctx, "ERROR", email, location, action, data)
}

// record is best-effort: audit failures never fail the request that
// triggered them.
func (s *AuditService) record(ctx context.Context, level, email, location, action string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("null")
	}
	entry := types.AuditLog{
		Email:    email,
		Level:    level,
		Location: location,
		Action:   action,
		Data:     payload,
	}
	stored, err := s.repo.Create(ctx, entry)
	if err != nil {
		log.Printf("audit: failed to record %s %s/%s: %v", level, location, action, err)
		return
	}
	if s.publisher == nil {
		return
	}
	event, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.channel, event, map[string]string{
		"level":    level,
		"location": location,
	}); err != nil {
		log.Printf("audit: failed to publish %s %s/%s: %v", level, location, action, err)
	}
}

// List returns audit entries matching the filter, newest first.
func (s *AuditService) List(ctx context.Context, filter store.AuditLogFilter) ([]types.AuditLog, error) {
	return s.repo.List(ctx, filter)
}

// Export marshals the entries matching the filter to JSON, uploads the
// document to object storage and returns the object key.
func (s *AuditService) Export(ctx context.Context, filter store.AuditLogFilter) (string, error) {
	if s.exporter == nil {
		return "", errors.New("audit export storage is not configured")
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return "", err
	}
	document, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("audit/export-%s.json", time.Now().UTC().Format("20060102T150405"))
	if err := s.exporter.Put(ctx, key, bytes.NewReader(document), int64(len(document)), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
