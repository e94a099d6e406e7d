package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"

	// multipartThreshold is the archive size above which uploads switch to
	// the multipart manager.
	multipartThreshold = 64 * 1024 * 1024
)

// SettlementArchiveStore is the slice of domain.SettlementStore the archiver reads.
type SettlementArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Settlement, error)
}

// Archiver implements domain.Archiver. It never deletes from the primary
// stores; pruning is a separate step run after the upload succeeded.
type Archiver struct {
	writer      domain.BlobWriter
	settlements SettlementArchiveStore
	audit       domain.AuditStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, settlements SettlementArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, settlements: settlements, audit: audit}
}

// ArchiveReceipt uploads one receipt as pretty JSON and returns its path.
func (a *Archiver) ArchiveReceipt(ctx context.Context, s domain.Settlement) (string, error) {
	buf, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal receipt %s: %w", s.Listing, err)
	}
	path := ReceiptPath(s)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSON); err != nil {
		return "", fmt.Errorf("s3blob: upload receipt %s: %w", s.Listing, err)
	}
	return path, nil
}

// ArchiveSettlements exports every receipt settled before the cutoff as JSONL
// and returns the number exported.
func (a *Archiver) ArchiveSettlements(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.settlements.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}
	return a.export(ctx, "settlements", before, rows)
}

// ArchiveAudit exports every audit entry created before the cutoff as JSONL.
func (a *Archiver) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.List(ctx, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	return a.export(ctx, "audit", before, entries)
}

func (a *Archiver) export(ctx context.Context, kind string, before time.Time, records any) (int64, error) {
	var (
		buf   []byte
		count int64
		err   error
	)
	switch rs := records.(type) {
	case []domain.Settlement:
		count = int64(len(rs))
		buf, err = marshalJSONL(rs)
	case []domain.AuditEntry:
		count = int64(len(rs))
		buf, err = marshalJSONL(rs)
	default:
		return 0, fmt.Errorf("s3blob: archive %s: unsupported record type %T", kind, records)
	}
	if count == 0 {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.UTC().Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	return count, nil
}

// receiptPrefix roots every receipt partition.
const receiptPrefix = "settlements/"

// ReceiptPath is the object path of a single receipt, partitioned by the
// settlement month.
//
//	settlements/2025/01/<listing>.json
func ReceiptPath(s domain.Settlement) string {
	at := s.SettledAt.UTC()
	return fmt.Sprintf("%s%04d/%02d/%s.json", receiptPrefix, at.Year(), int(at.Month()), s.Listing)
}

// archivePath is the object path of a JSONL export.
//
//	archive/settlements/2025-01-31T00-00-00Z.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02T15-04-05Z"))
}

// marshalJSONL encodes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
