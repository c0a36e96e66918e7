package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// multipartThreshold is the archive size above which uploads go through
	// the multipart manager.
	multipartThreshold = 2 * minPartSize
)

// Narrow store interfaces required by the archiver. The memory and Postgres
// stores satisfy them directly.

// FinalizedMatchSource lists matches that can no longer change.
type FinalizedMatchSource interface {
	ListFinalizedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Match, error)
}

// StakeSource lists the stakes of one match.
type StakeSource interface {
	ListByMatch(ctx context.Context, matchID uint64) ([]domain.Stake, error)
}

// ClaimSource lists the claims of one match.
type ClaimSource interface {
	ListByMatch(ctx context.Context, matchID uint64) ([]domain.Claim, error)
}

// MatchRecord is one line of a match archive.
type MatchRecord struct {
	Match  domain.Match   `json:"match"`
	Stakes []domain.Stake `json:"stakes"`
	Claims []domain.Claim `json:"claims"`
}

// ArchiveImpl implements domain.Archiver by collecting finalized matches
// together with their stakes and claims, serializing them to JSONL, and
// uploading the result.
//
// Archived matches are NOT removed from the primary store.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	matches FinalizedMatchSource
	stakes  StakeSource
	claims  ClaimSource
	audit   domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl. reader may be nil, in which case
// existing archives are overwritten without being detected.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	matches FinalizedMatchSource,
	stakes StakeSource,
	claims ClaimSource,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		reader:  reader,
		matches: matches,
		stakes:  stakes,
		claims:  claims,
		audit:   audit,
	}
}

// ArchiveMatches snapshots every match finalized before the cutoff to
// archive/matches/YYYY-MM.jsonl. Re-running within the same month replaces
// the snapshot. It returns the number of archived matches.
func (a *ArchiveImpl) ArchiveMatches(ctx context.Context, before time.Time) (int64, error) {
	matches, err := a.matches.ListFinalizedBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive matches query: %w", err)
	}
	if len(matches) == 0 {
		return 0, nil
	}

	records := make([]MatchRecord, 0, len(matches))
	for _, m := range matches {
		stakes, err := a.stakes.ListByMatch(ctx, m.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive stakes of match %d: %w", m.ID, err)
		}
		claims, err := a.claims.ListByMatch(ctx, m.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive claims of match %d: %w", m.ID, err)
		}
		records = append(records, MatchRecord{Match: m, Stakes: stakes, Claims: claims})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive matches marshal: %w", err)
	}

	path := archivePath("matches", before)

	replaced := false
	if a.reader != nil {
		replaced, err = a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive matches: %w", err)
		}
	}

	if int64(len(buf)) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive matches upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, domain.AuditEntry{
		Event: "archive.matches",
		Detail: map[string]any{
			"path":     path,
			"count":    count,
			"bytes":    len(buf),
			"replaced": replaced,
			"before":   before.Format(time.RFC3339),
		},
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive matches audit log: %w", err)
	}
	for _, rec := range records {
		if err := a.audit.Log(ctx, domain.AuditEntry{
			Event:   "archive.match",
			MatchID: rec.Match.ID,
			Detail:  map[string]any{"path": path, "status": rec.Match.Status.String()},
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive match %d audit log: %w", rec.Match.ID, err)
		}
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/matches/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
