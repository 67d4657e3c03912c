// Package worker implements the background job handlers consumed from the
// asynq queue: virus scanning of uploaded blobs and the orphan-blob sweep.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"filedrop/internal/model"
	"filedrop/internal/queue"
	"filedrop/internal/repository"
	"filedrop/internal/storage"
)

// orphanGracePeriod protects blobs whose metadata insert may still be in
// flight: the upload writes the blob first and the record second.
const orphanGracePeriod = time.Hour

// scanReadLimit bounds how much of a blob the scanner reads.
const scanReadLimit = 1 << 20

// eicarSignature is the standard antivirus test string. The scanner flags
// any blob containing it, which makes the infected path exercisable without
// a real scanning engine.
const eicarSignature = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

// blockedExtensions are flagged as infected regardless of content.
var blockedExtensions = map[string]bool{
	".exe": true,
	".bat": true,
	".cmd": true,
	".scr": true,
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	repo  repository.FileRepository
	store storage.Storage
}

// NewProcessor constructs a worker processor.
func NewProcessor(repo repository.FileRepository, store storage.Storage) *Processor {
	return &Processor{repo: repo, store: store}
}

// Handler registers the job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ScanFileTask, p.handleScan)
	mux.HandleFunc(queue.OrphanSweepTask, p.handleOrphanSweep)
	return mux
}

func (p *Processor) handleScan(ctx context.Context, task *asynq.Task) error {
	var payload queue.ScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	content, _, err := p.store.Get(ctx, payload.StoragePath)
	if err != nil {
		return fmt.Errorf("get blob %s: %w", payload.StoragePath, err)
	}
	defer content.Close()

	head, err := io.ReadAll(io.LimitReader(content, scanReadLimit))
	if err != nil {
		return fmt.Errorf("read blob %s: %w", payload.StoragePath, err)
	}

	status := model.ScanClean
	if blockedExtensions[strings.ToLower(path.Ext(payload.StoragePath))] ||
		bytes.Contains(head, []byte(eicarSignature)) {
		status = model.ScanInfected
	}

	if err := p.repo.SetScanStatus(ctx, payload.FileID, status); err != nil {
		return fmt.Errorf("set scan status for %s: %w", payload.FileID, err)
	}
	log.Printf("file %s scanned: %s", payload.FileID, status)
	return nil
}

// handleOrphanSweep deletes blobs that no metadata record references.
// Orphans appear when an upload crashes between the blob write and the
// record insert, or when a record insert is rolled back but the compensating
// blob delete fails.
func (p *Processor) handleOrphanSweep(ctx context.Context, _ *asynq.Task) error {
	objects, err := p.store.List(ctx, "files/")
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}

	var swept int
	for _, obj := range objects {
		if time.Since(obj.LastModified) < orphanGracePeriod {
			continue
		}
		exists, err := p.repo.ExistsByStoragePath(ctx, obj.Key)
		if err != nil {
			return fmt.Errorf("check record for %s: %w", obj.Key, err)
		}
		if exists {
			continue
		}
		if err := p.store.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete orphan %s: %w", obj.Key, err)
		}
		swept++
	}

	log.Printf("orphan sweep: %d object(s) checked, %d swept", len(objects), swept)
	return nil
}
