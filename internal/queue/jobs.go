// Package queue defines the background task types shared between the API
// server (producer) and the worker (consumer), backed by asynq on Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"filedrop/internal/config"
)

const (
	// ScanFileTask is scheduled for every uploaded blob to transition its
	// scan status out of pending.
	ScanFileTask = "file:scan"
	// OrphanSweepTask reconciles object storage against the metadata store,
	// deleting blobs that no record references. It carries no payload.
	OrphanSweepTask = "maintenance:orphan_sweep"
)

// ScanPayload is serialized into the scan task so the worker knows which
// object to examine and which record to update.
type ScanPayload struct {
	FileID      string `json:"file_id"`
	StoragePath string `json:"storage_path"`
}

// RedisOpt builds the asynq Redis connection options from config.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Client wraps an asynq client for enqueueing filedrop tasks.
type Client struct {
	inner *asynq.Client
}

// NewClient creates a task producer against the given Redis backend.
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{inner: asynq.NewClient(RedisOpt(cfg))}
}

// Close releases the underlying Redis connections.
func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueueScan enqueues a virus-scan job for an uploaded blob.
func (c *Client) EnqueueScan(ctx context.Context, fileID, storagePath string) error {
	data, err := json.Marshal(ScanPayload{FileID: fileID, StoragePath: storagePath})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ScanFileTask, data)
	if _, err := c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue scan task: %w", err)
	}
	return nil
}
