package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

const (
	objectDeleteEvent    = "OBJECT_DELETE"
	payloadFormatJSONAPI = "JSON_API_V1"
)

type assetRepository interface {
	FindByStorageKey(ctx context.Context, key string) (*models.MediaAsset, error)
}

type referenceRepository interface {
	DeleteByMediaIDWithTx(tx *gorm.DB, mediaID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, storageKey string)
}

// DeletionConsumer watches Pub/Sub for storage OBJECT_DELETE notifications
// and drops the reference rows of assets removed out of band, so the next
// cleanup pass can reclaim the stale metadata.
type DeletionConsumer struct {
	assets       assetRepository
	references   referenceRepository
	db           txRunner
	cache        cacheInvalidator
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewDeletionConsumer(assets assetRepository, references referenceRepository, db txRunner, cache cacheInvalidator, subscription *pubsub.Subscriber, logg *logger.Logger) (*DeletionConsumer, error) {
	if assets == nil {
		return nil, errors.New("asset repository is required")
	}
	if references == nil {
		return nil, errors.New("reference repository is required")
	}
	if db == nil {
		return nil, errors.New("db client is required")
	}
	if subscription == nil {
		return nil, errors.New("deletion subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &DeletionConsumer{
		assets:       assets,
		references:   references,
		db:           db,
		cache:        cache,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes deletion notifications until the context is canceled.
func (c *DeletionConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *DeletionConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	attrs := parseAttributes(msg.Attributes)
	logCtx := c.logg.WithFields(ctx, c.buildLogFields(msg.ID, attrs, nil))

	if attrs.EventType != objectDeleteEvent {
		c.logg.Info(logCtx, "skipping non-delete event")
		return processResult{ack: true}
	}
	if attrs.PayloadFormat != payloadFormatJSONAPI {
		c.logg.Warn(logCtx, "unsupported payload format")
		return processResult{ack: true}
	}

	payload, err := decodePayload(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	var gcs gcsPayload
	if err := json.Unmarshal(payload, &gcs); err != nil {
		fields := c.buildLogFields(msg.ID, attrs, nil)
		fields["payload_preview"] = previewBytes(payload, 800)
		fields["payload_len"] = len(payload)
		c.logg.Error(c.logg.WithFields(ctx, fields), "failed to unmarshal payload", err)
		return processResult{ack: true}
	}

	if strings.TrimSpace(gcs.Name) == "" {
		c.logg.Error(logCtx, "payload missing object name", fmt.Errorf("empty name"))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(ctx, c.buildLogFields(msg.ID, attrs, &gcs))

	asset, err := c.assets.FindByStorageKey(logCtx, gcs.Name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "no asset registered for deleted object")
			return processResult{ack: true}
		}
		return c.handleDBError(logCtx, err)
	}

	var removed int64
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		removed, txErr = c.references.DeleteByMediaIDWithTx(tx, asset.ID)
		return txErr
	})
	if err != nil {
		return c.handleDBError(logCtx, err)
	}

	if c.cache != nil {
		c.cache.Invalidate(ctx, asset.StorageKey)
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{"references_removed": removed})
	c.logg.Info(logCtx, "processed storage deletion event")
	return processResult{ack: true}
}

func (c *DeletionConsumer) handleDBError(ctx context.Context, err error) processResult {
	c.logg.Error(ctx, "storage deletion db error", err)
	if isTransientDBError(err) {
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *DeletionConsumer) buildLogFields(messageID string, attrs gcsAttributes, payload *gcsPayload) map[string]any {
	fields := map[string]any{
		"message_id": messageID,
		"event_type": attrs.EventType,
		"bucket":     firstNonEmpty(attrs.BucketID, gcsBucket(payload)),
	}
	if payload != nil {
		fields["storage_key"] = payload.Name
	}
	return fields
}

func gcsBucket(p *gcsPayload) string {
	if p == nil {
		return ""
	}
	return p.Bucket
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseAttributes(attrs map[string]string) gcsAttributes {
	return gcsAttributes{
		EventType:     attrs["eventType"],
		BucketID:      attrs["bucketId"],
		ObjectID:      attrs["objectId"],
		PayloadFormat: attrs["payloadFormat"],
	}
}

type gcsAttributes struct {
	EventType     string
	BucketID      string
	ObjectID      string
	PayloadFormat string
}

type gcsPayload struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

func decodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		return decoded, nil
	}
	return data, nil
}

func isTransientDBError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func previewBytes(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
