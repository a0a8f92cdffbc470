package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/config"
	"github.com/anyhowai/moveout/internal/email"
	"github.com/anyhowai/moveout/internal/services"
	"github.com/anyhowai/moveout/internal/storage"
	"github.com/anyhowai/moveout/internal/utils"
)

// Task types.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
	TypeExpireSweep   = "items:expire_sweep"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}
	return asynq.NewClient(clientOpt)
}

// NewSweepScheduler returns a scheduler that enqueues the expiry sweep task
// every interval. The trigger lives in the scheduler process rather than as
// a self-re-enqueueing task chain in Redis, so a worker restart can never
// leave a second chain behind.
func NewSweepScheduler(rdb *redis.Client, interval time.Duration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: rdb.Options().Addr}, nil)
	task := asynq.NewTask(TypeExpireSweep, nil)
	if _, err := scheduler.Register(fmt.Sprintf("@every %s", interval), task, asynq.MaxRetry(0)); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// EnqueueImageProcess schedules normalization of a freshly uploaded item photo.
func EnqueueImageProcess(ctx context.Context, client *asynq.Client, s3Key string, itemID utils.SixID) error {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: s3Key, ItemID: itemID.String()})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeImageProcess, payload, asynq.Queue("images"))
	_, err = client.EnqueueContext(ctx, task)
	return err
}

// EnqueueEmail schedules a notification email for delivery.
func EnqueueEmail(ctx context.Context, client *asynq.Client, payload EmailTaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeEmailDelivery, data)
	_, err = client.EnqueueContext(ctx, task)
	return err
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of background tasks. It holds the
// dependencies needed by the task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	storageService storage.IS3Storage
	itemService    services.IItemService
	userService    services.IUserService
	taskClient     *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	itemService services.IItemService,
	userService services.IUserService,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		storageService: storageService,
		itemService:    itemService,
		userService:    userService,
		taskClient:     taskClient,
	}
}

// SetupServer configures an Asynq server instance without starting it.
// Which handlers get registered depends on the worker mode. The caller runs
// the returned server with the returned mux.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeExpireSweep, processor.HandleExpireSweepTask)
		fmt.Println("Registered background task handlers (email & expiry sweep).")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		fmt.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// --- Task Handlers ---

// EmailTaskPayload carries everything needed to render and send one
// notification email.
type EmailTaskPayload struct {
	To           string                 `json:"to"`
	Notification email.NotificationType `json:"notification"`
	ItemTitle    string                 `json:"item_title,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Stars        int                    `json:"stars,omitempty"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	var subject, body string
	switch payload.Notification {
	case email.NotificationItemExpired:
		subject, body = email.ItemExpiredEmail(p.cfg.AppName, payload.ItemTitle)
	case email.NotificationReportAck:
		subject, body = email.ReportAckEmail(p.cfg.AppName, payload.Category)
	case email.NotificationNewMessage:
		subject, body = email.NewMessageEmail(p.cfg.AppName, payload.ItemTitle)
	case email.NotificationRatingReceived:
		subject, body = email.RatingReceivedEmail(p.cfg.AppName, payload.Stars)
	default:
		return fmt.Errorf("unknown notification type %q: %w", payload.Notification, asynq.SkipRetry)
	}

	rawMessage := email.BuildMessage(p.cfg.SmtpFromAddress, []string{payload.To}, subject, body)
	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, rawMessage); err != nil {
		log.Printf("Email sending failed for %s (%s): %v", payload.To, payload.Notification, err)
		return err
	}

	log.Printf("Email task processed: To=%s, Notification=%s", payload.To, payload.Notification)
	return nil
}

// ImageTaskPayload identifies an uploaded item photo to normalize.
type ImageTaskPayload struct {
	S3Key  string `json:"s3_key"`
	ItemID string `json:"item_id"`
}

// HandleImageProcessTask downloads an uploaded photo, caps its dimensions,
// re-encodes it as JPEG and links it to the item.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	itemID, err := utils.ParseSixID(payload.ItemID)
	if err != nil {
		log.Printf("Invalid ItemID in image task payload: %s", payload.ItemID)
		return fmt.Errorf("invalid item ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, ItemID=%s", payload.S3Key, payload.ItemID)

	imgData, err := p.storageService.GetObject(ctx, payload.S3Key)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			log.Printf("S3 object %s not found, upload likely never completed.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Deleting.", payload.S3Key, len(imgData), maxSizeBytes)
		if err := p.storageService.DeleteObject(ctx, payload.S3Key); err != nil {
			log.Printf("Failed to delete oversized object %s: %v", payload.S3Key, err)
		}
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.ImageMaxDimension)
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		if err := p.storageService.PutObject(ctx, payload.S3Key, "image/jpeg", buf.Bytes()); err != nil {
			return fmt.Errorf("failed to upload processed image: %w", err)
		}
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resized.Bounds().Dx(), resized.Bounds().Dy())
	}

	if err := p.itemService.SetItemImage(ctx, itemID, payload.S3Key); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			// Item deleted while the photo was in flight; drop the orphan.
			if delErr := p.storageService.DeleteObject(ctx, payload.S3Key); delErr != nil {
				log.Printf("Failed to delete orphaned object %s: %v", payload.S3Key, delErr)
			}
			return fmt.Errorf("item %s gone: %w", payload.ItemID, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to link processed image to item: %w", err)
	}

	log.Printf("Image task processed: Key=%s, ItemID=%s", payload.S3Key, payload.ItemID)
	return nil
}

// HandleExpireSweepTask runs one pass of the deadline sweep and notifies the
// owners of newly expired items. Scheduling is owned entirely by the sweep
// scheduler; a failed pass surfaces its error and the next tick picks the
// same items up again.
func (p *TaskProcessor) HandleExpireSweepTask(ctx context.Context, t *asynq.Task) error {
	result, err := p.itemService.ExpireOverdue(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return err
	}

	if result.ExpiredCount > 0 {
		log.Printf("Expiry sweep: %d item(s) expired", result.ExpiredCount)
		p.notifyExpiredOwners(ctx, result.ExpiredIDs)
	}

	return nil
}

// notifyExpiredOwners enqueues an expiry email per item whose owner has the
// notification enabled. Failures are logged and skipped; the items are
// already expired either way.
func (p *TaskProcessor) notifyExpiredOwners(ctx context.Context, itemIDs []utils.SixID) {
	for _, itemID := range itemIDs {
		item, err := p.itemService.FindItemByID(ctx, itemID)
		if err != nil {
			log.Printf("Error fetching expired item %s for notification: %v", itemID.String(), err)
			continue
		}

		owner, err := p.userService.FindByID(ctx, item.OwnerID)
		if err != nil {
			log.Printf("Error fetching owner %s of expired item %s: %v", item.OwnerID.String(), itemID.String(), err)
			continue
		}
		if owner.Email == "" {
			continue
		}
		if owner.NotificationPreferences != nil && !owner.NotificationPreferences.ItemExpired {
			continue
		}

		err = EnqueueEmail(ctx, p.taskClient, EmailTaskPayload{
			To:           owner.Email,
			Notification: email.NotificationItemExpired,
			ItemTitle:    item.Title,
		})
		if err != nil {
			log.Printf("Error enqueueing expiry email for item %s: %v", itemID.String(), err)
		}
	}
}
