package thumbnails

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/adampresley/fotofacil/pkg/services"
	"github.com/alitto/pond/v2"
	"github.com/nfnt/resize"
)

const (
	DefaultMaxSize uint = 400
)

type ThumbnailCreatorConfig struct {
	Keys        services.PhotoKeys
	MaxSize     uint
	MaxWorkers  int
	ShutdownCtx context.Context
	Storage     services.PhotoStorage
}

/*
ThumbnailCreator resizes album originals on a bounded worker pool. New
uploads are queued with Enqueue, and Sweep catches up on anything missing
or stale, such as thumbnails lost while the server was down.
*/
type ThumbnailCreator struct {
	keys        services.PhotoKeys
	maxSize     uint
	pool        pond.Pool
	shutdownCtx context.Context
	storage     services.PhotoStorage
}

func NewThumbnailCreator(config ThumbnailCreatorConfig) *ThumbnailCreator {
	if config.MaxSize == 0 {
		config.MaxSize = DefaultMaxSize
	}

	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 4
	}

	if config.ShutdownCtx == nil {
		config.ShutdownCtx = context.Background()
	}

	return &ThumbnailCreator{
		keys:        config.Keys,
		maxSize:     config.MaxSize,
		pool:        pond.NewPool(config.MaxWorkers, pond.WithContext(config.ShutdownCtx)),
		shutdownCtx: config.ShutdownCtx,
		storage:     config.Storage,
	}
}

func (c *ThumbnailCreator) Enqueue(originalKey string) {
	if c.shutdownCtx.Err() != nil {
		return
	}

	c.pool.Submit(func() {
		if err := c.createThumbnail(originalKey); err != nil {
			slog.Error("error creating thumbnail", "key", originalKey, "error", err)
		}
	})
}

// Sweep queues every original whose thumbnail is missing or older than the original.
func (c *ThumbnailCreator) Sweep() int {
	slog.Info("starting thumbnail sweep...")

	originals, err := c.storage.List(c.keys.Folder, true)
	if err != nil {
		slog.Error("error listing originals for thumbnail sweep", "error", err)
		return 0
	}

	queued := 0

	for _, original := range originals {
		if !strings.Contains(original.Key, "/originals/") {
			continue
		}

		if c.doesThumbnailExist(original) {
			continue
		}

		c.Enqueue(original.Key)
		queued++
	}

	slog.Info("thumbnail sweep finished", "numOriginals", len(originals), "queued", queued)
	return queued
}

// Stop waits for queued thumbnails to finish.
func (c *ThumbnailCreator) Stop() {
	_ = c.pool.Stop().Wait()
}

// StartSweepRoutine runs Sweep at start and then every interval until quit closes.
func (c *ThumbnailCreator) StartSweepRoutine(interval time.Duration, quit <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.Sweep()

		for {
			select {
			case <-quit:
				return

			case <-c.shutdownCtx.Done():
				return

			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

func (c *ThumbnailCreator) doesThumbnailExist(original services.StoredObject) bool {
	exists, lastModified, err := c.storage.Exists(c.keys.ThumbnailFor(original.Key))
	if err != nil {
		slog.Error("error retrieving metadata for thumbnail", "key", original.Key, "error", err)
		return false
	}

	if !exists {
		return false
	}

	return !lastModified.Before(original.LastModified)
}

func (c *ThumbnailCreator) createThumbnail(originalKey string) error {
	var (
		err error
		img image.Image
		buf bytes.Buffer
	)

	original, _, err := c.storage.Get(originalKey)
	if err != nil {
		return fmt.Errorf("error retrieving original image %s: %w", originalKey, err)
	}

	defer original.Close()

	if img, err = resizeReader(original, c.maxSize); err != nil {
		return fmt.Errorf("error resizing image: %w", err)
	}

	if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("error encoding image for thumbnail: %w", err)
	}

	thumbnailKey := c.keys.ThumbnailFor(originalKey)

	if err = c.storage.Put(thumbnailKey, &buf); err != nil {
		return fmt.Errorf("error uploading thumbnail: %w", err)
	}

	slog.Debug("created thumbnail", "thumbnailKey", thumbnailKey)
	return nil
}

func resizeReader(r io.Reader, maxSize uint) (image.Image, error) {
	var (
		err error
		img image.Image
	)

	if img, _, err = image.Decode(r); err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}

	return fit(img, maxSize), nil
}

/*
fit scales img so its longest edge is maxSize. Images already smaller than
maxSize are left alone.
*/
func fit(img image.Image, maxSize uint) image.Image {
	bounds := img.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())

	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight uint

	if width > height {
		// Landscape orientation
		newWidth = maxSize
		newHeight = uint(float64(height) * (float64(maxSize) / float64(width)))
	} else {
		// Portrait orientation or square
		newHeight = maxSize
		newWidth = uint(float64(width) * (float64(maxSize) / float64(height)))
	}

	return resize.Resize(newWidth, newHeight, img, resize.Lanczos3)
}
