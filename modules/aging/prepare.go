package aging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"time"

	_ "github.com/kolesa-team/go-webp/decoder" // WebP decoder registration
	xdraw "golang.org/x/image/draw"

	_ "image/png" // PNG decoder registration

	"pet-aging-server/modules/common/model"
)

// SourceStore is the byte-level object-store read the preparer depends on.
type SourceStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Cache is the prepared-image cache. Get returns (nil, nil) on a miss.
// Losing the cache never changes correctness, only latency and cost.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Preparer fetches a source photo, downsizes it for transmission and
// re-encodes it to a small canonical JPEG. Transmission latency to the
// generation API dominates total job time, so size wins over fidelity.
type Preparer struct {
	source   SourceStore
	cache    Cache
	maxEdge  int
	quality  int
	cacheTTL time.Duration
}

// NewPreparer builds an image preparer.
func NewPreparer(source SourceStore, cache Cache, maxEdge, quality int, cacheTTL time.Duration) *Preparer {
	return &Preparer{
		source:   source,
		cache:    cache,
		maxEdge:  maxEdge,
		quality:  quality,
		cacheTTL: cacheTTL,
	}
}

// Prepare returns the transmission-ready form of a source image. Retries
// and both horizons of one run share the cached result.
func (p *Preparer) Prepare(ctx context.Context, sourcePath string) (*model.PreparedImage, error) {
	key := cacheKey(sourcePath)

	if p.cache != nil {
		if data, err := p.cache.Get(ctx, key); err != nil {
			log.Printf("⚠️  Prepared-image cache read failed: %v", err)
		} else if data != nil {
			var cached model.PreparedImage
			if err := json.Unmarshal(data, &cached); err == nil && cached.Base64 != "" {
				log.Printf("✅ Prepared image cache hit: %s", sourcePath)
				return &cached, nil
			}
		}
	}

	raw, err := p.source.Download(ctx, sourcePath)
	if err != nil {
		return nil, &PreparationError{Path: sourcePath, Err: err}
	}
	if len(raw) == 0 {
		return nil, &PreparationError{Path: sourcePath, Err: errors.New("empty image body")}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &PreparationError{Path: sourcePath, Err: fmt.Errorf("undecodable image: %w", err)}
	}
	log.Printf("🔍 Decoded source image: format=%s, bounds=%v", format, img.Bounds())

	img = downscale(img, p.maxEdge)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, &PreparationError{Path: sourcePath, Err: fmt.Errorf("jpeg encode failed: %w", err)}
	}

	prepared := &model.PreparedImage{
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType: "image/jpeg",
	}
	log.Printf("✅ Source image prepared: %d bytes → %d bytes JPEG", len(raw), buf.Len())

	if p.cache != nil {
		if data, err := json.Marshal(prepared); err == nil {
			if err := p.cache.Set(ctx, key, data, p.cacheTTL); err != nil {
				log.Printf("⚠️  Prepared-image cache write failed: %v", err)
			}
		}
	}

	return prepared, nil
}

// downscale shrinks an image so its long edge fits maxEdge, preserving
// aspect ratio with a Catmull-Rom resample. No-op for small images.
func downscale(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	longEdge := width
	if height > longEdge {
		longEdge = height
	}
	if longEdge <= maxEdge {
		return src
	}

	scale := float64(maxEdge) / float64(longEdge)
	newWidth := int(float64(width)*scale + 0.5)
	newHeight := int(float64(height)*scale + 0.5)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	log.Printf("🔄 Downscaled source image: %dx%d → %dx%d", width, height, newWidth, newHeight)
	return dst
}

func cacheKey(sourcePath string) string {
	sum := sha256.Sum256([]byte(sourcePath))
	return "prepared:" + hex.EncodeToString(sum[:])
}
