// Package archive periodically copies the request-log ring to object
// storage so entries survive eviction and restarts.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mensajeria/internal/domain"
	"mensajeria/internal/storage"
)

// Source yields log entries appended after a sequence number.
type Source interface {
	Since(seq uint64) []domain.RequestLog
}

type Config struct {
	Bucket   string
	Prefix   string
	Interval time.Duration
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Archiver uploads new ring entries every Interval and once more on Shutdown.
type Archiver struct {
	cfg     Config
	source  Source
	storage storage.Service

	mu      sync.Mutex
	lastSeq uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, source Source, store storage.Service) *Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Archiver{
		cfg:     cfg,
		source:  source,
		storage: store,
	}
}

func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.Flush(ctx); err != nil {
					a.cfg.Logger.WithError(err).Warn("archive request logs")
				}
			}
		}
	}()
	a.cfg.Logger.Infof("request log archiver started, bucket %s every %s", a.cfg.Bucket, a.cfg.Interval)
}

// Shutdown stops the ticker and uploads whatever is still pending.
func (a *Archiver) Shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if _, err := a.Flush(ctx); err != nil {
		a.cfg.Logger.WithError(err).Warn("final request log archive")
	}
	a.cfg.Logger.Info("request log archiver stopped")
}

// Flush uploads entries appended since the previous successful flush and
// returns the object key, or "" when there was nothing new. Entries evicted
// from the ring before a flush are lost.
func (a *Archiver) Flush(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := a.source.Since(a.lastSeq)
	if len(entries) == 0 {
		return "", nil
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode request logs: %w", err)
	}

	key := a.objectKey()
	if _, err := a.storage.Upload(ctx, a.cfg.Bucket, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", err
	}

	a.lastSeq = entries[len(entries)-1].Seq
	a.cfg.Logger.WithFields(logrus.Fields{"key": key, "entries": len(entries)}).Info("request logs archived")
	return key, nil
}

// ListArchives lists the archived objects under the configured prefix.
func (a *Archiver) ListArchives(ctx context.Context) ([]storage.ObjectInfo, error) {
	prefix := a.cfg.Prefix
	if prefix != "" {
		prefix += "/"
	}
	return a.storage.ListObjects(ctx, a.cfg.Bucket, prefix)
}

func (a *Archiver) objectKey() string {
	now := a.cfg.Now().UTC()
	name := fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), uuid.NewString())
	return path.Join(a.cfg.Prefix, now.Format("2006/01/02"), name)
}
