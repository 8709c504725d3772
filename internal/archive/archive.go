// Package archive bundles finished coaching sessions for later review.
// A bundle holds the session transcript as gzipped JSON lines plus the
// last few sampled stills, uploaded through a storage provider with a
// manifest written last. Sessions beyond the retention limit are pruned,
// oldest first.
package archive

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/archive/providers"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/config"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/workerpool"
)

var log = logging.L("archive")

// Session is the manifest stored alongside each archived session.
type Session struct {
	ID        string    `json:"id"`
	Game      string    `json:"game"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Entries   int       `json:"entries"`
	Stills    int       `json:"stills"`
	Size      int64     `json:"size"`
}

// Options configures a Manager.
type Options struct {
	Provider providers.Provider
	// Pool parallelizes file uploads. Nil uploads sequentially.
	Pool *workerpool.Pool
	// Retention is how many sessions to keep. Zero or negative keeps all.
	Retention int
	Clock     clock.Clock
}

// Manager stores session bundles and enforces retention.
type Manager struct {
	provider  providers.Provider
	pool      *workerpool.Pool
	retention int
	clk       clock.Clock
}

func NewManager(opts Options) *Manager {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{
		provider:  opts.Provider,
		pool:      opts.Pool,
		retention: opts.Retention,
		clk:       clk,
	}
}

// Store bundles the recorded session and uploads it, manifest last, then
// prunes sessions beyond the retention limit.
func (m *Manager) Store(ctx context.Context, rec *Recorder) (Session, error) {
	start := time.Now()
	snap := rec.snapshot(m.clk.Now())

	staging, err := os.MkdirTemp("", "coach-archive-")
	if err != nil {
		return Session{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	manifest, files, sess, err := writeBundle(staging, snap)
	if err != nil {
		return Session{}, err
	}

	if err := m.uploadAll(ctx, files); err != nil {
		return Session{}, err
	}
	if err := m.provider.Upload(ctx, manifest.local, manifest.remote); err != nil {
		return Session{}, fmt.Errorf("upload manifest: %w", err)
	}

	log.Info("session archived",
		logging.KeySessionID, sess.ID,
		logging.KeyGame, sess.Game,
		"entries", sess.Entries,
		"stills", sess.Stills,
		"bytes", sess.Size,
		logging.KeyDurationMs, time.Since(start).Milliseconds())

	if err := m.prune(ctx); err != nil {
		log.Warn("retention pruning failed", logging.KeyError, err)
	}
	return sess, nil
}

// uploadAll pushes bundle files through the pool when one is configured,
// running a task inline when the queue has no room for it.
func (m *Manager) uploadAll(ctx context.Context, files []bundleFile) error {
	if len(files) == 0 {
		return nil
	}

	results := make(chan error, len(files))
	for _, f := range files {
		task := func() {
			if err := m.provider.Upload(ctx, f.local, f.remote); err != nil {
				results <- fmt.Errorf("upload %s: %w", f.remote, err)
				return
			}
			results <- nil
		}
		if m.pool == nil || !m.pool.Submit(task) {
			task()
		}
	}

	var errs []error
	for range files {
		if err := <-results; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the manifests of every archived session, oldest first.
// Sessions whose manifest cannot be fetched or parsed are skipped.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	paths, err := m.provider.List(ctx, remoteRoot)
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp("", "coach-manifests-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	var out []Session
	for i, p := range paths {
		if path.Base(p) != manifestName {
			continue
		}
		local := filepath.Join(staging, fmt.Sprintf("manifest-%d.json", i))
		if err := m.provider.Download(ctx, p, local); err != nil {
			log.Warn("manifest fetch failed", "path", p, logging.KeyError, err)
			continue
		}
		data, err := os.ReadFile(local)
		if err != nil {
			return nil, err
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			log.Warn("manifest unreadable", "path", p, logging.KeyError, err)
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// Delete removes every file of one archived session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	paths, err := m.provider.List(ctx, path.Join(remoteRoot, id))
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		if err := m.provider.Delete(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// prune deletes the oldest sessions beyond the retention limit.
func (m *Manager) prune(ctx context.Context) error {
	if m.retention <= 0 {
		return nil
	}
	sessions, err := m.List(ctx)
	if err != nil {
		return err
	}
	if len(sessions) <= m.retention {
		return nil
	}

	var errs []error
	for _, s := range sessions[:len(sessions)-m.retention] {
		if err := m.Delete(ctx, s.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info("old session pruned", logging.KeySessionID, s.ID)
	}
	return errors.Join(errs...)
}

// OpenProvider builds the storage backend named by the configuration.
func OpenProvider(ctx context.Context, cfg config.ArchiveConfig) (providers.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		root := cfg.Dir
		if root == "" {
			root = filepath.Join(config.DataDir(), "archives")
		}
		return providers.NewLocal(root)
	case "s3":
		return providers.NewS3(ctx, providers.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case "gcs":
		return providers.NewGCS(ctx, providers.GCSOptions{
			Bucket:          cfg.GCS.Bucket,
			Prefix:          cfg.GCS.Prefix,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
	case "azure":
		return providers.NewAzure(providers.AzureOptions{
			Container:        cfg.Azure.Container,
			Prefix:           cfg.Azure.Prefix,
			ConnectionString: cfg.Azure.ConnectionString,
		})
	case "b2":
		return providers.NewB2(ctx, providers.B2Options{
			Bucket:         cfg.B2.Bucket,
			Prefix:         cfg.B2.Prefix,
			AccountID:      cfg.B2.AccountID,
			ApplicationKey: cfg.B2.ApplicationKey,
		})
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}

// newID builds a sortable session identifier like
// session-20250601T120000Z-9f3a.
func newID(prefix string, now time.Time) string {
	var b [2]byte
	rand.Read(b[:])
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102T150405Z"), hex.EncodeToString(b[:]))
}
