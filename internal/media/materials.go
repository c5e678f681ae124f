// Package media loads the presentation material sent to objecting leads and
// relatives: a PDF fetched from object storage when configured, with a
// local-file fallback for development.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Materials serves the presentation document. The encoded payload is cached
// after the first successful load; the file changes rarely and re-reading it
// per send would dominate media-send latency.
type Materials struct {
	client   *minio.Client
	bucket   string
	localDir string
	filename string
	caption  string
	log      *logger.Logger

	mu     sync.Mutex
	cached string
}

// New creates the materials loader. Object storage is optional; when the
// endpoint is not configured only the local directory is used.
func New(cfg config.MediaConfig, log *logger.Logger) (*Materials, error) {
	m := &Materials{
		bucket:   cfg.GetMinioBucketMaterials(),
		localDir: cfg.GetMaterialsDir(),
		filename: cfg.GetPresentationFile(),
		caption:  cfg.GetPresentationCaption(),
		log:      log,
	}

	if cfg.IsMinIOEnabled() {
		client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
			Secure: cfg.GetMinIOUseSSL(),
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		m.client = client
	}

	return m, nil
}

// Filename returns the presentation file name used in media sends.
func (m *Materials) Filename() string { return m.filename }

// Caption returns the caption text sent with the presentation.
func (m *Materials) Caption() string { return m.caption }

// PresentationBase64 returns the presentation PDF base64-encoded.
func (m *Materials) PresentationBase64(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != "" {
		return m.cached, nil
	}

	data, err := m.load(ctx)
	if err != nil {
		return "", err
	}

	m.cached = base64.StdEncoding.EncodeToString(data)
	return m.cached, nil
}

func (m *Materials) load(ctx context.Context) ([]byte, error) {
	if m.client != nil {
		obj, err := m.client.GetObject(ctx, m.bucket, m.filename, minio.GetObjectOptions{})
		if err == nil {
			data, readErr := io.ReadAll(obj)
			obj.Close()
			if readErr == nil && len(data) > 0 {
				return data, nil
			}
			if readErr != nil {
				m.log.Warn("presentation fetch from bucket failed, trying local file",
					"bucket", m.bucket, "object", m.filename, "error", readErr.Error())
			}
		} else {
			m.log.Warn("presentation fetch from bucket failed, trying local file",
				"bucket", m.bucket, "object", m.filename, "error", err.Error())
		}
	}

	data, err := os.ReadFile(filepath.Join(m.localDir, m.filename))
	if os.IsNotExist(err) {
		return nil, apperr.NotFound("presentation material not available")
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
