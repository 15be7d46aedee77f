// Package sync pulls scene documents from a remote FTP directory into the
// local scene directory the watcher in internal/reload watches, so a scene
// authored elsewhere can reach a deployed engine without shell access. The
// connection and directory-listing handling follow the usual jlaffaye/ftp
// client pattern, narrowed to the one operation this engine needs: mirror
// remote *.json and *.yaml/*.yml scene files into a local directory on an
// interval.
package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/logger"
	"github.com/ledengine/ledengine/internal/sceneio"
)

// FTPSyncConfig configures the remote scene mirror.
type FTPSyncConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	RemoteDir  string
	LocalDir   string
	Interval   time.Duration
	DialTimeout time.Duration
}

// FTPSync periodically mirrors *.json and *.yaml/*.yml files from RemoteDir
// into LocalDir.
type FTPSync struct {
	cfg FTPSyncConfig
	log *zap.Logger

	// mtimes tracks the remote modification time last seen per filename, so
	// unchanged files aren't re-downloaded every tick.
	mtimes map[string]time.Time
}

// NewFTPSync constructs a syncer. Port defaults to 21, Interval to 5 minutes.
func NewFTPSync(cfg FTPSyncConfig) *FTPSync {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Username == "" {
		cfg.Username = "anonymous"
	}
	return &FTPSync{
		cfg:    cfg,
		log:    logger.Get().Named("ftpsync"),
		mtimes: make(map[string]time.Time),
	}
}

// Run blocks, syncing once immediately and then every cfg.Interval, until ctx
// is cancelled. A failed sync attempt is logged and retried on the next
// tick — it never aborts the loop.
func (s *FTPSync) Run(ctx context.Context) {
	s.syncOnce()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce()
		}
	}
}

func (s *FTPSync) syncOnce() {
	conn, err := ftp.Dial(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port), ftp.DialWithTimeout(s.cfg.DialTimeout))
	if err != nil {
		s.log.Warn("ftp dial failed", zap.Error(err))
		return
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		s.log.Warn("ftp login failed", zap.Error(err))
		return
	}

	entries, err := conn.List(s.cfg.RemoteDir)
	if err != nil {
		s.log.Warn("ftp list failed", zap.String("dir", s.cfg.RemoteDir), zap.Error(err))
		return
	}

	if err := os.MkdirAll(s.cfg.LocalDir, 0o755); err != nil {
		s.log.Warn("local scene dir create failed", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}
		if !strings.HasSuffix(entry.Name, ".json") && !sceneio.LooksLikeYAML(entry.Name) {
			continue
		}
		if last, ok := s.mtimes[entry.Name]; ok && !entry.Time.After(last) {
			continue
		}
		if err := s.pullOne(conn, entry.Name); err != nil {
			s.log.Warn("ftp pull failed", zap.String("file", entry.Name), zap.Error(err))
			continue
		}
		s.mtimes[entry.Name] = entry.Time
		s.log.Info("synced remote scene", zap.String("file", entry.Name))
	}
}

func (s *FTPSync) pullOne(conn *ftp.ServerConn, name string) error {
	remotePath := s.cfg.RemoteDir + "/" + name
	resp, err := conn.Retr(remotePath)
	if err != nil {
		return fmt.Errorf("retrieve %s: %w", remotePath, err)
	}
	defer resp.Close()

	localPath := filepath.Join(s.cfg.LocalDir, name)
	tmpPath := localPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}
	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Atomic rename so the fsnotify watcher in internal/reload never sees a
	// partially written scene file.
	return os.Rename(tmpPath, localPath)
}
