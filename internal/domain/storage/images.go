// Package storage manages the captured image artifacts on disk. Frames that
// pass the fast gate are saved, confirmed detections are renamed to carry a
// marker suffix, and the directory is pruned to a bounded size.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sentrycam-go/internal/platform/errors"
	"sentrycam-go/internal/platform/logging"
)

// detectedSuffix marks files whose person verdict was confirmed.
const detectedSuffix = "_Detected"

// ImageStore persists frames under a single directory.
type ImageStore struct {
	dir       string
	maxImages int
	logger    *logging.Logger
	clock     func() time.Time
}

// NewImageStore creates a store rooted at dir, keeping at most maxImages
// files.
func NewImageStore(dir string, maxImages int, logger *logging.Logger) *ImageStore {
	if maxImages <= 0 {
		maxImages = 100
	}
	return &ImageStore{
		dir:       dir,
		maxImages: maxImages,
		logger:    logger,
		clock:     time.Now,
	}
}

// Save writes a frame as capture_<timestamp>.jpg and prunes old files so
// the directory never exceeds the configured limit.
func (s *ImageStore) Save(frame []byte) (string, error) {
	const op = "storage.ImageStore.Save"

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrap(errors.KindStorage, op, "create images directory", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("capture_%d.jpg", s.clock().UnixNano()))
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		return "", errors.Wrap(errors.KindStorage, op, "write image", err)
	}

	s.prune()
	return path, nil
}

// MarkDetected renames a saved image to carry the detected marker before
// its extension. It returns the new path.
func (s *ImageStore) MarkDetected(path string) (string, error) {
	const op = "storage.ImageStore.MarkDetected"

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if strings.HasSuffix(base, detectedSuffix) {
		return path, nil
	}

	marked := base + detectedSuffix + ext
	if err := os.Rename(path, marked); err != nil {
		return "", errors.Wrap(errors.KindStorage, op, "rename image", err)
	}
	return marked, nil
}

// Discard removes an image that turned out not to contain a person. The
// removal is best effort.
func (s *ImageStore) Discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WarnTag("STORE", "discard %s failed: %v", filepath.Base(path), err)
	}
}

// prune deletes the oldest images by modification time until the directory
// is back under the limit.
func (s *ImageStore) prune() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.WarnTag("STORE", "read images directory failed: %v", err)
		return
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}

	var images []fileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		images = append(images, fileInfo{name: entry.Name(), modTime: info.ModTime()})
	}

	if len(images) <= s.maxImages {
		return
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].modTime.Before(images[j].modTime)
	})

	for _, img := range images[:len(images)-s.maxImages] {
		if err := os.Remove(filepath.Join(s.dir, img.name)); err != nil {
			s.logger.WarnTag("STORE", "prune %s failed: %v", img.name, err)
		}
	}
}

// Count returns the number of stored images.
func (s *ImageStore) Count() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jpg") {
			count++
		}
	}
	return count
}
