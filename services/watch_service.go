package services

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchService keeps a directory in sync with the vector store: supported
// files are ingested on create or write and removed from the store on delete
// or rename. Ingestion goes through the regular pipeline, so a re-written
// file atomically replaces its prior chunk set.
type WatchService struct {
	ingestService IngestionService
}

// NewWatchService creates a new directory watcher service.
func NewWatchService(ingestService IngestionService) *WatchService {
	return &WatchService{ingestService: ingestService}
}

// ScanDirectory ingests every supported file currently in dirPath. Per-file
// failures are logged and skipped; they never abort the scan.
func (s *WatchService) ScanDirectory(ctx context.Context, dirPath string) {
	log.Printf("INDEXER: Starting directory scan for: %s", dirPath)

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsSupportedFilename(path) {
			return nil
		}
		s.ingestPath(ctx, path)
		return nil
	})
	if err != nil {
		log.Printf("INDEXER ERROR: Error walking the path %s: %v", dirPath, err)
	}
	log.Println("INDEXER: Directory scan finished.")
}

// WatchDirectory starts a long-running process to watch for file changes in
// real-time. It blocks until the context is cancelled.
func (s *WatchService) WatchDirectory(ctx context.Context, dirPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WATCHER ERROR: Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !IsSupportedFilename(event.Name) {
					continue
				}

				// Many editors perform a "write" by creating a temp file and
				// renaming, which can trigger multiple events. Create and
				// Write are handled the same.
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					log.Printf("WATCHER: File modified/created: %s. Re-indexing...", event.Name)
					s.ingestPath(ctx, event.Name)
				} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					// Rename is often treated as Remove by watchers.
					log.Printf("WATCHER: File removed/renamed: %s. Removing from index...", event.Name)
					if _, err := s.ingestService.DeleteDocument(ctx, filepath.Base(event.Name)); err != nil {
						if KindOf(err) != ErrKindDocumentNotFound {
							log.Printf("WATCHER ERROR: Failed to delete records for %s: %v", event.Name, err)
						}
					}
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("WATCHER ERROR: %v", err)
			case <-ctx.Done():
				log.Println("WATCHER: Context cancelled, shutting down watcher.")
				return
			}
		}
	}()

	log.Printf("WATCHER: Watching directory: %s", dirPath)
	if err := watcher.Add(dirPath); err != nil {
		log.Printf("WATCHER ERROR: Failed to add path to watcher: %v", err)
	}

	<-ctx.Done()
}

func (s *WatchService) ingestPath(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("WATCHER WARN: Could not read file %s: %v", path, err)
		return
	}
	if _, err := s.ingestService.IngestFile(ctx, filepath.Base(path), data); err != nil {
		log.Printf("WATCHER ERROR: Failed to process file %s: %v", path, err)
	}
}
