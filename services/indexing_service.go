package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/schema"

	"github/itish2003/pdfchat/vectorstore"
)

type documentLoader interface {
	LoadDirectory(ctx context.Context, dir string) ([]schema.Document, error)
	LoadFile(ctx context.Context, path string) ([]schema.Document, error)
}

// IndexingService builds the vector index from PDFs and keeps it in step
// with the data directory.
type IndexingService struct {
	store    vectorstore.Store
	loader   documentLoader
	splitter *Splitter
	log      *logrus.Entry

	// mu guards the delete-then-add replace of a single file.
	mu sync.Mutex
}

func NewIndexingService(store vectorstore.Store, loader documentLoader, splitter *Splitter) *IndexingService {
	return &IndexingService{
		store:    store,
		loader:   loader,
		splitter: splitter,
		log:      logrus.WithField("component", "indexer"),
	}
}

// Bootstrap loads the existing index when the store already holds chunks and
// otherwise builds it from every PDF in dataDir. It returns the number of
// chunks added, which is zero when an index was loaded.
func (s *IndexingService) Bootstrap(ctx context.Context, dataDir string) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not inspect index: %w", err)
	}
	if count > 0 {
		s.log.Infof("Loading existing index (%d chunks)...", count)
		return 0, nil
	}

	s.log.Infof("Creating index from %s for the first time...", dataDir)
	docs, err := s.loader.LoadDirectory(ctx, dataDir)
	if err != nil {
		return 0, err
	}
	n, err := s.addDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}
	s.log.Infof("Indexed %d chunks", n)
	return n, nil
}

// IndexFile replaces whatever the index holds for path with its current
// contents.
func (s *IndexingService) IndexFile(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteBySource(ctx, path); err != nil {
		return 0, err
	}
	docs, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		return 0, err
	}
	n, err := s.addDocuments(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to index %s: %w", path, err)
	}
	s.log.Infof("Indexed %s into %d chunks", path, n)
	return n, nil
}

// RemoveFile drops every chunk of path from the index.
func (s *IndexingService) RemoveFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteBySource(ctx, path)
}

func (s *IndexingService) addDocuments(ctx context.Context, docs []schema.Document) (int, error) {
	chunks, err := s.splitter.Split(docs)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	s.log.Debugf("Split %d pages into %d chunks", len(docs), len(chunks))
	ids, err := s.store.AddDocuments(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("could not add chunks to the index: %w", err)
	}
	return len(ids), nil
}

// WatchDirectory re-indexes PDFs in dirPath as they are created, written,
// removed or renamed. It blocks until ctx is cancelled.
func (s *IndexingService) WatchDirectory(ctx context.Context, dirPath string) error {
	watcher, err := s.startWatcher(dirPath)
	if err != nil {
		return err
	}
	s.watchLoop(ctx, watcher)
	return nil
}

func (s *IndexingService) startWatcher(dirPath string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dirPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dirPath, err)
	}
	s.log.Infof("Watching directory: %s", dirPath)
	return watcher, nil
}

func (s *IndexingService) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			s.log.Info("Context cancelled, shutting down watcher.")
			return
		}
	}
}

func (s *IndexingService) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !IsPDF(event.Name) {
		return
	}
	s.log.Debugf("Watcher event: %s", event)

	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		// A partially written file fails to parse; the next write retries.
		if _, err := s.IndexFile(ctx, event.Name); err != nil {
			s.log.Warnf("Failed to index %s: %v", event.Name, err)
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		s.log.Infof("File removed/renamed: %s. Removing from index...", event.Name)
		if err := s.RemoveFile(ctx, event.Name); err != nil {
			s.log.Errorf("Failed to delete records for %s: %v", event.Name, err)
		}
	}
}
