package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conorfennell/cramdeck/internal/gitsource"
)

// Resolve loads the deck named by source: the embedded deck when source is
// empty, a git repository (cloned or pulled under reposDir) when source is a
// git URL, or a local directory otherwise.
func Resolve(ctx context.Context, source, reposDir string, logger *slog.Logger) (*Deck, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case source == "":
		logger.Info("Using embedded deck")
		return Default()

	case gitsource.IsURL(source):
		localPath, err := gitsource.LocalPath(reposDir, source)
		if err != nil {
			return nil, err
		}
		if err := gitsource.Sync(ctx, source, localPath, logger); err != nil {
			return nil, fmt.Errorf("failed to sync content repository: %w", err)
		}
		logger.Info("Loading deck from repository", "url", source, "path", localPath)
		return LoadDir(localPath)

	default:
		logger.Info("Loading deck from directory", "path", source)
		return LoadDir(source)
	}
}
