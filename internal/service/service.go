package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github/backup/internal/client"
	"github/backup/internal/config"
	"github/backup/internal/domain"
	"github/backup/internal/progress"
	"github/backup/internal/transfer"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Archive hosts used to build download URLs for work items.
const (
	repoArchiveHost = "github.com"
	gistArchiveHost = "gist.github.com"
)

type Service struct {
	client   client.GitHubClient
	creds    client.Authenticated
	backup   config.BackupConfig
	retry    config.RetryConfig
	observer progress.Observer

	login string
}

func NewService(
	client client.GitHubClient,
	creds client.Authenticated,
	backup config.BackupConfig,
	retry config.RetryConfig,
	observer progress.Observer,
) *Service {
	if observer == nil {
		observer = progress.NopObserver{}
	}

	return &Service{
		client:   client,
		creds:    creds,
		backup:   backup,
		retry:    retry,
		observer: observer,
	}
}

// Run backs up every configured item kind. A failure for one kind
// cancels the others; residual per-item failures are reported through
// each kind's BatchResult, not as an error.
func (s *Service) Run(ctx context.Context) error {
	kinds, err := s.kinds()
	if err != nil {
		return err
	}

	login, err := s.client.FetchViewer(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	s.login = login
	log.Infof("🔑 Authenticated as %s", login)

	if err := os.MkdirAll(s.backup.TargetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", s.backup.TargetDir, err)
	}
	log.Infof("📁 Main backup directory: %s", s.backup.TargetDir)

	g, ctx := errgroup.WithContext(ctx)

	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			result, err := s.BackupKind(ctx, kind)
			if err != nil {
				log.Errorf("❌ Failed to back up %s: %v", kind, err)
				return err
			}

			if len(result.FailedIDs) > 0 {
				log.Errorf("❌ Failed to download %d of %d %s:", len(result.FailedIDs), result.Total, kind)
				for _, id := range result.FailedIDs {
					log.Errorf("  - %s: %s", id, result.Failures[id])
				}
			} else if result.Total > 0 {
				log.Infof("✅ Successfully downloaded all %d %s", result.Total, kind)
			}
			return nil
		})
	}

	return g.Wait()
}

// BackupKind fetches the catalog for one kind and transfers every entry,
// re-driving failures through retry waves. The returned BatchResult
// reflects the final state after all waves.
func (s *Service) BackupKind(ctx context.Context, kind domain.ItemKind) (*domain.BatchResult, error) {
	catalog, err := s.FetchCatalog(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s catalog: %w", kind, err)
	}

	log.Infof("✅ Found %d %s", catalog.Len(), kind)
	if catalog.Truncated {
		log.Warnf("⚠️ %s listing is truncated, backup covers only the fetched entries", kind.GetKindName())
	}

	if catalog.Len() == 0 {
		log.Warnf("⚠️ No %s to process", kind)
		return &domain.BatchResult{Failures: map[string]string{}}, nil
	}

	items := s.BuildWorkItems(catalog)
	lookup := make(map[string]domain.WorkItem, len(items))
	for _, item := range items {
		lookup[item.ID] = item
	}

	ledger := transfer.NewLedger()

	if _, err := s.TransferBatch(ctx, items, ledger); err != nil {
		return nil, err
	}

	if ledger.Len() > 0 {
		log.Warnf("🔄 Retrying %d failed %s...", ledger.Len(), kind)
		if err := s.RetryFailures(ctx, ledger, lookup); err != nil {
			return nil, err
		}
	}

	failures := ledger.Snapshot()
	failedIDs := make([]string, 0, len(failures))
	for id := range failures {
		failedIDs = append(failedIDs, id)
	}
	sort.Strings(failedIDs)

	return &domain.BatchResult{
		Total:     len(items),
		Succeeded: len(items) - len(failures),
		FailedIDs: failedIDs,
		Failures:  failures,
	}, nil
}

// FetchCatalog retrieves the full paged listing for one item kind.
func (s *Service) FetchCatalog(ctx context.Context, kind domain.ItemKind) (*domain.Catalog, error) {
	return s.client.FetchCatalog(ctx, kind)
}

// TransferBatch performs one dispatch pass over items, recording
// failures in ledger.
func (s *Service) TransferBatch(ctx context.Context, items []domain.WorkItem, ledger *transfer.Ledger) (*domain.BatchResult, error) {
	orchestrator := transfer.NewOrchestrator(s.client, s.observer, s.backup.MaxWorkers)
	return orchestrator.Run(ctx, items, ledger)
}

// RetryFailures re-drives the ledger contents through the transfer
// routine until the ledger empties or the wave limit is reached.
func (s *Service) RetryFailures(ctx context.Context, ledger *transfer.Ledger, lookup map[string]domain.WorkItem) error {
	orchestrator := transfer.NewOrchestrator(s.client, s.observer, s.backup.MaxWorkers)
	waves := transfer.NewWaveController(
		orchestrator,
		s.retry.MaxWaves,
		time.Duration(s.retry.WaveDelay)*time.Second,
	)
	return waves.Drive(ctx, ledger, lookup)
}

// BuildWorkItems maps catalog entries to work items in page arrival
// order, resolving the archive URLs each item will be fetched from.
func (s *Service) BuildWorkItems(catalog *domain.Catalog) []domain.WorkItem {
	dir := filepath.Join(s.backup.TargetDir, catalog.Kind.String())

	items := make([]domain.WorkItem, 0, catalog.Len())
	for _, id := range catalog.Order {
		entry := catalog.Entries[id]
		switch catalog.Kind {
		case domain.ItemKindRepository:
			items = append(items, s.repositoryItem(dir, entry))
		case domain.ItemKindGist:
			items = append(items, s.gistItem(dir, entry))
		}
	}
	return items
}

func (s *Service) repositoryItem(dir string, entry domain.CatalogEntry) domain.WorkItem {
	fullName := entry.ID
	if !strings.Contains(fullName, "/") {
		fullName = s.login + "/" + fullName
	}
	cleanName := path.Base(fullName)

	return domain.WorkItem{
		ID:              entry.ID,
		PrimaryURL:      s.archiveURL(repoArchiveHost, fullName+"/archive/refs/heads/main.zip"),
		FallbackURLs:    []string{s.archiveURL(repoArchiveHost, fullName+"/archive/refs/heads/master.zip")},
		DestinationPath: filepath.Join(dir, cleanName+".zip"),
	}
}

func (s *Service) gistItem(dir string, entry domain.CatalogEntry) domain.WorkItem {
	var fallbacks []string
	if pull := entry.Metadata[domain.MetaGitPullURL]; pull != "" {
		fallbacks = append(fallbacks, strings.TrimSuffix(pull, ".git")+"/archive/master.zip")
	}

	return domain.WorkItem{
		ID:              entry.ID,
		PrimaryURL:      s.archiveURL(gistArchiveHost, s.login+"/"+entry.ID+"/archive/master.zip"),
		FallbackURLs:    fallbacks,
		DestinationPath: filepath.Join(dir, path.Base(entry.ID)+".zip"),
	}
}

// archiveURL builds the credential-embedded URL form when a token is
// available and the anonymous form otherwise.
func (s *Service) archiveURL(host, p string) string {
	if token := s.token(); token != "" {
		return fmt.Sprintf("https://%s@%s/%s", token, host, p)
	}
	return fmt.Sprintf("https://%s/%s", host, p)
}

func (s *Service) token() string {
	if s.creds == nil {
		return ""
	}
	return s.creds.Token()
}

func (s *Service) kinds() ([]domain.ItemKind, error) {
	kinds := make([]domain.ItemKind, 0, len(s.backup.Kinds))
	for _, name := range s.backup.Kinds {
		kind := domain.ItemKind(name)
		if kind.ListingPath() == "" {
			return nil, fmt.Errorf("unknown item kind in configuration: %q", name)
		}
		kinds = append(kinds, kind)
	}

	if len(kinds) == 0 {
		return nil, fmt.Errorf("no item kinds configured")
	}
	return kinds, nil
}
