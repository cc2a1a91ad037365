package app

import (
	"context"
	"fmt"
	"log/slog"

	"instagrid/internal/analysis"
	httpapp "instagrid/internal/app/http"
	"instagrid/internal/config"
	"instagrid/internal/domain/models"
	"instagrid/internal/instagram"
	"instagrid/internal/repository"
	analysissvc "instagrid/internal/services/analysis_service"
	draftsvc "instagrid/internal/services/draft_service"
	publishsvc "instagrid/internal/services/publish_service"
	"instagrid/internal/storage/blobstore"
	redisapp "instagrid/internal/storage/redis"
	httprouters "instagrid/internal/transport/http"
)

type App struct {
	HTTPServer *httpapp.Server

	repo  *repository.Repository
	redis *redisapp.Client
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	repo, err := repository.NewRepository(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	redisClient := redisapp.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	credRepo := repository.NewRedisCredentialRepo(redisClient)

	draftBlobs, err := draftBackend(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	uploader, err := publishBackend(ctx, cfg.Blob, draftBlobs)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	igClient := instagram.NewClient(cfg.Instagram.GraphAPIURL, cfg.Instagram.HTTPTimeout)
	llmClient := analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.APIKey, cfg.Analysis.Model, cfg.Instagram.HTTPTimeout)

	draftService := draftsvc.NewDraftService(log, repo.Drafts, draftBlobs, cfg.Blob.URLExpiry)
	publishService := publishsvc.NewPublishService(log, repo.Drafts, draftBlobs, uploader, igClient,
		cfg.Instagram.PollInterval, cfg.Instagram.PollTimeout)
	analysisService := analysissvc.NewAnalysisService(log, llmClient)

	routers := httprouters.NewRouter(log, draftService, publishService, analysisService, credRepo, igClient,
		models.Credentials{
			AccessToken: cfg.Instagram.AccessToken,
			UserID:      cfg.Instagram.UserID,
		})

	server := httpapp.New(log, cfg.HTTP.Host, cfg.HTTP.Port, routers)

	return &App{
		HTTPServer: server,
		repo:       repo,
		redis:      redisClient,
	}, nil
}

func (a *App) Stop() error {
	err := a.HTTPServer.Stop()
	a.repo.Close()
	if cerr := a.redis.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// draftBackend must support reads: drafts render their images back out.
func draftBackend(ctx context.Context, cfg config.BlobConfig) (blobstore.BlobStorage, error) {
	switch cfg.Backend {
	case "minio":
		return blobstore.NewMinioStorage(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.UseSSL, cfg.URLExpiry)
	case "local":
		return blobstore.NewLocalStorage(cfg.LocalDir, cfg.LocalBaseURL)
	default:
		return nil, fmt.Errorf("app: unknown blob backend %q", cfg.Backend)
	}
}

// publishBackend only needs Put: the platform fetches uploads by URL once.
func publishBackend(ctx context.Context, cfg config.BlobConfig, drafts blobstore.BlobStorage) (blobstore.BlobStorage, error) {
	switch cfg.PublishThrough {
	case "minio":
		if cfg.Backend == "minio" {
			return drafts, nil
		}
		return blobstore.NewMinioStorage(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.UseSSL, cfg.URLExpiry)
	case "tmpfiles":
		return blobstore.NewTmpfilesStorage(), nil
	default:
		return nil, fmt.Errorf("app: unknown publish backend %q", cfg.PublishThrough)
	}
}
