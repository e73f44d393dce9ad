// FeedService reads the derived analysis and podcast feeds and mints
// short-lived presigned URLs for podcast audio stored in S3-compatible
// object storage.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/verdalabs/wellspring/internal/logging"
	sc "github.com/verdalabs/wellspring/internal/server/config"
	"github.com/verdalabs/wellspring/internal/server/models"
	"github.com/verdalabs/wellspring/internal/server/repositories/repomanager"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

const presignedURLValidity = 15 * time.Minute

type FeedService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	log         logging.Logger
}

func NewFeedService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, log logging.Logger) *FeedService {
	return &FeedService{
		db:          db,
		repomanager: m,
		config:      cfg,
		log:         log,
	}
}

// RecentAnalyses returns the user's newest daily analyses, newest first.
func (s *FeedService) RecentAnalyses(ctx context.Context, userID string) ([]models.DailyAnalysis, error) {
	return s.repomanager.Feeds(s.db).RecentAnalyses(ctx, userID, s.config.FeedLimit)
}

// RecentPodcasts returns the user's newest podcasts with presigned audio
// URLs. A podcast whose presign fails is returned without a URL rather than
// failing the whole feed.
func (s *FeedService) RecentPodcasts(ctx context.Context, userID string) ([]models.Podcast, error) {
	podcasts, err := s.repomanager.Feeds(s.db).RecentPodcasts(ctx, userID, s.config.FeedLimit)
	if err != nil {
		return nil, err
	}

	for i := range podcasts {
		if podcasts[i].StorageKey == "" {
			continue
		}
		url, err := s.presignedGetURL(ctx, podcasts[i].StorageKey)
		if err != nil {
			s.log.Warn(ctx, "presign failed", "podcast_id", podcasts[i].ID, "error", err.Error())
			continue
		}
		podcasts[i].AudioURL = url
	}

	return podcasts, nil
}

func (s *FeedService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,     // MINIO_ROOT_USER
			s.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

func (s *FeedService) presignedGetURL(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignedURLValidity))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
