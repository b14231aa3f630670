package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/storage"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// jobTimeout 한 번의 작업 실행 제한 시간
const jobTimeout = 10 * time.Minute

// PhotoReferences 리뷰가 참조 중인 사진 파일명 조회
type PhotoReferences interface {
	ListPhotoFilenames(ctx context.Context) ([]string, error)
}

// ReviewScheduler 리뷰 집계 재계산과 고아 사진 정리 스케줄러
type ReviewScheduler struct {
	cron          *cron.Cron
	aggregates    service.AggregateService
	references    PhotoReferences
	photos        storage.PhotoStorage
	recomputeSpec string
	cleanupSpec   string

	mu sync.Mutex
	// 이전 정리 때 고아였던 파일. 두 번 연속 고아일 때만 삭제해서
	// 업로드 직후 아직 커밋되지 않은 리뷰의 사진을 지우지 않는다.
	pendingOrphans map[string]bool
}

// NewReviewScheduler 스케줄러 생성. photos 가 nil 이면 정리 작업은 등록하지 않는다.
func NewReviewScheduler(
	aggregates service.AggregateService,
	references PhotoReferences,
	photos storage.PhotoStorage,
	recomputeSpec, cleanupSpec string,
) *ReviewScheduler {
	return &ReviewScheduler{
		cron:           cron.New(),
		aggregates:     aggregates,
		references:     references,
		photos:         photos,
		recomputeSpec:  recomputeSpec,
		cleanupSpec:    cleanupSpec,
		pendingOrphans: make(map[string]bool),
	}
}

// Start 스케줄러 시작
func (s *ReviewScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.recomputeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		s.RecomputeAll(ctx)
	}); err != nil {
		logger.Error("Failed to add cron job for aggregate recompute", err, map[string]interface{}{
			"spec": s.recomputeSpec,
		})
		return err
	}

	if s.photos != nil && s.cleanupSpec != "" {
		if _, err := s.cron.AddFunc(s.cleanupSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := s.CleanupOrphanPhotos(ctx); err != nil {
				logger.Error("Failed to clean up orphan photos from scheduler", err)
			}
		}); err != nil {
			logger.Error("Failed to add cron job for photo cleanup", err, map[string]interface{}{
				"spec": s.cleanupSpec,
			})
			return err
		}
	}

	s.cron.Start()
	logger.Info("Review scheduler started successfully", map[string]interface{}{
		"recompute": s.recomputeSpec,
		"cleanup":   s.cleanupSpec,
	})
	return nil
}

// Stop 스케줄러 중지. 실행 중인 작업이 끝날 때까지 기다린다.
func (s *ReviewScheduler) Stop() {
	logger.Info("Stopping review scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Review scheduler stopped", nil)
}

// RecomputeAll 전체 상품 집계 재계산
func (s *ReviewScheduler) RecomputeAll(ctx context.Context) {
	logger.Info("Starting scheduled aggregate recompute", nil)

	rebuilt, err := s.aggregates.RebuildAll(ctx)
	if err != nil {
		logger.Error("Failed to recompute aggregates from scheduler", err, map[string]interface{}{
			"rebuilt": rebuilt,
		})
		return
	}

	logger.Info("Successfully recomputed aggregates from scheduler", map[string]interface{}{
		"products": rebuilt,
	})
}

// CleanupOrphanPhotos 어떤 리뷰도 참조하지 않는 사진을 삭제하고 삭제 개수를 반환.
// 이 저장소가 만든 파일명만 대상으로 한다.
func (s *ReviewScheduler) CleanupOrphanPhotos(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.photos.List(ctx)
	if err != nil {
		return 0, err
	}
	referenced, err := s.references.ListPhotoFilenames(ctx)
	if err != nil {
		return 0, err
	}

	inUse := make(map[string]bool, len(referenced))
	for _, name := range referenced {
		inUse[name] = true
	}

	orphans := make(map[string]bool)
	deleted := 0
	for _, name := range stored {
		if !storage.IsManagedFilename(name) || inUse[name] {
			continue
		}
		if !s.pendingOrphans[name] {
			orphans[name] = true
			continue
		}
		if err := s.photos.Delete(ctx, name); err != nil {
			logger.Warn("Failed to delete orphan photo", map[string]interface{}{
				"filename": name,
				"error":    err.Error(),
			})
			orphans[name] = true
			continue
		}
		deleted++
	}
	s.pendingOrphans = orphans

	logger.Info("Orphan photo cleanup finished", map[string]interface{}{
		"stored":  len(stored),
		"deleted": deleted,
		"pending": len(orphans),
	})
	return deleted, nil
}
