package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"shop-service/apperrors"
	"shop-service/models"
	"shop-service/repositories"

	"github.com/rs/zerolog"
)

type ReviewService struct {
	store  repositories.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewReviewService(store repositories.Store, logger zerolog.Logger) *ReviewService {
	if store == nil {
		panic("review service missing required dependency store")
	}
	return &ReviewService{
		store:  store,
		logger: logger.With().Str("component", "review_service").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateReview 只有买过且订单已完成的客户才能评价, 每个商品只能评价一次
func (s *ReviewService) CreateReview(ctx context.Context, customerID string, req models.CreateReviewRequest) (*models.Review, error) {
	if customerID == "" {
		return nil, apperrors.New(apperrors.Unauthenticated, "customer identity is required")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.Newf(apperrors.ValidationError, "rating must be between 1 and 5, got %d", req.Rating)
	}

	now := s.now()
	review := &models.Review{
		ID:         newID(),
		CustomerID: customerID,
		ProductID:  req.ProductID,
		Rating:     req.Rating,
		Content:    strings.TrimSpace(req.Content),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Products().GetByID(ctx, req.ProductID); err != nil {
			return notFound(err, "product %s not found", req.ProductID)
		}

		eligible, err := tx.Orders().HasCompletedPurchase(ctx, customerID, req.ProductID)
		if err != nil {
			return err
		}
		if !eligible {
			return apperrors.New(apperrors.NotEligible, "only customers with a completed order for this product can review it")
		}

		exists, err := tx.Reviews().Exists(ctx, customerID, req.ProductID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.New(apperrors.DuplicateReview, "product has already been reviewed by this customer")
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperrors.New(apperrors.DuplicateReview, "product has already been reviewed by this customer")
			}
			return err
		}
		return s.refreshRating(ctx, tx, req.ProductID)
	})
	if err != nil {
		return nil, fail(s.logger, "create review", err)
	}
	return review, nil
}

// DeleteReview 作者或管理员可以删除
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID string, actor Actor) error {
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		review, err := tx.Reviews().GetByID(ctx, reviewID)
		if err != nil {
			return notFound(err, "review %s not found", reviewID)
		}
		if !actor.Admin && review.CustomerID != actor.ID {
			return apperrors.New(apperrors.Forbidden, "review was written by another customer")
		}
		if err := tx.Reviews().Delete(ctx, reviewID); err != nil {
			return err
		}
		return s.refreshRating(ctx, tx, review.ProductID)
	})
	return fail(s.logger, "delete review", err)
}

func (s *ReviewService) ListProductReviews(ctx context.Context, productID string) ([]models.Review, error) {
	reviews, err := s.store.Reviews().ListByProduct(ctx, productID)
	if err != nil {
		return nil, fail(s.logger, "list reviews", err)
	}
	for i := range reviews {
		comments, err := s.store.Reviews().ListComments(ctx, reviews[i].ID)
		if err != nil {
			return nil, fail(s.logger, "list reviews", err)
		}
		reviews[i].Comments = comments
	}
	return reviews, nil
}

func (s *ReviewService) AddComment(ctx context.Context, reviewID, customerID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.New(apperrors.ValidationError, "comment content is required")
	}
	comment := &models.Comment{
		ID:         newID(),
		ReviewID:   reviewID,
		CustomerID: customerID,
		Content:    content,
		CreatedAt:  s.now(),
	}
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Reviews().GetByID(ctx, reviewID); err != nil {
			return notFound(err, "review %s not found", reviewID)
		}
		return tx.Reviews().CreateComment(ctx, comment)
	})
	if err != nil {
		return nil, fail(s.logger, "add comment", err)
	}
	return comment, nil
}

// refreshRating 每次都从全部评分重新计算, 不做增量平均
func (s *ReviewService) refreshRating(ctx context.Context, tx repositories.Store, productID string) error {
	sum, count, err := tx.Reviews().RatingStats(ctx, productID)
	if err != nil {
		return err
	}
	return tx.Products().UpdateRating(ctx, productID, RoundedMean(sum, count))
}

// RoundedMean 四舍五入的整数平均值, 没有评分时为 0
func RoundedMean(sum, count int64) int {
	if count <= 0 {
		return 0
	}
	return int((2*sum + count) / (2 * count))
}
