package controllers

import (
	"context"
	"net/http"

	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/services"

	"github.com/gin-gonic/gin"
)

type ReviewService interface {
	CreateReview(ctx context.Context, customerID string, req models.CreateReviewRequest) (*models.Review, error)
	DeleteReview(ctx context.Context, reviewID string, actor services.Actor) error
	ListProductReviews(ctx context.Context, productID string) ([]models.Review, error)
	AddComment(ctx context.Context, reviewID, customerID, content string) (*models.Comment, error)
}

type ReviewController struct {
	reviews ReviewService
}

func NewReviewController(reviews ReviewService) *ReviewController {
	return &ReviewController{reviews: reviews}
}

func (rc *ReviewController) CreateReview(c *gin.Context) {
	defer middlewares.RecordOperation(c, "create_review")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := rc.reviews.CreateReview(c.Request.Context(), actor.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "review created", review)
}

func (rc *ReviewController) DeleteReview(c *gin.Context) {
	defer middlewares.RecordOperation(c, "delete_review")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := rc.reviews.DeleteReview(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "review deleted", nil)
}

// ListProductReviews 公开接口
func (rc *ReviewController) ListProductReviews(c *gin.Context) {
	reviews, err := rc.reviews.ListProductReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	respond(c, http.StatusOK, "reviews retrieved", reviews)
}

func (rc *ReviewController) AddComment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	comment, err := rc.reviews.AddComment(c.Request.Context(), c.Param("id"), actor.ID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "comment added", comment)
}
