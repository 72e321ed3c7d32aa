package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"repbbs/models"
	"repbbs/services"
	"repbbs/utils"
)

// CommentController handles comment creation, editing, soft deletion, and pinning.
type CommentController struct {
	db *gorm.DB
}

// NewCommentController creates a CommentController.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{db: db}
}

// CreateComment adds a comment to a post, optionally replying to another
// comment on the same post. The parent check and the post's comment_count
// bump commit atomically with the insert.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content  string `json:"content" binding:"required,min=1"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content must not be empty")
		return
	}

	var comment models.Comment
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrNotFound
			}
			return err
		}

		if req.ParentID != nil {
			var parent models.Comment
			if err := tx.First(&parent, *req.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return services.ErrInvalidState
				}
				return err
			}
			// A reply must stay inside its post's thread; deleted comments
			// cannot grow new children.
			if parent.PostID != postID || parent.IsDeleted {
				return services.ErrInvalidState
			}
		}

		comment = models.Comment{
			PostID:   postID,
			UserID:   user.ID,
			ParentID: req.ParentID,
			Content:  content,
		}
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		respondServiceError(ctx, err, 50020, "failed to create comment")
		return
	}
	comment.User = *user

	invalidatePostCaches(postID)
	utils.Success(ctx, gin.H{"comment": comment})
}

// UpdateComment lets the author edit a live comment's content.
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	commentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required,min=1"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var comment models.Comment
	if err := c.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40413, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to get comment")
		return
	}
	if comment.IsDeleted {
		utils.Error(ctx, http.StatusNotFound, 40413, "comment not found")
		return
	}
	if comment.UserID != user.ID {
		utils.Error(ctx, http.StatusForbidden, 40313, "only the author can edit this comment")
		return
	}

	comment.Content = utils.Sanitize(req.Content)
	if strings.TrimSpace(comment.Content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content must not be empty")
		return
	}
	if err := c.db.Save(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to update comment")
		return
	}

	invalidatePostCaches(comment.PostID)
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment soft-deletes a comment so replies keep their anchor. The
// comment author, the post owner, and admins may delete. The post's
// comment_count drops with the deletion in the same transaction.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	commentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var postID uint
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comment, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrNotFound
			}
			return err
		}
		if comment.IsDeleted {
			return services.ErrNotFound
		}
		postID = comment.PostID

		var post models.Post
		if err := tx.First(&post, comment.PostID).Error; err != nil {
			return err
		}
		if comment.UserID != user.ID && post.UserID != user.ID && !user.IsAdmin() {
			return services.ErrForbidden
		}

		if err := tx.Model(&models.Comment{}).Where("id = ?", comment.ID).
			Update("is_deleted", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).
			Where("id = ? AND comment_count > 0", comment.PostID).
			Update("comment_count", gorm.Expr("comment_count - 1")).Error
	})
	if err != nil {
		respondServiceError(ctx, err, 50023, "failed to delete comment")
		return
	}

	invalidatePostCaches(postID)
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

// PinComment marks a comment pinned within its post. Post author only.
func (c *CommentController) PinComment(ctx *gin.Context) {
	c.setPinned(ctx, true)
}

// UnpinComment clears a comment's pinned flag. Post author only.
func (c *CommentController) UnpinComment(ctx *gin.Context) {
	c.setPinned(ctx, false)
}

func (c *CommentController) setPinned(ctx *gin.Context, pinned bool) {
	commentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var comment models.Comment
	if err := c.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40413, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to get comment")
		return
	}
	if comment.IsDeleted {
		utils.Error(ctx, http.StatusNotFound, 40413, "comment not found")
		return
	}

	var post models.Post
	if err := c.db.First(&post, comment.PostID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to get post")
		return
	}
	if post.UserID != user.ID {
		utils.Error(ctx, http.StatusForbidden, 40314, "only the post author can pin comments")
		return
	}

	if err := c.db.Model(&models.Comment{}).Where("id = ?", comment.ID).
		Update("is_pinned", pinned).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update pin state")
		return
	}

	invalidatePostCaches(comment.PostID)
	utils.Success(ctx, gin.H{"id": comment.ID, "is_pinned": pinned})
}
