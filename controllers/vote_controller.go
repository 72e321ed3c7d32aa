package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"repbbs/models"
	"repbbs/services"
	"repbbs/utils"
)

// VoteController exposes the vote toggle for posts and comments.
type VoteController struct {
	db    *gorm.DB
	votes *services.VoteService
}

// NewVoteController creates a VoteController.
func NewVoteController(db *gorm.DB, votes *services.VoteService) *VoteController {
	return &VoteController{db: db, votes: votes}
}

// TogglePostVote casts or retracts the caller's vote on a post.
func (v *VoteController) TogglePostVote(ctx *gin.Context) {
	v.toggle(ctx, services.TargetPost)
}

// ToggleCommentVote casts or retracts the caller's vote on a comment.
func (v *VoteController) ToggleCommentVote(ctx *gin.Context) {
	v.toggle(ctx, services.TargetComment)
}

func (v *VoteController) toggle(ctx *gin.Context, kind services.TargetKind) {
	targetID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res, err := v.votes.Toggle(user.ID, kind, targetID)
	if err != nil {
		respondServiceError(ctx, err, 50030, "failed to toggle vote")
		return
	}

	if kind == services.TargetPost {
		invalidatePostCaches(targetID)
	} else {
		// A comment vote changes its ordering inside the post detail page.
		var comment models.Comment
		if err := v.db.Select("post_id").First(&comment, targetID).Error; err == nil {
			invalidatePostCaches(comment.PostID)
		}
	}

	utils.Success(ctx, res)
}
