package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"repbbs/middleware"
	"repbbs/models"
	"repbbs/services"
	"repbbs/utils"
)

const (
	postListCachePrefix   = "cache:posts:list:"
	postDetailCachePrefix = "cache:post:detail:"
	postCacheTTL          = 2 * time.Minute
)

// PostController handles post CRUD, listing, and pinning.
type PostController struct {
	db      *gorm.DB
	ranking *services.RankingService
}

// NewPostController creates a PostController.
func NewPostController(db *gorm.DB, ranking *services.RankingService) *PostController {
	return &PostController{db: db, ranking: ranking}
}

// CreatePost creates a post authored by the current user.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required,min=1,max=200"`
		Content string `json:"content" binding:"required,min=1"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{
		UserID:  user.ID,
		Title:   utils.Sanitize(strings.TrimSpace(req.Title)),
		Content: utils.Sanitize(req.Content),
	}
	if post.Title == "" || strings.TrimSpace(post.Content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40011, "title and content must not be empty")
		return
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to create post")
		return
	}
	post.User = *user

	invalidatePostCaches(post.ID)
	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns one page of posts in ranked order. Pinned posts lead the
// first page; the rest sort by calendar day, author role, author reputation,
// then creation time. Supports offset/limit paging and a search filter.
func (p *PostController) ListPosts(ctx *gin.Context) {
	offset, limit := parsePagination(ctx)
	search := strings.TrimSpace(ctx.Query("search"))
	viewerID := viewerIDOf(ctx)

	cacheable := viewerID == 0 && search == ""
	cacheKey := fmt.Sprintf("%so=%d:l=%d", postListCachePrefix, offset, limit)
	if cacheable {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	items, total, err := p.ranking.ListPosts(services.ListParams{
		Offset:   offset,
		Limit:    limit,
		Search:   search,
		ViewerID: viewerID,
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to list posts")
		return
	}

	payload := gin.H{
		"posts":  items,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	}
	if cacheable {
		utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, postCacheTTL)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its ranked comments.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	viewerID := viewerIDOf(ctx)

	cacheable := viewerID == 0
	cacheKey := fmt.Sprintf("%s%d", postDetailCachePrefix, postID)
	if cacheable {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var post models.Post
	if err := p.db.Preload("User").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40411, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to get post")
		return
	}

	comments, err := p.ranking.ListComments(postID, viewerID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to list comments")
		return
	}

	voteSvc := services.NewVoteService(p.db)
	count, err := voteSvc.Count(services.TargetPost, postID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to count votes")
		return
	}
	viewerVoted := false
	if viewerID != 0 {
		viewerVoted, _ = voteSvc.HasVoted(viewerID, services.TargetPost, postID)
	}

	payload := gin.H{
		"post": services.PostItem{
			Post:        post,
			VoteCount:   count,
			ViewerVoted: viewerVoted,
			AuthorBadge: services.BadgeFor(post.User.Reputation),
		},
		"comments": comments,
	}
	if cacheable {
		utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, postCacheTTL)
	}
	utils.Success(ctx, payload)
}

// UpdatePost lets the author edit title and content. Pins and votes are not
// touched here.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Title   string `json:"title" binding:"required,min=1,max=200"`
		Content string `json:"content" binding:"required,min=1"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid request payload")
		return
	}

	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40411, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to get post")
		return
	}
	if post.UserID != user.ID {
		utils.Error(ctx, http.StatusForbidden, 40310, "only the author can edit this post")
		return
	}

	post.Title = utils.Sanitize(strings.TrimSpace(req.Title))
	post.Content = utils.Sanitize(req.Content)
	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to update post")
		return
	}

	invalidatePostCaches(post.ID)
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a post permanently along with its comments and all
// votes pointing at either. Reputation previously earned from those votes is
// not paid back. Authors can delete their own posts; admins can delete any.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrNotFound
			}
			return err
		}
		if post.UserID != user.ID && !user.IsAdmin() {
			return services.ErrForbidden
		}

		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", postID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.Vote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, postID).Error
	})
	if err != nil {
		respondServiceError(ctx, err, 50017, "failed to delete post")
		return
	}

	invalidatePostCaches(postID)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// PinPost marks a post pinned. Admin only.
func (p *PostController) PinPost(ctx *gin.Context) {
	p.setPinned(ctx, true)
}

// UnpinPost clears the pinned flag. Admin only.
func (p *PostController) UnpinPost(ctx *gin.Context) {
	p.setPinned(ctx, false)
}

func (p *PostController) setPinned(ctx *gin.Context, pinned bool) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if !user.IsAdmin() {
		utils.Error(ctx, http.StatusForbidden, 40311, "admin role required")
		return
	}

	res := p.db.Model(&models.Post{}).Where("id = ?", postID).Update("is_pinned", pinned)
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50018, "failed to update pin state")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40411, "post not found")
		return
	}

	invalidatePostCaches(postID)
	utils.Success(ctx, gin.H{"id": postID, "is_pinned": pinned})
}

// currentUser fetches the authenticated user placed in context by middleware.
func currentUser(ctx *gin.Context) (*models.User, bool) {
	return middleware.CurrentUser(ctx)
}

// viewerIDOf returns the viewer's user ID, or zero for anonymous requests.
func viewerIDOf(ctx *gin.Context) uint {
	if user, ok := currentUser(ctx); ok {
		return user.ID
	}
	return 0
}

// parsePagination reads offset/limit query params with sane bounds.
func parsePagination(ctx *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}

// parseIDParam parses a numeric path parameter, responding 400 on garbage.
func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40013, "invalid id parameter")
		return 0, false
	}
	return uint(id), true
}

// respondServiceError maps service sentinel errors onto HTTP responses.
func respondServiceError(ctx *gin.Context, err error, fallbackCode int, fallbackMsg string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40412, "resource not found")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40312, "operation not allowed")
	case errors.Is(err, services.ErrInvalidState):
		utils.Error(ctx, http.StatusUnprocessableEntity, 42201, "invalid operation for current state")
	default:
		utils.Error(ctx, http.StatusInternalServerError, fallbackCode, fallbackMsg)
	}
}

// invalidatePostCaches drops cached listings and the post's cached detail.
func invalidatePostCaches(postID uint) {
	utils.InvalidateByPrefix(postListCachePrefix)
	utils.InvalidateByPrefix(fmt.Sprintf("%s%d", postDetailCachePrefix, postID))
}
