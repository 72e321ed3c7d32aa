package services

import (
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"repbbs/models"
)

// ListParams describes a post listing request. ViewerID is zero for
// unauthenticated callers, in which case viewer_voted annotations stay false.
type ListParams struct {
	Offset   int
	Limit    int
	Search   string
	ViewerID uint
}

// PostItem is a post plus its listing annotations.
type PostItem struct {
	models.Post
	VoteCount   int64  `json:"vote_count"`
	ViewerVoted bool   `json:"viewer_voted"`
	AuthorBadge *Badge `json:"author_badge,omitempty"`
}

// CommentItem is a comment plus its listing annotations. The badge reflects
// the post author's reputation, not the commenter's.
type CommentItem struct {
	models.Comment
	VoteCount   int64  `json:"vote_count"`
	ViewerVoted bool   `json:"viewer_voted"`
	Badge       *Badge `json:"badge,omitempty"`
}

// RankingService produces the deterministic ordering used by all listing
// endpoints. It reads vote counts and user metadata but mutates nothing.
type RankingService struct {
	db *gorm.DB
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{db: db}
}

// nonPinnedOrder is the composite sort for regular posts, most significant
// first: calendar date of creation (all of today's posts outrank all of
// yesterday's), admin authors, author reputation, then the exact timestamp.
const nonPinnedOrder = "DATE(posts.created_at) DESC, " +
	"CASE WHEN users.role = 'admin' THEN 1 ELSE 0 END DESC, " +
	"users.reputation DESC, " +
	"posts.created_at DESC"

// ListPosts returns one page of posts under the ranking policy, plus the
// total number of posts matching the search filter.
//
// Pinned posts are listed first and only appear on the first page (offset 0);
// deeper pages continue through the non-pinned sequence without repeating
// them. All pinned posts are included on page one even when they exceed the
// limit, since pinning overrides pagination by contract.
func (s *RankingService) ListPosts(p ListParams) ([]PostItem, int64, error) {
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	var total int64
	if err := s.postQuery(p.Search).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var pinnedTotal int64
	if err := s.postQuery(p.Search).Where("posts.is_pinned = ?", true).Count(&pinnedTotal).Error; err != nil {
		return nil, 0, err
	}

	var pinned []models.Post
	nonPinnedOffset := p.Offset
	nonPinnedLimit := p.Limit

	if p.Offset == 0 {
		if err := s.postQuery(p.Search).
			Where("posts.is_pinned = ?", true).
			Order("posts.created_at DESC").
			Preload("User").
			Find(&pinned).Error; err != nil {
			return nil, 0, err
		}
		nonPinnedLimit = p.Limit - len(pinned)
		if nonPinnedLimit < 0 {
			nonPinnedLimit = 0
		}
	} else {
		// Page one consumed limit-pinned non-pinned slots; shift the offset
		// so deep pages continue the non-pinned sequence without gaps.
		nonPinnedOffset = p.Offset - int(pinnedTotal)
		if nonPinnedOffset < 0 {
			nonPinnedOffset = 0
		}
	}

	var regular []models.Post
	if nonPinnedLimit > 0 {
		if err := s.postQuery(p.Search).
			Where("posts.is_pinned = ?", false).
			Order(nonPinnedOrder).
			Offset(nonPinnedOffset).
			Limit(nonPinnedLimit).
			Preload("User").
			Find(&regular).Error; err != nil {
			return nil, 0, err
		}
	}

	items, err := s.annotatePosts(append(pinned, regular...), p.ViewerID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// postQuery builds a fresh base query joining authors and applying the
// optional case-insensitive substring search over title or content.
func (s *RankingService) postQuery(search string) *gorm.DB {
	q := s.db.Model(&models.Post{}).
		Joins("JOIN users ON users.id = posts.user_id")
	if search = strings.TrimSpace(search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ?", term, term)
	}
	return q
}

func (s *RankingService) annotatePosts(posts []models.Post, viewerID uint) ([]PostItem, error) {
	items := make([]PostItem, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	counts, err := s.voteCounts("post_id", ids)
	if err != nil {
		return nil, err
	}
	voted, err := s.viewerVotes("post_id", ids, viewerID)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		items = append(items, PostItem{
			Post:        p,
			VoteCount:   counts[p.ID],
			ViewerVoted: voted[p.ID],
			AuthorBadge: BadgeFor(p.User.Reputation),
		})
	}
	return items, nil
}

// ListComments returns a post's comments ordered by pinned flag, vote count,
// then recency. Soft-deleted comments keep their slot with the body masked.
// Every comment carries a badge computed from the post author's reputation.
func (s *RankingService) ListComments(postID, viewerID uint) ([]CommentItem, error) {
	var post models.Post
	if err := s.db.Preload("User").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	postBadge := BadgeFor(post.User.Reputation)

	var comments []models.Comment
	if err := s.db.Where("post_id = ?", postID).Preload("User").Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return []CommentItem{}, nil
	}

	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	counts, err := s.voteCounts("comment_id", ids)
	if err != nil {
		return nil, err
	}
	voted, err := s.viewerVotes("comment_id", ids, viewerID)
	if err != nil {
		return nil, err
	}

	items := make([]CommentItem, 0, len(comments))
	for _, c := range comments {
		if c.IsDeleted {
			c.Content = ""
		}
		items = append(items, CommentItem{
			Comment:     c,
			VoteCount:   counts[c.ID],
			ViewerVoted: voted[c.ID],
			Badge:       postBadge,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return items, nil
}

// voteCounts returns target id -> vote count for the given target column.
func (s *RankingService) voteCounts(column string, ids []uint) (map[uint]int64, error) {
	type row struct {
		TargetID uint
		N        int64
	}
	var rows []row
	err := s.db.Model(&models.Vote{}).
		Select(column+" AS target_id, COUNT(*) AS n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.TargetID] = r.N
	}
	return counts, nil
}

// viewerVotes returns the subset of ids the viewer has an active vote on.
func (s *RankingService) viewerVotes(column string, ids []uint, viewerID uint) (map[uint]bool, error) {
	voted := make(map[uint]bool)
	if viewerID == 0 {
		return voted, nil
	}
	var targetIDs []uint
	err := s.db.Model(&models.Vote{}).
		Where("user_id = ?", viewerID).
		Where(column+" IN ?", ids).
		Pluck(column, &targetIDs).Error
	if err != nil {
		return nil, err
	}
	for _, id := range targetIDs {
		voted[id] = true
	}
	return voted, nil
}
