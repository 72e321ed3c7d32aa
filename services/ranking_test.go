package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repbbs/models"
)

// rankBase is a fixed mid-day anchor so minute offsets never cross a
// calendar date boundary.
var rankBase = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func titlesOf(items []PostItem) []string {
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	return titles
}

func TestListPosts_PinnedFirstPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)
	author := makeUser(t, db, "paginator", 0, models.RoleMember)

	// Ten regular posts, newest first by creation time, plus two pinned.
	for i := 0; i < 10; i++ {
		makePost(t, db, author.ID, fmt.Sprintf("regular-%d", i), rankBase.Add(-time.Duration(i)*time.Minute))
	}
	for i := 0; i < 2; i++ {
		p := makePost(t, db, author.ID, fmt.Sprintf("pinned-%d", i), rankBase.Add(-time.Duration(i)*time.Second))
		require.NoError(t, db.Model(&models.Post{}).Where("id = ?", p.ID).Update("is_pinned", true).Error)
	}

	page1, total, err := svc.ListPosts(ListParams{Offset: 0, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, page1, 5)

	// Both pinned posts lead, newest pinned first, then the top three regulars.
	assert.Equal(t, []string{"pinned-0", "pinned-1", "regular-0", "regular-1", "regular-2"}, titlesOf(page1))

	page2, _, err := svc.ListPosts(ListParams{Offset: 5, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"regular-3", "regular-4", "regular-5", "regular-6", "regular-7"}, titlesOf(page2))

	page3, _, err := svc.ListPosts(ListParams{Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"regular-8", "regular-9"}, titlesOf(page3))

	// No repeats across the three pages.
	seen := map[string]bool{}
	for _, it := range append(append(page1, page2...), page3...) {
		assert.False(t, seen[it.Title], "post %s repeated", it.Title)
		seen[it.Title] = true
	}
	assert.Len(t, seen, 12)
}

func TestListPosts_PinnedOverflowStaysOnPageOne(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)
	author := makeUser(t, db, "pinner", 0, models.RoleMember)

	for i := 0; i < 4; i++ {
		p := makePost(t, db, author.ID, fmt.Sprintf("pinned-%d", i), rankBase.Add(-time.Duration(i)*time.Minute))
		require.NoError(t, db.Model(&models.Post{}).Where("id = ?", p.ID).Update("is_pinned", true).Error)
	}
	makePost(t, db, author.ID, "regular", rankBase)

	// All pinned posts show even though they exceed the limit.
	page1, _, err := svc.ListPosts(ListParams{Offset: 0, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"pinned-0", "pinned-1", "pinned-2", "pinned-3"}, titlesOf(page1))

	page2, _, err := svc.ListPosts(ListParams{Offset: 3, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"regular"}, titlesOf(page2))
}

func TestListPosts_DateBucketBeatsTimeOfDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)

	strong := makeUser(t, db, "strong", 500, models.RoleMember)
	weak := makeUser(t, db, "weak", 0, models.RoleMember)

	// The high-reputation author posted late yesterday; the newcomer posted
	// just after midnight today. Today's calendar bucket wins outright.
	yesterday := time.Date(2026, 5, 9, 23, 59, 0, 0, time.UTC)
	today := time.Date(2026, 5, 10, 0, 1, 0, 0, time.UTC)
	makePost(t, db, strong.ID, "yesterday-late", yesterday)
	makePost(t, db, weak.ID, "today-early", today)

	items, _, err := svc.ListPosts(ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"today-early", "yesterday-late"}, titlesOf(items))
}

func TestListPosts_AdminBeatsReputationSameDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)

	admin := makeUser(t, db, "mod", 0, models.RoleAdmin)
	famous := makeUser(t, db, "famous", 500, models.RoleMember)

	makePost(t, db, famous.ID, "famous-post", rankBase.Add(time.Hour))
	makePost(t, db, admin.ID, "admin-post", rankBase)

	items, _, err := svc.ListPosts(ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-post", "famous-post"}, titlesOf(items))
}

func TestListPosts_ReputationThenRecencyTiebreaks(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)

	high := makeUser(t, db, "high", 80, models.RoleMember)
	low := makeUser(t, db, "low", 5, models.RoleMember)

	makePost(t, db, low.ID, "low-newer", rankBase.Add(time.Hour))
	makePost(t, db, high.ID, "high-older", rankBase)
	makePost(t, db, high.ID, "high-newer", rankBase.Add(30*time.Minute))

	items, _, err := svc.ListPosts(ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"high-newer", "high-older", "low-newer"}, titlesOf(items))
}

func TestListPosts_SearchFilter(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)
	author := makeUser(t, db, "searcher", 0, models.RoleMember)

	makePost(t, db, author.ID, "Gopher habits", rankBase)
	makePost(t, db, author.ID, "unrelated", rankBase.Add(time.Minute))
	cp := models.Post{UserID: author.ID, Title: "other", Content: "wild GOPHERS roam", CreatedAt: rankBase, UpdatedAt: rankBase}
	require.NoError(t, db.Create(&cp).Error)

	items, total, err := svc.ListPosts(ListParams{Limit: 10, Search: "gopher"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NotEqual(t, "unrelated", it.Title)
	}
}

func TestListPosts_ViewerVoteAnnotations(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)
	votes := NewVoteService(db)

	author := makeUser(t, db, "annotated", 120, models.RoleMember)
	viewer := makeUser(t, db, "viewer", 0, models.RoleMember)
	liked := makePost(t, db, author.ID, "liked", rankBase)
	makePost(t, db, author.ID, "ignored", rankBase.Add(time.Minute))

	_, err := votes.Toggle(viewer.ID, TargetPost, liked.ID)
	require.NoError(t, err)

	items, _, err := svc.ListPosts(ListParams{Limit: 10, ViewerID: viewer.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		if it.Title == "liked" {
			assert.True(t, it.ViewerVoted)
			assert.Equal(t, int64(1), it.VoteCount)
		} else {
			assert.False(t, it.ViewerVoted)
			assert.Zero(t, it.VoteCount)
		}
		require.NotNil(t, it.AuthorBadge)
		assert.Equal(t, "gold", it.AuthorBadge.Name)
	}

	// Anonymous viewers never see voted flags.
	items, _, err = svc.ListPosts(ListParams{Limit: 10})
	require.NoError(t, err)
	for _, it := range items {
		assert.False(t, it.ViewerVoted)
	}
}

func TestListComments_Ordering(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)
	votes := NewVoteService(db)

	author := makeUser(t, db, "op", 0, models.RoleMember)
	post := makePost(t, db, author.ID, "thread", rankBase)

	plain := makeComment(t, db, post.ID, author.ID, "plain", rankBase.Add(time.Minute))
	popular := makeComment(t, db, post.ID, author.ID, "popular", rankBase.Add(2*time.Minute))
	pinned := makeComment(t, db, post.ID, author.ID, "pinned", rankBase.Add(3*time.Minute))
	newest := makeComment(t, db, post.ID, author.ID, "newest", rankBase.Add(4*time.Minute))

	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", pinned.ID).Update("is_pinned", true).Error)
	for i := 0; i < 2; i++ {
		voter := makeUser(t, db, fmt.Sprintf("cfan%d", i), 0, models.RoleMember)
		_, err := votes.Toggle(voter.ID, TargetComment, popular.ID)
		require.NoError(t, err)
	}

	items, err := svc.ListComments(post.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 4)

	// Pinned first, then by vote count, then newest.
	assert.Equal(t, pinned.ID, items[0].ID)
	assert.Equal(t, popular.ID, items[1].ID)
	assert.Equal(t, newest.ID, items[2].ID)
	assert.Equal(t, plain.ID, items[3].ID)
}

func TestListComments_BadgeComesFromPostAuthor(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)

	op := makeUser(t, db, "famous-op", 150, models.RoleMember)
	nobody := makeUser(t, db, "nobody", 0, models.RoleMember)
	post := makePost(t, db, op.ID, "thread", rankBase)
	makeComment(t, db, post.ID, nobody.ID, "hi", rankBase.Add(time.Minute))

	items, err := svc.ListComments(post.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// The zero-reputation commenter still shows the post author's gold badge.
	require.NotNil(t, items[0].Badge)
	assert.Equal(t, "gold", items[0].Badge.Name)
}

func TestListComments_DeletedContentMasked(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)

	op := makeUser(t, db, "masker", 0, models.RoleMember)
	post := makePost(t, db, op.ID, "thread", rankBase)
	gone := makeComment(t, db, post.ID, op.ID, "secret", rankBase.Add(time.Minute))
	makeComment(t, db, post.ID, op.ID, "visible", rankBase.Add(2*time.Minute))

	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", gone.ID).Update("is_deleted", true).Error)

	items, err := svc.ListComments(post.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		if it.ID == gone.ID {
			assert.True(t, it.IsDeleted)
			assert.Empty(t, it.Content)
		} else {
			assert.Equal(t, "visible", it.Content)
		}
	}
}

func TestListComments_MissingPost(t *testing.T) {
	db := newTestDB(t)
	svc := NewRankingService(db)

	_, err := svc.ListComments(404, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
