package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"repbbs/models"
)

var testDBSeq atomic.Int64

// newTestDB opens a fresh in-memory sqlite database with the full schema.
// Each call gets a unique name so parallel tests never share state.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.Vote{}))
	return db
}

func makeUser(t *testing.T, db *gorm.DB, username string, reputation int, role string) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		PasswordHash: "x",
		Reputation:   reputation,
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func makePost(t *testing.T, db *gorm.DB, userID uint, title string, createdAt time.Time) models.Post {
	t.Helper()
	post := models.Post{
		UserID:    userID,
		Title:     title,
		Content:   "content of " + title,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func makeComment(t *testing.T, db *gorm.DB, postID, userID uint, content string, createdAt time.Time) models.Comment {
	t.Helper()
	comment := models.Comment{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, db.Create(&comment).Error)
	return comment
}

func reputationOf(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.Reputation
}
