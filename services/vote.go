package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"repbbs/models"
)

// TargetKind selects which table a vote points at.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// ToggleResult describes the outcome of a vote toggle.
// Applied is true when a vote was cast, false when an existing vote was
// retracted. Delta is +1 or -1 accordingly. Count is the target's vote
// count after the toggle committed.
type ToggleResult struct {
	Applied bool  `json:"applied"`
	Delta   int   `json:"delta"`
	Count   int64 `json:"count"`
}

// VoteService implements the idempotent per-(voter, target) vote toggle.
type VoteService struct {
	db *gorm.DB
}

func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

// Toggle casts or retracts voterID's vote on the given target. The target
// lookup, the vote row write, and the author's reputation adjustment commit
// as one transaction; the target row is locked FOR UPDATE so two concurrent
// double-clicks cannot both insert, and the unique (user, target) index
// backstops the race on engines without row locks.
//
// Self-votes toggle the row but never move reputation in either direction.
// If the target's author row is gone the toggle still succeeds and only the
// ledger step is skipped.
func (s *VoteService) Toggle(voterID uint, kind TargetKind, targetID uint) (ToggleResult, error) {
	var res ToggleResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		authorID, err := lockTarget(tx, kind, targetID)
		if err != nil {
			return err
		}

		q := tx.Where("user_id = ?", voterID)
		switch kind {
		case TargetPost:
			q = q.Where("post_id = ?", targetID)
		case TargetComment:
			q = q.Where("comment_id = ?", targetID)
		}

		var existing models.Vote
		err = q.First(&existing).Error
		if err == nil {
			if err := tx.Delete(&models.Vote{}, existing.ID).Error; err != nil {
				return err
			}
			if authorID != voterID {
				if err := AdjustReputation(tx, authorID, -1); err != nil {
					return err
				}
			}
			res.Applied = false
			res.Delta = -1
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		vote := models.Vote{UserID: voterID}
		if kind == TargetPost {
			vote.PostID = &targetID
		} else {
			vote.CommentID = &targetID
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		if authorID != voterID {
			if err := AdjustReputation(tx, authorID, 1); err != nil {
				return err
			}
		}
		res.Applied = true
		res.Delta = 1
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}

	count, err := s.Count(kind, targetID)
	if err != nil {
		return ToggleResult{}, err
	}
	res.Count = count
	return res, nil
}

// Count returns the number of vote rows referencing the target. The vote
// table is the sole source of truth for displayed counts.
func (s *VoteService) Count(kind TargetKind, targetID uint) (int64, error) {
	var count int64
	q := s.db.Model(&models.Vote{})
	if kind == TargetPost {
		q = q.Where("post_id = ?", targetID)
	} else {
		q = q.Where("comment_id = ?", targetID)
	}
	err := q.Count(&count).Error
	return count, err
}

// HasVoted reports whether the user currently has an active vote on the target.
func (s *VoteService) HasVoted(userID uint, kind TargetKind, targetID uint) (bool, error) {
	var count int64
	q := s.db.Model(&models.Vote{}).Where("user_id = ?", userID)
	if kind == TargetPost {
		q = q.Where("post_id = ?", targetID)
	} else {
		q = q.Where("comment_id = ?", targetID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// lockTarget loads the target row FOR UPDATE and returns its author ID.
// Soft-deleted comments are treated as missing.
func lockTarget(tx *gorm.DB, kind TargetKind, targetID uint) (uint, error) {
	switch kind {
	case TargetPost:
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrNotFound
			}
			return 0, err
		}
		return post.UserID, nil
	case TargetComment:
		var cmt models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cmt, targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrNotFound
			}
			return 0, err
		}
		if cmt.IsDeleted {
			return 0, ErrNotFound
		}
		return cmt.UserID, nil
	default:
		return 0, ErrInvalidState
	}
}
