package services

import (
	"gorm.io/gorm"

	"repbbs/models"
)

// The reputation ledger is the single mutation point for users.reputation.
// Both the vote toggle and the decay sweep go through it, so auditing or
// event logging later has one interception point.

// AdjustReputation adds delta (positive or negative) to the user's stored
// reputation inside the caller's transaction. The update is expressed in SQL
// so concurrent adjustments never lose increments. A missing user affects
// zero rows and is not an error: vote toggles on orphaned content skip the
// ledger step by contract.
func AdjustReputation(tx *gorm.DB, userID uint, delta int) error {
	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", delta)).Error
}

// ApplyReputationDecay subtracts penalty from the user's reputation with a
// floor of zero: a user below the penalty lands on exactly 0 instead of
// going negative, and a user already at or below 0 is left untouched.
// Vote retractions deliberately do not share this floor.
func ApplyReputationDecay(tx *gorm.DB, userID uint, penalty int) error {
	return tx.Model(&models.User{}).
		Where("id = ? AND reputation > 0", userID).
		UpdateColumn("reputation", gorm.Expr(
			"CASE WHEN reputation < ? THEN 0 ELSE reputation - ? END", penalty, penalty,
		)).Error
}
