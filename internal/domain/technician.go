package domain

import "time"

// TechnicianStatus represents whether a technician takes new work.
type TechnicianStatus string

const (
	TechnicianStatusActive   TechnicianStatus = "ACTIVE"
	TechnicianStatusInactive TechnicianStatus = "INACTIVE"
)

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Technician models a repair specialist assignable to tickets.
type Technician struct {
	ID              string
	ExternalID      string
	Name            string
	Specialization  string
	Rating          float64
	RatingCount     int
	ActiveOrders    int
	CompletedOrders int
	Status          TechnicianStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TechnicianProfile is the fallback metadata used when a technician is first seen.
type TechnicianProfile struct {
	ExternalID     string
	Name           string
	Specialization string
}

// RatingChange captures a technician's reputation before and after one score.
type RatingChange struct {
	TechnicianID string
	Score        int
	OldRating    float64
	OldCount     int
	NewRating    float64
	NewCount     int
}

// ValidScore reports whether score is an accepted rating value.
func ValidScore(score int) bool {
	return score >= MinRatingScore && score <= MaxRatingScore
}

// CumulativeMean folds one more score into a running mean of count values.
func CumulativeMean(mean float64, count int, score int) float64 {
	if count <= 0 {
		return float64(score)
	}
	return (mean*float64(count) + float64(score)) / float64(count+1)
}

// WithScore returns the change produced by applying score to t.
func (t Technician) WithScore(score int) RatingChange {
	return RatingChange{
		TechnicianID: t.ID,
		Score:        score,
		OldRating:    t.Rating,
		OldCount:     t.RatingCount,
		NewRating:    CumulativeMean(t.Rating, t.RatingCount, score),
		NewCount:     t.RatingCount + 1,
	}
}
