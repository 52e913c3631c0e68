package domain

import "errors"

var (
	// ErrInvalidRating is returned when a rating is outside Again..Easy.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrInvalidQuestionType is returned for an unknown question or skill type.
	ErrInvalidQuestionType = errors.New("invalid question type")
)
