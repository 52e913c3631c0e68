package storage

import "errors"

var (
	// ErrStoreClosed is returned by CardStore operations after Close.
	ErrStoreClosed = errors.New("card store is closed")

	// ErrRecordTooLarge is returned when a card's skills exceed MaxSkillsBytes.
	ErrRecordTooLarge = errors.New("card record too large")

	// ErrMalformedSkills marks a persisted skills column that could not be decoded.
	ErrMalformedSkills = errors.New("malformed skills column")

	// ErrInvalidKey is returned for cards without a lemma.
	ErrInvalidKey = errors.New("card key requires a lemma")
)
