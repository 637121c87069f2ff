package core

import (
	"errors"
	"strings"

	"attendance.client/internal/core/model"
)

// MaxOutPhotos caps the number of photos attached to one OUT event.
const MaxOutPhotos = 3

// minNoteWords is the minimum whitespace-separated token count for the note.
const minNoteWords = 2

var (
	ErrNoteTooShort  = errors.New("work note needs at least 2 words")
	ErrPhotoRequired = errors.New("at least 1 photo is required for OUT")
	ErrPhotoEmpty    = errors.New("photo capture produced no encoded bytes")
)

// Evidence is an OUT event in progress: the work note and the captured
// photos. Client-only; discarded after successful submission or cancel.
type Evidence struct {
	Note   string
	Photos []model.Photo
}

// AddPhoto appends a captured photo. A capture without encoded bytes is a
// hard failure and never counts toward the minimum. Attempts beyond the cap
// are silently ignored.
func (e *Evidence) AddPhoto(p model.Photo) error {
	if !p.Present() {
		return ErrPhotoEmpty
	}
	if len(e.Photos) >= MaxOutPhotos {
		return nil
	}
	e.Photos = append(e.Photos, p)
	return nil
}

// Reset discards the pending note and photos.
func (e *Evidence) Reset() {
	e.Note = ""
	e.Photos = nil
}

// Validate enforces the minimum evidence before an OUT event may leave the
// device: note word count and photo count. Failures must abort the backend
// call entirely.
func (e *Evidence) Validate() error {
	if len(strings.Fields(e.Note)) < minNoteWords {
		return ErrNoteTooShort
	}
	if len(e.Photos) < 1 {
		return ErrPhotoRequired
	}
	return nil
}
