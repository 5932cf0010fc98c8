package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// PlaylistCriteria is the caller's description of the playlist to generate. It is never modified by the pipeline.
type PlaylistCriteria struct {
	Genres      []string `json:"genres,omitempty" toml:"genres" validate:"max=10,dive,required,max=50"`
	SubGenres   []string `json:"subGenres,omitempty" toml:"sub_genres" validate:"max=10,dive,required,max=50"`
	Moods       []string `json:"moods,omitempty" toml:"moods" validate:"max=10,dive,required,max=50"`
	Eras        []string `json:"eras,omitempty" toml:"eras" validate:"max=10,dive,required,max=50"`
	Regions     []string `json:"regions,omitempty" toml:"regions" validate:"max=10,dive,required,max=50"`
	Languages   []string `json:"languages,omitempty" toml:"languages" validate:"max=10,dive,required,max=50"`
	Prompt      string   `json:"prompt,omitempty" toml:"prompt" validate:"max=500"`
	TrackCount  int      `json:"trackCount" toml:"track_count" validate:"min=10,max=50"`
	IsPublic    bool     `json:"isPublic" toml:"is_public"`
	Uniqueness  int      `json:"uniqueness" toml:"uniqueness" validate:"min=1,max=5"`
	Name        string   `json:"name" toml:"name" validate:"required,max=100"`
	Description string   `json:"description,omitempty" toml:"description" validate:"max=300"`
	CoverImage  string   `json:"coverImage,omitempty" toml:"-" validate:"-"`
}

// Validate checks field bounds and returns an error wrapping [shared.ErrInvalidInput] naming each failed field.
//
// CoverImage is not checked here. A bad or oversized cover only costs the custom image, so it is rejected
// when the cover is uploaded.
func (c PlaylistCriteria) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(msgs, "; "))
}

// HasCover reports whether a cover image was supplied.
func (c PlaylistCriteria) HasCover() bool {
	return strings.TrimSpace(c.CoverImage) != ""
}

// Snapshot returns a copy suitable for storing with a [PlaylistRecord]. The cover payload is dropped.
func (c PlaylistCriteria) Snapshot() PlaylistCriteria {
	s := c
	s.Genres = clone(c.Genres)
	s.SubGenres = clone(c.SubGenres)
	s.Moods = clone(c.Moods)
	s.Eras = clone(c.Eras)
	s.Regions = clone(c.Regions)
	s.Languages = clone(c.Languages)
	s.CoverImage = ""
	return s
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
