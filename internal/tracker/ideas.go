package tracker

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/store"
)

const (
	maxTags   = 10
	maxTagLen = 32
)

// IdeaInput holds the editable fields of an idea.
type IdeaInput struct {
	Title       string
	Description string
	Tags        []string
	PillarID    *int64
}

func (in IdeaInput) normalize() (IdeaInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := checkText("title", in.Title, maxNameLen, true); err != nil {
		return in, err
	}
	if err := checkText("description", in.Description, maxDescriptionLen, false); err != nil {
		return in, err
	}
	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || slices.Contains(tags, tag) {
			continue
		}
		if n := len([]rune(tag)); n > maxTagLen {
			return in, invalid("tags", "tag %q is %d characters, max %d", tag, n, maxTagLen)
		}
		tags = append(tags, tag)
	}
	if len(tags) > maxTags {
		return in, invalid("tags", "%d tags, max %d", len(tags), maxTags)
	}
	if len(tags) == 0 {
		tags = nil
	}
	in.Tags = tags
	return in, nil
}

// AddIdea records a new idea.
func (t *Tracker) AddIdea(in IdeaInput) (store.Idea, error) {
	in, err := in.normalize()
	if err != nil {
		return store.Idea{}, err
	}
	var out store.Idea
	err = t.mutate(func(ds *store.Dataset, now time.Time) error {
		if err := checkIdeaPillar(ds, in.PillarID); err != nil {
			return err
		}
		out = store.Idea{
			ID:          t.newID(),
			Title:       in.Title,
			Description: in.Description,
			Tags:        in.Tags,
			PillarID:    in.PillarID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		ds.Ideas = append(ds.Ideas, out)
		out = out.Clone()
		return nil
	})
	return out, err
}

// UpdateIdea replaces the editable fields of an idea.
func (t *Tracker) UpdateIdea(id string, in IdeaInput) (store.Idea, error) {
	in, err := in.normalize()
	if err != nil {
		return store.Idea{}, err
	}
	var out store.Idea
	err = t.mutate(func(ds *store.Dataset, now time.Time) error {
		i := ideaIndex(ds, id)
		if i < 0 {
			return fmt.Errorf("idea %s: %w", id, ErrNotFound)
		}
		if err := checkIdeaPillar(ds, in.PillarID); err != nil {
			return err
		}
		idea := &ds.Ideas[i]
		idea.Title = in.Title
		idea.Description = in.Description
		idea.Tags = in.Tags
		idea.PillarID = in.PillarID
		idea.UpdatedAt = now
		out = idea.Clone()
		return nil
	})
	return out, err
}

// RemoveIdea deletes an idea.
func (t *Tracker) RemoveIdea(id string) error {
	return t.mutate(func(ds *store.Dataset, now time.Time) error {
		i := ideaIndex(ds, id)
		if i < 0 {
			return fmt.Errorf("idea %s: %w", id, ErrNotFound)
		}
		ds.Ideas = append(ds.Ideas[:i], ds.Ideas[i+1:]...)
		return nil
	})
}

// Ideas returns copies of all ideas, optionally only those linked to a goal.
func (t *Tracker) Ideas(pillarID *int64) []store.Idea {
	var out []store.Idea
	t.read(func(ds *store.Dataset, _ time.Time) {
		for _, idea := range ds.Ideas {
			if pillarID != nil && (idea.PillarID == nil || *idea.PillarID != *pillarID) {
				continue
			}
			out = append(out, idea.Clone())
		}
	})
	return out
}

func ideaIndex(ds *store.Dataset, id string) int {
	for i := range ds.Ideas {
		if ds.Ideas[i].ID == id {
			return i
		}
	}
	return -1
}

func checkIdeaPillar(ds *store.Dataset, id *int64) error {
	if id != nil && ds.Pillar(*id) == nil {
		return fmt.Errorf("goal %d: %w", *id, ErrNotFound)
	}
	return nil
}
