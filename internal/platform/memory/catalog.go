package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

var difficultyRank = map[domain.Difficulty]int{
	domain.DifficultyBeginner:     0,
	domain.DifficultyElementary:   1,
	domain.DifficultyIntermediate: 2,
	domain.DifficultyAdvanced:     3,
	domain.DifficultyExpert:       4,
}

type catalog struct {
	st *state
}

var _ store.Catalog = (*catalog)(nil)

func (c *catalog) GetItem(_ context.Context, id uuid.UUID) (*domain.Item, error) {
	item, ok := c.st.items[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return &item, nil
}

func (c *catalog) ListUnseen(_ context.Context, userID uuid.UUID, limit int) ([]domain.Item, error) {
	var unseen []domain.Item
	for id, item := range c.st.items {
		if _, seen := c.st.mastery[masteryKey{userID, id}]; !seen {
			unseen = append(unseen, item)
		}
	}
	sort.Slice(unseen, func(i, j int) bool {
		ri, rj := difficultyRank[unseen[i].Difficulty], difficultyRank[unseen[j].Difficulty]
		if ri != rj {
			return ri < rj
		}
		return unseen[i].Headword < unseen[j].Headword
	})
	if limit > 0 && len(unseen) > limit {
		unseen = unseen[:limit]
	}
	return unseen, nil
}
