package store

import (
	"testing"
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

func TestOldestFirst(t *testing.T) {
	base := time.Now()
	page := []*domain.Message{
		{ID: 3, CreatedAt: base.Add(2 * time.Second)},
		{ID: 2, CreatedAt: base.Add(time.Second)},
		{ID: 1, CreatedAt: base},
	}

	OldestFirst(page)

	for i, want := range []uint64{1, 2, 3} {
		if page[i].ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, page[i].ID)
		}
	}
	if page[0].CreatedAt.After(page[2].CreatedAt) {
		t.Error("page should end up in chronological order")
	}
}

func TestOldestFirstEdgeSizes(t *testing.T) {
	OldestFirst(nil)

	one := []*domain.Message{{ID: 7}}
	OldestFirst(one)
	if one[0].ID != 7 {
		t.Error("single-element page must be untouched")
	}

	two := []*domain.Message{{ID: 2}, {ID: 1}}
	OldestFirst(two)
	if two[0].ID != 1 || two[1].ID != 2 {
		t.Errorf("even-length page reversed wrong: %d, %d", two[0].ID, two[1].ID)
	}
}
