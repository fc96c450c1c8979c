package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jimy3k/weapp-fangxianyu/internal/apperrors"
	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// fakeGoodsStore applies the purchase transition under a lock, matching the
// atomic conditional update the real store performs
type fakeGoodsStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]models.Item
}

func newFakeGoodsStore(items ...models.Item) *fakeGoodsStore {
	byID := make(map[int64]models.Item, len(items))
	var maxID int64
	for _, item := range items {
		byID[item.ID] = item
		if item.ID > maxID {
			maxID = item.ID
		}
	}
	return &fakeGoodsStore{nextID: maxID + 1, items: byID}
}

func (f *fakeGoodsStore) GetItem(_ context.Context, id int64) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "item %d not found", id)
	}
	return &item, nil
}

func (f *fakeGoodsStore) CreateItem(_ context.Context, item *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.nextID
	item.PostedAt = time.Now().UTC()
	f.nextID++
	f.items[item.ID] = *item
	return nil
}

func (f *fakeGoodsStore) MarkSold(_ context.Context, itemID int64, buyerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.SoldAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	item.BuyerID = buyerID
	item.SoldAt = &now
	f.items[itemID] = item
	return true, nil
}

func TestPost_CreatesLivePosting(t *testing.T) {
	t.Parallel()

	store := newFakeGoodsStore()
	svc := NewGoodsService(store)

	item, err := svc.Post(context.Background(), "u1", "  old bike  ", "barely used", 120)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if item.ID == 0 {
		t.Error("item got no ID")
	}
	if item.Title != "old bike" {
		t.Errorf("title = %q, want trimmed %q", item.Title, "old bike")
	}
	if item.Sold() {
		t.Error("fresh posting is marked sold")
	}
}

func TestPost_RejectsBadInput(t *testing.T) {
	t.Parallel()

	svc := NewGoodsService(newFakeGoodsStore())
	ctx := context.Background()

	if _, err := svc.Post(ctx, "u1", "   ", "", 10); !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Errorf("blank title: got %v, want INVALID_ARGUMENT", err)
	}
	if _, err := svc.Post(ctx, "u1", "bike", "", -1); !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Errorf("negative price: got %v, want INVALID_ARGUMENT", err)
	}
}

func TestBuy_TransitionsOnce(t *testing.T) {
	t.Parallel()

	store := newFakeGoodsStore(postedItem(1, "seller", day(2024, time.June, 1, 9)))
	svc := NewGoodsService(store)
	ctx := context.Background()

	item, err := svc.Buy(ctx, "buyer1", 1)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if !item.Sold() || item.BuyerID != "buyer1" {
		t.Fatalf("item after buy = %+v, want sold to buyer1", item)
	}

	// The transition is one way; a second purchase must fail
	if _, err := svc.Buy(ctx, "buyer2", 1); !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Errorf("second buy: got %v, want INVALID_ARGUMENT", err)
	}
}

func TestBuy_RejectsOwnItem(t *testing.T) {
	t.Parallel()

	store := newFakeGoodsStore(postedItem(1, "u1", day(2024, time.June, 1, 9)))
	svc := NewGoodsService(store)

	if _, err := svc.Buy(context.Background(), "u1", 1); !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Errorf("got %v, want INVALID_ARGUMENT", err)
	}
}

func TestBuy_UnknownItem(t *testing.T) {
	t.Parallel()

	svc := NewGoodsService(newFakeGoodsStore())

	if _, err := svc.Buy(context.Background(), "u1", 42); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("got %v, want NOT_FOUND", err)
	}
}

func TestBuy_ConcurrentBuyersOneWinner(t *testing.T) {
	t.Parallel()

	store := newFakeGoodsStore(postedItem(1, "seller", day(2024, time.June, 1, 9)))
	svc := NewGoodsService(store)

	const buyers = 8
	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Buy(context.Background(), string(rune('a'+n)), 1)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else if !apperrors.Is(err, apperrors.CodeInvalidArgument) {
			t.Errorf("loser got %v, want INVALID_ARGUMENT", err)
		}
	}
	if wins != 1 {
		t.Errorf("%d buyers succeeded, want exactly 1", wins)
	}
}
