package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jimy3k/weapp-fangxianyu/internal/apperrors"
	"github.com/jimy3k/weapp-fangxianyu/internal/models"
	"github.com/jimy3k/weapp-fangxianyu/internal/service"
)

// fakeStore backs every service port with the same in-memory item and
// user tables
type fakeStore struct {
	mu    sync.Mutex
	items map[int64]models.Item
	users map[string]models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items: make(map[int64]models.Item),
		users: make(map[string]models.User),
	}
}

func (f *fakeStore) GetItem(_ context.Context, id int64) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "item %d not found", id)
	}
	return &item, nil
}

func (f *fakeStore) GetItemsByIDs(_ context.Context, ids []int64) (map[int64]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[int64]models.Item)
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUserNotFound, "user %s not found", id)
	}
	return &user, nil
}

func (f *fakeStore) CreateItem(_ context.Context, item *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = int64(len(f.items) + 1)
	item.PostedAt = time.Now().UTC()
	f.items[item.ID] = *item
	return nil
}

func (f *fakeStore) MarkSold(_ context.Context, itemID int64, buyerID string) (bool, error) {
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

func (f *fakeStore) sellerItems(sellerID string) []models.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []models.Item
	for _, item := range f.items {
		if item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	return items
}

func (f *fakeStore) HistoryDays(_ context.Context, sellerID string, limit, offset int) ([]string, error) {
	seen := make(map[string]bool)
	var days []string
	for _, item := range f.sellerItems(sellerID) {
		if day := item.EventDay(); !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if offset >= len(days) {
		return nil, nil
	}
	end := offset + limit
	if end > len(days) {
		end = len(days)
	}
	return days[offset:end], nil
}

func (f *fakeStore) HistoryItemsByDays(_ context.Context, sellerID string, days []string) ([]models.Item, error) {
	want := make(map[string]bool, len(days))
	for _, day := range days {
		want[day] = true
	}
	var items []models.Item
	for _, item := range f.sellerItems(sellerID) {
		if want[item.EventDay()] {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EventTime().After(items[j].EventTime()) })
	return items, nil
}

func (f *fakeStore) ListBought(_ context.Context, userID string, limit, offset int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []models.Item
	for _, item := range f.items {
		if item.SoldAt != nil && item.BuyerID == userID {
			items = append(items, item)
		}
	}
	return sliceWindow(items, limit, offset), nil
}

func (f *fakeStore) ListSold(_ context.Context, sellerID string, limit, offset int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []models.Item
	for _, item := range f.items {
		if item.SoldAt != nil && item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	return sliceWindow(items, limit, offset), nil
}

func (f *fakeStore) ListPosted(_ context.Context, sellerID string, limit, offset int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []models.Item
	for _, item := range f.items {
		if item.SoldAt == nil && item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	return sliceWindow(items, limit, offset), nil
}

func (f *fakeStore) CountSold(_ context.Context, sellerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, item := range f.items {
		if item.SoldAt != nil && item.SellerID == sellerID {
			count++
		}
	}
	return count, nil
}

func sliceWindow(items []models.Item, limit, offset int) []models.Item {
	sort.Slice(items, func(i, j int) bool { return items[i].EventTime().After(items[j].EventTime()) })
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// fakeRegistry is an in-memory collect registry with last-writer-wins on seq
type fakeRegistry struct {
	mu      sync.Mutex
	entries map[string]map[int64]struct {
		active bool
		seq    int64
	}
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: make(map[string]map[int64]struct {
		active bool
		seq    int64
	})}
}

func (f *fakeRegistry) Toggle(_ context.Context, userID string, itemID int64, active bool, seq int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byItem, ok := f.entries[userID]
	if !ok {
		byItem = make(map[int64]struct {
			active bool
			seq    int64
		})
		f.entries[userID] = byItem
	}
	if current, ok := byItem[itemID]; ok && current.seq >= seq {
		return false, nil
	}
	byItem[itemID] = struct {
		active bool
		seq    int64
	}{active: active, seq: seq}
	return true, nil
}

func (f *fakeRegistry) ListCollected(_ context.Context, userID string, offset, count int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type scored struct{ id, seq int64 }
	var active []scored
	for id, entry := range f.entries[userID] {
		if entry.active {
			active = append(active, scored{id: id, seq: entry.seq})
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].seq > active[j].seq })
	if offset >= int64(len(active)) {
		return nil, nil
	}
	end := offset + count
	if end > int64(len(active)) {
		end = int64(len(active))
	}
	ids := make([]int64, 0, end-offset)
	for _, s := range active[offset:end] {
		ids = append(ids, s.id)
	}
	return ids, nil
}

type fakePublisher struct{}

func (fakePublisher) Publish(context.Context, *models.CollectEvent) error { return nil }

// fakeAuth resolves tokens from a static table
type fakeAuth struct {
	sessions map[string]string
}

func (f *fakeAuth) ResolveSession(_ context.Context, token string) (string, error) {
	return f.sessions[token], nil
}

func newTestServer(store *fakeStore) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	history := service.NewHistoryService(store)
	listing := service.NewListingService(store)
	collect := service.NewCollectService(newFakeRegistry(), store, fakePublisher{}, logger)
	userPage := service.NewUserPageService(store, history, listing)
	goods := service.NewGoodsService(store)

	auth := &fakeAuth{sessions: map[string]string{"token-u1": "u1"}}
	handler := NewHandler(collect, listing, userPage, goods, auth, logger)
	return httptest.NewServer(handler.SetupRoutes())
}

func doRequest(t *testing.T, method, url, token, body string) (*http.Response, Response) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, envelope
}

func seedItem(store *fakeStore, item models.Item) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.items[item.ID] = item
}

func postedAt(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequireUser(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, envelope := doRequest(t, "GET", server.URL+"/api/v1/collect/list", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}
	if envelope.Code != string(apperrors.CodeUnauthenticated) {
		t.Errorf("no token: code = %s, want UNAUTHENTICATED", envelope.Code)
	}

	resp, envelope = doRequest(t, "GET", server.URL+"/api/v1/collect/list", "bogus", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", resp.StatusCode)
	}
	if envelope.Code != string(apperrors.CodeUnauthenticated) {
		t.Errorf("bad token: code = %s, want UNAUTHENTICATED", envelope.Code)
	}
}

func TestToggleCollect_EndToEnd(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedItem(store, models.Item{ID: 1, SellerID: "seller", Title: "lamp", PostedAt: postedAt(2024, time.May, 1)})
	server := newTestServer(store)
	defer server.Close()

	resp, envelope := doRequest(t, "POST", server.URL+"/api/v1/collect/1/true", "token-u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: status = %d, body code = %s", resp.StatusCode, envelope.Code)
	}
	if envelope.Code != "OK" {
		t.Errorf("toggle: code = %s, want OK", envelope.Code)
	}

	resp, envelope = doRequest(t, "GET", server.URL+"/api/v1/collect/list", "token-u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status = %d", resp.StatusCode)
	}
	items, ok := envelope.Data.([]any)
	if !ok || len(items) != 1 {
		t.Errorf("list data = %v, want one item", envelope.Data)
	}
}

func TestToggleCollect_UnknownItem(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, envelope := doRequest(t, "POST", server.URL+"/api/v1/collect/99/true", "token-u1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if envelope.Code != string(apperrors.CodeNotFound) {
		t.Errorf("code = %s, want NOT_FOUND", envelope.Code)
	}
}

func TestToggleCollect_BadFlag(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedItem(store, models.Item{ID: 1, SellerID: "seller", PostedAt: postedAt(2024, time.May, 1)})
	server := newTestServer(store)
	defer server.Close()

	resp, envelope := doRequest(t, "POST", server.URL+"/api/v1/collect/1/maybe", "token-u1", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if envelope.Code != string(apperrors.CodeInvalidArgument) {
		t.Errorf("code = %s, want INVALID_ARGUMENT", envelope.Code)
	}
}

func TestGetUserPage_UnknownUser(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, envelope := doRequest(t, "GET", server.URL+"/api/v1/goods/user/ghost", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if envelope.Code != string(apperrors.CodeUserNotFound) {
		t.Errorf("code = %s, want USER_NOT_FOUND", envelope.Code)
	}
}

func TestGetUserPage_DefaultsAndData(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.users["seller"] = models.User{ID: "seller", Nickname: "bob"}
	seedItem(store, models.Item{ID: 1, SellerID: "seller", Title: "chair", PostedAt: postedAt(2024, time.May, 3)})
	server := newTestServer(store)
	defer server.Close()

	// No page/size parameters: defaults of 1 and 10 apply
	resp, envelope := doRequest(t, "GET", server.URL+"/api/v1/goods/user/seller", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %v, want object", envelope.Data)
	}
	history, ok := data["history"].([]any)
	if !ok || len(history) != 1 {
		t.Errorf("history = %v, want one bucket", data["history"])
	}
}

func TestPageParams_Rejections(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.users["seller"] = models.User{ID: "seller"}
	server := newTestServer(store)
	defer server.Close()

	cases := []struct {
		name  string
		query string
	}{
		{"non-integer page", "?page=abc"},
		{"non-integer size", "?size=xyz"},
		{"zero page", "?page=0"},
		{"negative size", "?size=-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, envelope := doRequest(t, "GET", server.URL+"/api/v1/goods/user/seller"+tc.query, "", "")
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if envelope.Code != string(apperrors.CodeInvalidArgument) {
				t.Errorf("code = %s, want INVALID_ARGUMENT", envelope.Code)
			}
		})
	}
}

func TestPostAndBuyItem(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	server := newTestServer(store)
	defer server.Close()

	resp, envelope := doRequest(t, "POST", server.URL+"/api/v1/goods", "token-u1",
		`{"title":"desk","description":"sturdy","price":45.5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post: status = %d, code = %s", resp.StatusCode, envelope.Code)
	}

	// The poster cannot buy their own item
	resp, envelope = doRequest(t, "POST", server.URL+"/api/v1/goods/1/buy", "token-u1", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("self buy: status = %d, want 400", resp.StatusCode)
	}
	if envelope.Code != string(apperrors.CodeInvalidArgument) {
		t.Errorf("self buy: code = %s, want INVALID_ARGUMENT", envelope.Code)
	}
}

func TestListPosted_EmptyIsArray(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, envelope := doRequest(t, "GET", server.URL+"/api/v1/goods/posted", "token-u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, ok := envelope.Data.([]any); !ok {
		t.Errorf("data = %#v, want JSON array", envelope.Data)
	}
}
