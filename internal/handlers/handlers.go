// Package handlers exposes the goods service over HTTP. Handlers validate
// the caller identity and arguments, delegate to the services and wrap
// results in the uniform response envelope; they contain no business logic.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jimy3k/weapp-fangxianyu/internal/apperrors"
	"github.com/jimy3k/weapp-fangxianyu/internal/models"
	"github.com/jimy3k/weapp-fangxianyu/internal/service"
)

// Handler contains HTTP request handlers
type Handler struct {
	collect  *service.CollectService
	listing  *service.ListingService
	userPage *service.UserPageService
	goods    *service.GoodsService
	auth     Authenticator
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	collect *service.CollectService,
	listing *service.ListingService,
	userPage *service.UserPageService,
	goods *service.GoodsService,
	auth Authenticator,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		collect:  collect,
		listing:  listing,
		userPage: userPage,
		goods:    goods,
		auth:     auth,
		logger:   logger,
	}
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/goods/user/{userID}", h.GetUserPage).Methods("GET")
	api.HandleFunc("/goods/user/more/{userID}", h.GetUserPageMore).Methods("GET")

	// Identity-scoped routes
	me := api.NewRoute().Subrouter()
	me.Use(requireUser(h.auth))
	me.HandleFunc("/collect/{itemID:[0-9]+}/{wantCollected}", h.ToggleCollect).Methods("POST")
	me.HandleFunc("/collect/list", h.ListCollected).Methods("GET")
	me.HandleFunc("/goods/bought", h.ListBought).Methods("GET")
	me.HandleFunc("/goods/sold", h.ListSold).Methods("GET")
	me.HandleFunc("/goods/posted", h.ListPosted).Methods("GET")
	me.HandleFunc("/goods", h.PostItem).Methods("POST")
	me.HandleFunc("/goods/{itemID:[0-9]+}/buy", h.BuyItem).Methods("POST")

	// Middleware
	router.Use(requestLogger(h.logger))
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "goods-service",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ToggleCollect sets or clears the caller's collect flag on an item
func (h *Handler) ToggleCollect(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDVar(r)
	if err != nil {
		respondError(w, err)
		return
	}

	wantCollected, err := strconv.ParseBool(mux.Vars(r)["wantCollected"])
	if err != nil {
		respondError(w, apperrors.New(apperrors.CodeInvalidArgument, "wantCollected must be true or false"))
		return
	}

	if err := h.collect.Toggle(r.Context(), UserID(r.Context()), itemID, wantCollected); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, nil)
}

// ListCollected returns the caller's collected items
func (h *Handler) ListCollected(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		respondError(w, err)
		return
	}

	items, err := h.collect.ListCollected(r.Context(), UserID(r.Context()), page, size)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, items)
}

// ListBought returns items the caller has bought
func (h *Handler) ListBought(w http.ResponseWriter, r *http.Request) {
	h.listForCaller(w, r, h.listing.ListBought)
}

// ListSold returns items the caller has sold
func (h *Handler) ListSold(w http.ResponseWriter, r *http.Request) {
	h.listForCaller(w, r, h.listing.ListSold)
}

// ListPosted returns the caller's live postings
func (h *Handler) ListPosted(w http.ResponseWriter, r *http.Request) {
	h.listForCaller(w, r, h.listing.ListPosted)
}

// GetUserPage returns a seller's public page: profile, sold count and the
// first page of their day-bucketed history
func (h *Handler) GetUserPage(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := h.userPage.GetUserPage(r.Context(), mux.Vars(r)["userID"], page, size)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, view)
}

// GetUserPageMore returns further pages of a seller's day-bucketed history
func (h *Handler) GetUserPageMore(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		respondError(w, err)
		return
	}

	history, err := h.userPage.GetUserPageMore(r.Context(), mux.Vars(r)["userID"], page, size)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, history)
}

// postItemRequest is the body of POST /goods
type postItemRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// PostItem creates a new live posting owned by the caller
func (h *Handler) PostItem(w http.ResponseWriter, r *http.Request) {
	var req postItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.New(apperrors.CodeInvalidArgument, "invalid request body"))
		return
	}

	item, err := h.goods.Post(r.Context(), UserID(r.Context()), req.Title, req.Description, req.Price)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, item)
}

// BuyItem performs the purchase transition on behalf of the caller
func (h *Handler) BuyItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDVar(r)
	if err != nil {
		respondError(w, err)
		return
	}

	item, err := h.goods.Buy(r.Context(), UserID(r.Context()), itemID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, item)
}

type listFunc func(ctx context.Context, userID string, page, size int) ([]models.Item, error)

func (h *Handler) listForCaller(w http.ResponseWriter, r *http.Request, list listFunc) {
	page, size, err := pageParams(r)
	if err != nil {
		respondError(w, err)
		return
	}

	items, err := list(r.Context(), UserID(r.Context()), page, size)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, items)
}

// pageParams reads the page/size query parameters, defaulting to 1 and 10.
// Non-integer values are rejected here; non-positive values are rejected
// by the services
func pageParams(r *http.Request) (page, size int, err error) {
	page, size = 1, 10

	if s := r.URL.Query().Get("page"); s != "" {
		page, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.New(apperrors.CodeInvalidArgument, "page must be an integer")
		}
	}
	if s := r.URL.Query().Get("size"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.New(apperrors.CodeInvalidArgument, "size must be an integer")
		}
	}
	return page, size, nil
}

func itemIDVar(r *http.Request) (int64, error) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["itemID"], 10, 64)
	if err != nil {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "itemID must be an integer")
	}
	return itemID, nil
}
