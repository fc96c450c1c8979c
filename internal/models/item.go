package models

import "time"

// Item represents a second-hand listing posted by a seller
type Item struct {
	ID          int64      `json:"id"`
	SellerID    string     `json:"seller_id"`
	BuyerID     string     `json:"buyer_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	PostedAt    time.Time  `json:"posted_at"`
	SoldAt      *time.Time `json:"sold_at,omitempty"`
}

// Sold reports whether the item has completed its one-way Posted -> Sold transition
func (i *Item) Sold() bool {
	return i.SoldAt != nil
}

// EventTime returns the timestamp that places the item on its seller's timeline:
// the sale time once sold, the posting time otherwise
func (i *Item) EventTime() time.Time {
	if i.SoldAt != nil {
		return *i.SoldAt
	}
	return i.PostedAt
}

// EventDay returns the UTC calendar day of EventTime, formatted "2006-01-02"
func (i *Item) EventDay() string {
	return i.EventTime().UTC().Format(DayFormat)
}

// DayFormat is the layout used for history day keys
const DayFormat = "2006-01-02"

// User represents a marketplace user profile
type User struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
