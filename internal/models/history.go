package models

// DayBucket groups a seller's history items for one calendar day.
// A history page is an ordered slice of buckets (day descending, items
// event-time descending within a day), not a map keyed by day: the
// ordering is part of the contract, so it lives in the slice order
// rather than in container iteration behavior
type DayBucket struct {
	Date  string `json:"date"`
	Items []Item `json:"items"`
}

// UserPage is the combined user-page view: the seller's profile, how many
// items they have sold, and the first page of their day-bucketed history
type UserPage struct {
	User      User        `json:"user"`
	SoldCount int         `json:"sold_count"`
	History   []DayBucket `json:"history"`
}
