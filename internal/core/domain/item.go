package domain

// Item is catalog reference data. It is never mutated after seeding.
type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Price       Money  `json:"price"`
	Description string `json:"description"`
}
