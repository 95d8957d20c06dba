package domain

// Cart belongs to exactly one user. Items hold one entry per unit, in the
// order they were added. Total always equals the sum of item prices.
type Cart struct {
	ID      int64   `json:"id"`
	User    UserRef `json:"user"`
	Items   []Item  `json:"items"`
	Total   Money   `json:"total"`
	Version int     `json:"-"` // optimistic locking
}

// Add appends quantity copies of item and recomputes the total.
func (c *Cart) Add(item Item, quantity int) {
	for i := 0; i < quantity; i++ {
		c.Items = append(c.Items, item)
	}
	c.recompute()
}

// Remove drops up to quantity copies of the item with the given id, latest
// first, and returns how many were removed.
func (c *Cart) Remove(itemID int64, quantity int) int {
	removed := 0
	for i := len(c.Items) - 1; i >= 0 && removed < quantity; i-- {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			removed++
		}
	}
	c.recompute()
	return removed
}

func (c *Cart) Clear() {
	c.Items = []Item{}
	c.Total = Zero
}

// Snapshot returns a deep copy so callers can keep it after the cart changes.
func (c Cart) Snapshot() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

func (c *Cart) recompute() {
	if c.Items == nil {
		c.Items = []Item{}
	}
	c.Total = SumPrices(c.Items)
}
