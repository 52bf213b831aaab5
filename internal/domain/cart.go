package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ItemID      int64           `json:"item_id"`
	DisplayName string          `json:"display_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ImageRef    string          `json:"image_ref"`
	Quantity    int             `json:"quantity"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the session-scoped pre-checkout line collection. It holds at most one line per ItemID.
type Cart struct {
	SessionID string     `json:"session_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCart(sessionID string) *Cart {
	return &Cart{
		SessionID: sessionID,
		Lines:     []CartLine{},
		UpdatedAt: time.Now(),
	}
}

// Add merges the line into the cart, incrementing the quantity of an existing line with the same ItemID.
func (c *Cart) Add(line CartLine) {
	for i := range c.Lines {
		if c.Lines[i].ItemID == line.ItemID {
			c.Lines[i].Quantity += line.Quantity
			c.UpdatedAt = time.Now()
			return
		}
	}
	c.Lines = append(c.Lines, line)
	c.UpdatedAt = time.Now()
}

// Remove reports whether a line was removed.
func (c *Cart) Remove(itemID int64) bool {
	for i, line := range c.Lines {
		if line.ItemID == itemID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// Subtract takes the quantities of lines out of the cart and drops lines that reach zero.
// Items not in lines are left alone.
func (c *Cart) Subtract(lines []CartLine) {
	for _, line := range lines {
		for i := range c.Lines {
			if c.Lines[i].ItemID != line.ItemID {
				continue
			}
			c.Lines[i].Quantity -= line.Quantity
			if c.Lines[i].Quantity <= 0 {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			}
			break
		}
	}
	c.UpdatedAt = time.Now()
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) Total() decimal.Decimal {
	return TotalOf(c.Lines)
}

func (c *Cart) Snapshot() []CartLine {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return lines
}

func TotalOf(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}
