package models

import "time"

type Color string

const (
	ColorDefault Color = "default"
	ColorRed     Color = "red"
	ColorBlue    Color = "blue"
	ColorYellow  Color = "yellow"
)

// Colors lists every accepted note color.
var Colors = []Color{ColorDefault, ColorRed, ColorBlue, ColorYellow}

func (c Color) Valid() bool {
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}

// Note is a single sticky note. Order defines its position on the board
// and is unique across all notes.
type Note struct {
	ID        string    `json:"id" bson:"_id"`
	Content   string    `json:"content" bson:"content"`
	Color     Color     `json:"color" bson:"color"`
	Order     int64     `json:"order" bson:"order"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Order values are kept within ±2^53 so they stay exact in JSON clients
// and append or reorder arithmetic never overflows int64.
const (
	MaxOrder int64 = 1 << 53
	MinOrder int64 = -MaxOrder
)

// OrderAssignment moves one note to a new order value.
type OrderAssignment struct {
	ID    string `json:"id"`
	Order int64  `json:"order"`
}
