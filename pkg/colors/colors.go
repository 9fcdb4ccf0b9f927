// Package colors holds the fixed LED colour table addressed by the LED channel.
package colors

import "github.com/teslashibe/go-superbit/pkg/actuator"

// Entry is one slot of the table. Off entries turn the strip dark.
type Entry struct {
	Name string
	RGB  actuator.RGB
	Off  bool
}

var table = [...]Entry{
	{Name: "Off", Off: true},
	{Name: "Red", RGB: actuator.RGB{R: 255, G: 0, B: 0}},
	{Name: "Orange", RGB: actuator.RGB{R: 255, G: 165, B: 0}},
	{Name: "Yellow", RGB: actuator.RGB{R: 255, G: 255, B: 0}},
	{Name: "Green", RGB: actuator.RGB{R: 127, G: 255, B: 0}},
	{Name: "Blue", RGB: actuator.RGB{R: 4, G: 213, B: 237}},
	{Name: "Indigo", RGB: actuator.RGB{R: 75, G: 0, B: 130}},
}

// Len is the number of entries; valid indexes are 0..Len-1.
const Len = len(table)

// Lookup returns the entry at index.
func Lookup(index uint8) (Entry, bool) {
	if int(index) >= Len {
		return Entry{}, false
	}
	return table[index], true
}

// All returns the entries in index order.
func All() []Entry {
	out := make([]Entry, Len)
	copy(out, table[:])
	return out
}
