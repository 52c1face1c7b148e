// Package router - Maps reading-order cell indices to register columns.
package router

import "github.com/pkg/errors"

// Kind is the content type of a register column.
type Kind string

const (
	// KindText columns hold printed or written text (roll number, name).
	KindText Kind = "text"
	// KindMark columns hold an attendance mark for one date.
	KindMark Kind = "mark"
)

// Router decides what kind of content the cell at a flat reading-order index holds.
type Router interface {
	Route(index int) Kind
}

// Modulo routes by column position, assuming every row has Columns cells and
// the first TextColumns of each row are text.
//
// @example
// r := router.Modulo{Columns: 5, TextColumns: 2}
// r.Route(0) // KindText
// r.Route(2) // KindMark
// r.Route(5) // KindText
type Modulo struct {
	Columns     int `json:"columns" yaml:"columns"`
	TextColumns int `json:"text_columns" yaml:"text_columns"`
}

// Default returns the layout of the standard register: roll number and name
// followed by three date columns.
func Default() Modulo {
	return Modulo{Columns: 5, TextColumns: 2}
}

// Route implements Router.
func (m Modulo) Route(index int) Kind {
	if m.Columns <= 0 || index < 0 {
		return KindMark
	}
	if index%m.Columns < m.TextColumns {
		return KindText
	}
	return KindMark
}

// Validate reports whether the layout is usable.
func (m Modulo) Validate() error {
	if m.Columns <= 0 {
		return errors.Errorf("router columns must be positive, got %d", m.Columns)
	}
	if m.TextColumns < 0 || m.TextColumns > m.Columns {
		return errors.Errorf("router text_columns must be within [0, %d], got %d", m.Columns, m.TextColumns)
	}
	return nil
}
