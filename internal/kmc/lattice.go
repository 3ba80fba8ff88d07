package kmc

import (
	"fmt"
	"strings"
)

// Site is one cell of the lattice.
type Site struct {
	Row      int
	Col      int
	Occupant *Species
}

// Lattice is a periodic square grid of sites. Its side length can only be
// changed before Initialize.
type Lattice struct {
	size        int
	sites       []Site
	initialized bool
}

// NewLattice returns an uninitialized lattice of side n.
func NewLattice(n int) (*Lattice, error) {
	l := &Lattice{}
	if err := l.SetSize(n); err != nil {
		return nil, err
	}
	return l, nil
}

// SetSize changes the side length. It fails once the lattice is initialized.
func (l *Lattice) SetSize(n int) error {
	if l.initialized {
		return fmt.Errorf("%w: cannot resize lattice after it has been initialized", ErrConfig)
	}
	if n < 0 {
		return fmt.Errorf("%w: lattice size must be >= 0, got %d", ErrConfig, n)
	}
	l.size = n
	return nil
}

// Initialize allocates the N*N sites, all occupied by empty.
func (l *Lattice) Initialize(empty *Species) error {
	if l.size > 0 && empty == nil {
		return fmt.Errorf("%w: lattice of size %d needs an empty site species", ErrInput, l.size)
	}
	l.sites = make([]Site, l.size*l.size)
	for row := range l.size {
		for col := range l.size {
			l.sites[row*l.size+col] = Site{Row: row, Col: col, Occupant: empty}
		}
	}
	l.initialized = true
	return nil
}

// Initialized reports whether Initialize has been called.
func (l *Lattice) Initialized() bool {
	return l.initialized
}

// Size returns the side length.
func (l *Lattice) Size() int {
	return l.size
}

// Sites returns the total number of sites.
func (l *Lattice) Sites() int {
	return l.size * l.size
}

// Site returns the site at (row, col).
func (l *Lattice) Site(row, col int) (*Site, error) {
	if !l.initialized {
		return nil, fmt.Errorf("%w: lattice", ErrNotInitialized)
	}
	if row < 0 || row >= l.size || col < 0 || col >= l.size {
		return nil, fmt.Errorf("%w: site (%d, %d) outside %dx%d lattice", ErrInput, row, col, l.size, l.size)
	}
	return &l.sites[row*l.size+col], nil
}

// siteAt returns the site with linear index i = row*N + col.
func (l *Lattice) siteAt(i int) *Site {
	return &l.sites[i]
}

// Count returns how many sites sp occupies.
func (l *Lattice) Count(sp *Species) int {
	n := 0
	for i := range l.sites {
		if l.sites[i].Occupant == sp {
			n++
		}
	}
	return n
}

// Render draws the lattice one row per line, each occupant name padded or
// cut to width characters.
func (l *Lattice) Render(width int) string {
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	for row := range l.size {
		for col := range l.size {
			name := ""
			if sp := l.sites[row*l.size+col].Occupant; sp != nil {
				name = sp.Name
			}
			if len(name) > width {
				name = name[:width]
			}
			b.WriteString(name)
			b.WriteString(strings.Repeat(" ", width-len(name)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
