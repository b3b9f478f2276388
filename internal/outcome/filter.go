package outcome

import "sync"

// Filter tracks which color categories are shown.
// An empty filter is never observable: it means "show everything".
type Filter struct {
	mu      sync.Mutex
	enabled map[Color]bool
}

// NewFilter returns a filter with every category enabled.
func NewFilter() *Filter {
	f := &Filter{}
	f.enableAll()
	return f
}

func (f *Filter) enableAll() {
	f.enabled = make(map[Color]bool, len(Colors))
	for _, c := range Colors {
		f.enabled[c] = true
	}
}

// Toggle flips a category.
//
// Disabling the last enabled category re-enables all of them. Enabling a
// category while every category is already enabled isolates it.
func (f *Filter) Toggle(c Color) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.enabled[c] {
		delete(f.enabled, c)
		if len(f.enabled) == 0 {
			f.enableAll()
		}
		return
	}

	if len(f.enabled) == len(Colors) {
		f.enabled = make(map[Color]bool, len(Colors))
	}
	f.enabled[c] = true
}

// Set replaces the enabled categories. An empty list enables all of them.
func (f *Filter) Set(colors []Color) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enabled = make(map[Color]bool, len(Colors))
	for _, c := range colors {
		if _, ok := styles[c]; ok {
			f.enabled[c] = true
		}
	}
	if len(f.enabled) == 0 {
		f.enableAll()
	}
}

// Reset enables every category.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableAll()
}

// Enabled returns the enabled categories in legend order.
func (f *Filter) Enabled() []Color {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Color, 0, len(f.enabled))
	for _, c := range Colors {
		if f.enabled[c] {
			out = append(out, c)
		}
	}
	return out
}

// IsEnabled reports whether c is shown.
func (f *Filter) IsEnabled(c Color) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled[c]
}

// IsVisible reports whether an address with the given outcomes is shown.
func (f *Filter) IsVisible(tags []Tag) bool {
	return f.IsEnabled(Classify(tags))
}
