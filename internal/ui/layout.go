package ui

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which timestamps and the
	// theme name are hidden.
	LayoutCompactWidth = 70

	// LayoutMaxContentWidth caps the width of post and comment blocks.
	LayoutMaxContentWidth = 100
)

// Fixed chrome heights.
const (
	headerHeight = 1
	footerHeight = 2
)

// contentWidth returns the width available to post blocks.
func contentWidth(width int) int {
	w := width - 2
	if w > LayoutMaxContentWidth {
		w = LayoutMaxContentWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

// bodyHeight returns the rows left for the active screen.
func bodyHeight(height int) int {
	h := height - headerHeight - footerHeight
	if h < 1 {
		return 1
	}
	return h
}
