package toc

// ScrollBehavior selects how the viewport moves to a target.
type ScrollBehavior string

// Scroll behaviours.
const (
	ScrollSmooth  ScrollBehavior = "smooth"
	ScrollInstant ScrollBehavior = "instant"
)

// BlockAlign selects where the target lands in the viewport.
type BlockAlign string

// Block alignments.
const (
	BlockStart  BlockAlign = "start"
	BlockCenter BlockAlign = "center"
)

// ScrollOptions mirrors the options of a scroll-into-view request.
type ScrollOptions struct {
	Behavior ScrollBehavior `json:"behavior"`
	Block    BlockAlign     `json:"block"`
}

// Target is an element that can be brought into view.
type Target interface {
	ScrollIntoView(opts ScrollOptions)
}

// Locator finds elements by id. It stands in for the host's view so that
// navigation can be exercised without a browser.
type Locator interface {
	Locate(id string) (Target, bool)
}

// LocatorFunc adapts a plain function to Locator.
type LocatorFunc func(id string) (Target, bool)

// Locate calls f(id).
func (f LocatorFunc) Locate(id string) (Target, bool) {
	return f(id)
}
