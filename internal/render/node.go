// Package render turns canonical query results into declarative node trees.
//
// A node tree is what a page script paints: the renderer never touches a
// DOM, and the same input always yields the same tree.
package render

import (
	"errors"
)

// Kind names what a node represents.
type Kind string

const (
	KindEntry        Kind = "entry"
	KindUserText     Kind = "user_text"
	KindFriendlyText Kind = "friendly_text"
	KindTips         Kind = "tips"
	KindTip          Kind = "tip"
	KindGuides       Kind = "guides"
	KindGuide        Kind = "guide"
	KindArticles     Kind = "articles"
	KindArticle      Kind = "article"
	KindResults      Kind = "results"
	KindCard         Kind = "card"
	KindBadge        Kind = "badge"
	KindTitle        Kind = "title"
	KindDescription  Kind = "description"
	KindDetails      Kind = "details"
	KindDetail       Kind = "detail"
	KindLink         Kind = "link"
	KindBenefits     Kind = "benefits"
	KindBenefit      Kind = "benefit"
	KindFAQ          Kind = "faq"
	KindFAQItem      Kind = "faq_item"
	KindShowMore     Kind = "show_more"
	KindFallback     Kind = "fallback"
	KindTyping       Kind = "typing"
	KindError        Kind = "error"
	KindPlans        Kind = "plans"
	KindPlan         Kind = "plan"
	KindTestimonials Kind = "testimonials"
	KindTestimonial  Kind = "testimonial"
	KindQuickReplies Kind = "quick_replies"
	KindQuickReply   Kind = "quick_reply"
)

// ShowMoreID is the ID of the "show more" control inside an entry.
const ShowMoreID = "show-more"

// ErrFAQNotFound is returned when a FAQ block ID does not exist in a tree.
var ErrFAQNotFound = errors.New("faq block not found")

// Node is one element of a rendered transcript entry.
type Node struct {
	Kind     Kind    `json:"kind"`
	ID       string  `json:"id,omitempty"`
	Label    string  `json:"label,omitempty"`
	Text     string  `json:"text,omitempty"`
	Href     string  `json:"href,omitempty"`
	Expanded bool    `json:"expanded,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

// Find returns the first node of kind k with the given ID, depth first.
// An empty id matches any node of that kind.
func (n *Node) Find(k Kind, id string) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == k && (id == "" || n.ID == id) {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(k, id); found != nil {
			return found
		}
	}
	return nil
}

// Count returns how many nodes of kind k the tree holds.
func (n *Node) Count(k Kind) int {
	if n == nil {
		return 0
	}
	total := 0
	if n.Kind == k {
		total++
	}
	for _, c := range n.Children {
		total += c.Count(k)
	}
	return total
}

// Last returns the last direct child, or nil.
func (n *Node) Last() *Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// RemoveChild drops every direct child of kind k with the given ID and
// reports whether anything was removed.
func (n *Node) RemoveChild(k Kind, id string) bool {
	kept := n.Children[:0]
	removed := false
	for _, c := range n.Children {
		if c.Kind == k && (id == "" || c.ID == id) {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	n.Children = kept
	return removed
}

// ToggleFAQ flips the expanded state of one FAQ block and returns the new state.
// Sibling blocks are left alone.
func ToggleFAQ(root *Node, faqID string) (bool, error) {
	if faqID == "" {
		return false, ErrFAQNotFound
	}
	faq := root.Find(KindFAQ, faqID)
	if faq == nil {
		return false, ErrFAQNotFound
	}
	faq.Expanded = !faq.Expanded
	return faq.Expanded, nil
}
