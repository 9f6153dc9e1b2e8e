package render

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var elements = map[Kind]atom.Atom{
	KindEntry:        atom.Div,
	KindUserText:     atom.P,
	KindFriendlyText: atom.P,
	KindTips:         atom.Section,
	KindTip:          atom.Li,
	KindGuides:       atom.Section,
	KindGuide:        atom.Article,
	KindArticles:     atom.Section,
	KindArticle:      atom.Article,
	KindResults:      atom.Div,
	KindCard:         atom.Article,
	KindBadge:        atom.Span,
	KindTitle:        atom.Strong,
	KindDescription:  atom.P,
	KindDetails:      atom.Dl,
	KindDetail:       atom.Div,
	KindLink:         atom.A,
	KindBenefits:     atom.Ul,
	KindBenefit:      atom.Li,
	KindFAQ:          atom.Details,
	KindFAQItem:      atom.Div,
	KindShowMore:     atom.Button,
	KindFallback:     atom.P,
	KindTyping:       atom.Span,
	KindError:        atom.P,
	KindPlans:        atom.Section,
	KindPlan:         atom.Article,
	KindTestimonials: atom.Section,
	KindTestimonial:  atom.Blockquote,
	KindQuickReplies: atom.Div,
	KindQuickReply:   atom.Button,
}

// HTML serializes a node tree as an HTML fragment. All text and attribute
// values are escaped by the serializer, and only http(s) links get an href.
func HTML(n *Node) (string, error) {
	if n == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, toHTML(n)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toHTML(n *Node) *html.Node {
	a, ok := elements[n.Kind]
	if !ok {
		a = atom.Div
	}
	el := &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     []html.Attribute{{Key: "class", Val: "ea-" + strings.ReplaceAll(string(n.Kind), "_", "-")}},
	}
	if n.ID != "" {
		el.Attr = append(el.Attr, html.Attribute{Key: "data-id", Val: n.ID})
	}
	if href := SafeURL(n.Href); href != "" {
		el.Attr = append(el.Attr,
			html.Attribute{Key: "href", Val: href},
			html.Attribute{Key: "target", Val: "_blank"},
			html.Attribute{Key: "rel", Val: "noopener"},
		)
	}
	if n.Kind == KindFAQ && n.Expanded {
		el.Attr = append(el.Attr, html.Attribute{Key: "open"})
	}

	if n.Label != "" {
		labelAtom := atom.Span
		switch n.Kind {
		case KindFAQ:
			labelAtom = atom.Summary
		case KindDetail:
			labelAtom = atom.Dt
		case KindTips, KindGuides, KindArticles, KindPlans, KindTestimonials, KindBenefits:
			labelAtom = atom.H4
		}
		label := &html.Node{Type: html.ElementNode, DataAtom: labelAtom, Data: labelAtom.String()}
		label.AppendChild(&html.Node{Type: html.TextNode, Data: n.Label})
		el.AppendChild(label)
	}
	if n.Text != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: n.Text})
	}
	for _, c := range n.Children {
		el.AppendChild(toHTML(c))
	}
	return el
}
