package render

import (
	"fmt"

	"github.com/capitalize-ai/expat-assistant/internal/model"
)

// Render converts a query result into the content of one bot entry.
//
// Order is fixed: friendly text, tips, guides, articles, result cards,
// then either the fallback message (only when everything is empty) or the
// "show more" control (only when there are items and more pages).
func Render(r *model.QueryResult) *Node {
	if r == nil {
		r = &model.QueryResult{}
	}
	entry := &Node{Kind: KindEntry}

	if r.FriendlyText != "" {
		entry.Children = append(entry.Children, &Node{Kind: KindFriendlyText, Text: r.FriendlyText})
	}
	if len(r.Tips) > 0 {
		entry.Children = append(entry.Children, tips(r.Tips))
	}
	if len(r.Guides) > 0 {
		entry.Children = append(entry.Children, guides(r.Guides))
	}
	if len(r.Articles) > 0 {
		entry.Children = append(entry.Children, articles(r.Articles))
	}
	if len(r.Items) > 0 {
		entry.Children = append(entry.Children, &Node{Kind: KindResults, Children: Cards(r.Items, 0)})
	}

	if r.IsEmpty() {
		entry.Children = append(entry.Children, &Node{Kind: KindFallback, Text: MessageFallback})
	}
	if r.ShowsMore() {
		entry.Children = append(entry.Children, ShowMore())
	}

	return entry
}

// Cards renders result items as cards numbered from start, so a later page
// appended to the same entry gets fresh card and FAQ IDs.
func Cards(items []model.ResultItem, start int) []*Node {
	cards := make([]*Node, 0, len(items))
	for i, it := range items {
		cards = append(cards, card(it, start+i))
	}
	return cards
}

// Page renders a later page of results: cards numbered from start followed by
// a fresh "show more" control when yet another page exists.
func Page(r *model.QueryResult, start int) []*Node {
	nodes := Cards(r.Items, start)
	if r.ShowsMore() {
		nodes = append(nodes, ShowMore())
	}
	return nodes
}

// ShowMore is the pagination control.
func ShowMore() *Node {
	return &Node{Kind: KindShowMore, ID: ShowMoreID, Text: LabelShowMore}
}

// Typing is the three-dot placeholder shown while a response is pending.
func Typing() *Node {
	return &Node{Kind: KindEntry, Children: []*Node{TypingIndicator()}}
}

// TypingIndicator is the bare three-dot node.
func TypingIndicator() *Node {
	return &Node{Kind: KindTyping, Text: "..."}
}

// UserText is the content of a user entry.
func UserText(text string) *Node {
	return &Node{Kind: KindEntry, Children: []*Node{{Kind: KindUserText, Text: text}}}
}

// ConnectionError is painted into a bot entry whose query failed.
func ConnectionError() *Node {
	return &Node{Kind: KindEntry, Children: []*Node{{Kind: KindError, Text: MessageConnection}}}
}

// LoadMoreFailed replaces a pending "show more" when the next page failed.
func LoadMoreFailed() *Node {
	return &Node{Kind: KindError, Text: MessageLoadMoreError}
}

func tips(list []string) *Node {
	n := &Node{Kind: KindTips, Label: LabelTips}
	for _, t := range list {
		n.Children = append(n.Children, &Node{Kind: KindTip, Text: t})
	}
	return n
}

func guides(list []model.Guide) *Node {
	n := &Node{Kind: KindGuides, Label: LabelGuides}
	for _, g := range list {
		guide := &Node{Kind: KindGuide, Children: []*Node{
			{Kind: KindTitle, Text: g.Title},
			{Kind: KindDescription, Text: g.Summary},
		}}
		if href := SafeURL(g.URL); href != "" {
			guide.Children = append(guide.Children, &Node{Kind: KindLink, Text: LabelReadGuide, Href: href})
		}
		n.Children = append(n.Children, guide)
	}
	return n
}

func articles(list []model.Article) *Node {
	n := &Node{Kind: KindArticles, Label: LabelArticles}
	for _, a := range list {
		title := a.Title
		if title == "" {
			title = LabelNoTitle
		}
		description := a.Description
		if description == "" {
			description = LabelNoDescription
		}

		article := &Node{Kind: KindArticle, Children: []*Node{
			{Kind: KindTitle, Text: title},
			{Kind: KindDescription, Text: description},
		}}
		if href := SafeURL(a.URL); href != "" {
			article.Children = append(article.Children, &Node{Kind: KindLink, Text: LabelReadArticle, Href: href})
		}
		n.Children = append(n.Children, article)
	}
	return n
}

func card(it model.ResultItem, index int) *Node {
	c := &Node{Kind: KindCard, ID: fmt.Sprintf("card-%d", index)}

	if it.IsAdvertiser {
		c.Children = append(c.Children, &Node{Kind: KindBadge, Text: LabelAdvertiser})
	}
	c.Children = append(c.Children,
		&Node{Kind: KindTitle, Text: it.Name},
		&Node{Kind: KindDescription, Text: it.Description},
	)

	if it.HasDetails() {
		details := &Node{Kind: KindDetails}
		for _, d := range []struct{ label, value string }{
			{LabelContact, it.Contact},
			{LabelPrice, it.Price},
			{LabelLocation, it.Location},
		} {
			if d.value != "" {
				details.Children = append(details.Children, &Node{Kind: KindDetail, Label: d.label, Text: d.value})
			}
		}
		c.Children = append(c.Children, details)
	}

	if href := SafeURL(it.DetailURL); href != "" {
		c.Children = append(c.Children, &Node{Kind: KindLink, Text: LabelViewListing, Href: href})
	}

	if len(it.Benefits) > 0 {
		benefits := &Node{Kind: KindBenefits, Label: LabelBenefits}
		for _, b := range it.Benefits {
			benefits.Children = append(benefits.Children, &Node{Kind: KindBenefit, Text: b})
		}
		c.Children = append(c.Children, benefits)
	}

	if len(it.FAQ) > 0 {
		faq := &Node{Kind: KindFAQ, ID: fmt.Sprintf("faq-%d", index), Label: LabelFAQ}
		for _, f := range it.FAQ {
			faq.Children = append(faq.Children, &Node{Kind: KindFAQItem, Label: f.Question, Text: f.Answer})
		}
		c.Children = append(c.Children, faq)
	}

	return c
}
