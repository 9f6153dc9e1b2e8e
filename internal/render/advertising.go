package render

import (
	"fmt"

	"github.com/capitalize-ai/expat-assistant/internal/model"
)

// Turn renders one bubble of the advertising dialogue: the message, then
// plans, testimonials and quick replies, each only when present.
func Turn(t model.AdvertisingTurn) *Node {
	entry := &Node{Kind: KindEntry}

	if t.Result.FriendlyText != "" {
		entry.Children = append(entry.Children, &Node{Kind: KindFriendlyText, Text: t.Result.FriendlyText})
	}
	if len(t.Plans) > 0 {
		entry.Children = append(entry.Children, plans(t.Plans))
	}
	if len(t.Testimonials) > 0 {
		entry.Children = append(entry.Children, testimonials(t.Testimonials))
	}
	if len(t.QuickReplies) > 0 {
		entry.Children = append(entry.Children, quickReplies(t.QuickReplies))
	}

	if len(entry.Children) == 0 {
		entry.Children = append(entry.Children, &Node{Kind: KindFallback, Text: MessageFallback})
	}
	return entry
}

func plans(list []model.Plan) *Node {
	n := &Node{Kind: KindPlans, Label: LabelPlans}
	for i, p := range list {
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("plan-%d", i)
		}
		plan := &Node{Kind: KindPlan, ID: id, Label: p.Name.String()}
		if price := p.Price.String(); price != "" {
			plan.Children = append(plan.Children, &Node{Kind: KindDetail, Label: LabelPrice, Text: price})
		}
		if d := p.Duration.String(); d != "" {
			plan.Children = append(plan.Children, &Node{Kind: KindDetail, Label: LabelDuration, Text: d})
		}
		if len(p.Benefits) > 0 {
			benefits := &Node{Kind: KindBenefits, Label: LabelBenefits}
			for _, b := range p.Benefits {
				benefits.Children = append(benefits.Children, &Node{Kind: KindBenefit, Text: b})
			}
			plan.Children = append(plan.Children, benefits)
		}
		if p.CallToText != "" {
			plan.Children = append(plan.Children, &Node{Kind: KindQuickReply, ID: id, Text: p.CallToText})
		}
		n.Children = append(n.Children, plan)
	}
	return n
}

func testimonials(list []model.Testimonial) *Node {
	n := &Node{Kind: KindTestimonials, Label: LabelTestimonials}
	for _, t := range list {
		author := t.Author.String()
		if b := t.Business.String(); b != "" {
			if author != "" {
				author += ", "
			}
			author += b
		}
		label := author
		if t.Emoji != "" {
			label = t.Emoji + " " + author
		}
		n.Children = append(n.Children, &Node{Kind: KindTestimonial, Label: label, Text: t.Quote.String()})
	}
	return n
}

func quickReplies(list []model.QuickReply) *Node {
	n := &Node{Kind: KindQuickReplies}
	for _, q := range list {
		n.Children = append(n.Children, &Node{Kind: KindQuickReply, ID: q.Value(), Text: q.Label()})
	}
	return n
}
