// Package normalize maps the backend response shapes onto model.QueryResult.
package normalize

import (
	"github.com/capitalize-ai/expat-assistant/internal/model"
)

// Normalize converts a raw upstream response into the canonical model.
// Sequences in the result are never nil.
func Normalize(raw *model.RawResponse) *model.QueryResult {
	if raw == nil {
		return empty()
	}
	if raw.Mode == model.ModeAdvertising {
		return Advertising(raw.Advertising)
	}
	return Query(raw.Query)
}

// Query normalizes a primary Q&A bot response.
func Query(resp *model.QueryResponse) *model.QueryResult {
	result := empty()
	if resp == nil {
		return result
	}

	result.FriendlyText = resp.Respuesta.String()
	result.Tips = append(result.Tips, resp.Tips...)

	for _, g := range resp.Guias {
		result.Guides = append(result.Guides, model.Guide{
			Title:   g.Titulo.String(),
			Summary: g.Resumen.String(),
			URL:     g.URL.String(),
		})
	}

	for _, a := range resp.Articulos {
		result.Articles = append(result.Articles, model.Article{
			Title:       a.Title.String(),
			Description: a.Description.String(),
			URL:         a.URL.String(),
		})
	}

	for _, it := range resp.JSON {
		result.Items = append(result.Items, item(it))
	}

	result.HasMore = resp.HasMore
	if resp.NextOffset != nil {
		result.NextOffset = *resp.NextOffset
	}
	result.Agent = resp.Agente.String()
	result.Category = resp.Categoria.String()
	if resp.Confidence != nil {
		result.Confidence = *resp.Confidence
	}

	return result
}

// Advertising keeps only the message of an advertising bot step. Plans,
// testimonials and quick replies travel through Turns instead.
func Advertising(resp *model.AdvertisingResponse) *model.QueryResult {
	result := empty()
	if resp == nil {
		return result
	}
	result.FriendlyText = resp.Message.String()
	if result.FriendlyText == "" {
		result.FriendlyText = resp.Respuesta.String()
	}
	return result
}

// Turns flattens the "next" chain of an advertising response into the
// ordered bubbles the client displays one after another.
func Turns(resp *model.AdvertisingResponse) []model.AdvertisingTurn {
	var turns []model.AdvertisingTurn
	for step := resp; step != nil; step = step.Next {
		turns = append(turns, model.AdvertisingTurn{
			Result:       *Advertising(step),
			Plans:        step.Plans,
			Testimonials: step.Testimonials,
			QuickReplies: step.QuickReplies,
		})
	}
	return turns
}

func item(it model.ItemWire) model.ResultItem {
	out := model.ResultItem{
		Name:         it.Nombre.String(),
		Description:  it.Descripcion.String(),
		IsAdvertiser: it.EsAnunciante,
		Contact:      string(it.Contacto),
		Price:        it.Precio.String(),
		Location:     it.Ubicacion.String(),
		DetailURL:    it.URL.String(),
		Benefits:     append([]string{}, it.Beneficios...),
		FAQ:          []model.FAQ{},
	}
	for _, f := range it.FAQ {
		q, a := f.Pair()
		if q == "" && a == "" {
			continue
		}
		out.FAQ = append(out.FAQ, model.FAQ{Question: q, Answer: a})
	}
	return out
}

func empty() *model.QueryResult {
	return &model.QueryResult{
		Tips:     []string{},
		Guides:   []model.Guide{},
		Articles: []model.Article{},
		Items:    []model.ResultItem{},
	}
}
