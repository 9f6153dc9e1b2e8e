package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
	Agent    string `json:"agent,omitempty"`
}

// AdvertisingRequest is the body of POST /api/bot/advertising.
type AdvertisingRequest struct {
	Message        string `json:"message"`
	Language       string `json:"language"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// QueryResponse is the primary Q&A bot response. Field names follow the backend.
type QueryResponse struct {
	Respuesta  LooseString   `json:"respuesta"`
	Tips       LooseStrings  `json:"tips"`
	Guias      []GuideWire   `json:"guias"`
	Articulos  []ArticleWire `json:"articulos"`
	JSON       []ItemWire    `json:"json"`
	HasMore    bool          `json:"has_more"`
	NextOffset *int          `json:"next_offset"`
	Agente     LooseString   `json:"agente"`
	Categoria  LooseString   `json:"categoria"`
	Confidence *float64      `json:"confidence"`
}

// GuideWire is a guide as sent by the backend.
type GuideWire struct {
	Titulo    LooseString `json:"titulo"`
	Resumen   LooseString `json:"resumen"`
	URL       LooseString `json:"url"`
	Categoria LooseString `json:"categoria"`
}

// ArticleWire is an RSS article as sent by the backend.
type ArticleWire struct {
	Title       LooseString `json:"title"`
	Description LooseString `json:"description"`
	URL         LooseString `json:"url"`
}

// ItemWire is a directory listing as sent by the backend.
type ItemWire struct {
	Nombre       LooseString  `json:"nombre"`
	Descripcion  LooseString  `json:"descripcion"`
	EsAnunciante bool         `json:"es_anunciante"`
	Contacto     Contact      `json:"contacto"`
	Precio       LooseString  `json:"precio"`
	Ubicacion    LooseString  `json:"ubicacion"`
	URL          LooseString  `json:"url"`
	Beneficios   LooseStrings `json:"beneficios"`
	FAQ          []FAQWire    `json:"faq"`
}

// FAQWire accepts the short ({q,a}), English and Spanish spellings.
type FAQWire struct {
	Q         LooseString `json:"q"`
	A         LooseString `json:"a"`
	Question  LooseString `json:"question"`
	Answer    LooseString `json:"answer"`
	Pregunta  LooseString `json:"pregunta"`
	Respuesta LooseString `json:"respuesta"`
}

// Pair returns the question and answer, whichever spelling carried them.
func (f FAQWire) Pair() (string, string) {
	return firstNonEmpty(f.Q, f.Question, f.Pregunta), firstNonEmpty(f.A, f.Answer, f.Respuesta)
}

// AdvertisingResponse is one step of the advertising bot dialogue.
type AdvertisingResponse struct {
	Type         string               `json:"type,omitempty"`
	Message      LooseString          `json:"message"`
	Respuesta    LooseString          `json:"respuesta,omitempty"`
	QuickReplies []QuickReply         `json:"quick_replies,omitempty"`
	Next         *AdvertisingResponse `json:"next,omitempty"`
	Plans        []Plan               `json:"plans,omitempty"`
	Testimonials []Testimonial        `json:"testimonials,omitempty"`
}

// QuickReply is a suggested follow-up offered by the advertising bot. The
// bot sends either {text, action} or {title, payload}.
type QuickReply struct {
	Text    string `json:"text,omitempty"`
	Action  string `json:"action,omitempty"`
	Title   string `json:"title,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Label returns the button text, whichever spelling carried it.
func (q QuickReply) Label() string {
	if q.Text != "" {
		return q.Text
	}
	return q.Title
}

// Value returns the action sent back when the button is pressed.
func (q QuickReply) Value() string {
	if q.Action != "" {
		return q.Action
	}
	return q.Payload
}

// Plan is an advertising plan card.
type Plan struct {
	ID         string       `json:"id"`
	Name       LooseString  `json:"nombre"`
	Price      LooseString  `json:"precio"`
	Duration   LooseString  `json:"duracion"`
	Benefits   LooseStrings `json:"beneficios"`
	CallToText string       `json:"cta_text"`
}

// Testimonial is a customer quote shown by the advertising bot.
type Testimonial struct {
	Emoji    string      `json:"emoji"`
	Quote    LooseString `json:"testimonial"`
	Author   LooseString `json:"nombre"`
	Business LooseString `json:"negocio"`
}

// RawResponse is a decoded upstream body tagged with the mode that produced it.
// Exactly one of Query and Advertising is set.
type RawResponse struct {
	Mode        Mode
	Query       *QueryResponse
	Advertising *AdvertisingResponse
}

// LooseString decodes strings, numbers and booleans into text; null becomes "".
type LooseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(strings.TrimSpace(v))
	case '{', '[':
		return fmt.Errorf("expected a scalar, got %s", data[:1])
	default:
		*s = LooseString(data)
	}
	return nil
}

// String returns the text.
func (s LooseString) String() string {
	return string(s)
}

// LooseStrings decodes a list of scalars or a single scalar. Empty values are dropped.
type LooseStrings []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *LooseStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] != '[' {
		var one LooseString
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one != "" {
			*l = LooseStrings{one.String()}
		}
		return nil
	}
	var many []LooseString
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	out := make(LooseStrings, 0, len(many))
	for _, v := range many {
		if v != "" {
			out = append(out, v.String())
		}
	}
	*l = out
	return nil
}

// Contact is either free text or an object with phone, email and web fields.
type Contact string

type contactObject struct {
	Telefono LooseString `json:"telefono"`
	Phone    LooseString `json:"phone"`
	Email    LooseString `json:"email"`
	Web      LooseString `json:"web"`
	Website  LooseString `json:"website"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Contact) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj contactObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		var parts []string
		if tel := firstNonEmpty(obj.Telefono, obj.Phone); tel != "" {
			parts = append(parts, "Tel: "+tel)
		}
		if obj.Email != "" {
			parts = append(parts, "Email: "+obj.Email.String())
		}
		if web := firstNonEmpty(obj.Web, obj.Website); web != "" {
			parts = append(parts, "Web: "+web)
		}
		*c = Contact(strings.Join(parts, ", "))
		return nil
	}
	var s LooseString
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Contact(s)
	return nil
}

func firstNonEmpty(values ...LooseString) string {
	for _, v := range values {
		if v != "" {
			return v.String()
		}
	}
	return ""
}
