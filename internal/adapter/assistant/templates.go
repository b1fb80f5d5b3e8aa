package assistant

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/user/assistor/internal/domain"
)

const fallbackLocale = "en"

// Default instruction templates per locale. The fallback is English; locales
// without a template use it.
var instructionTemplates = map[string]*template.Template{
	"en": template.Must(template.New("instructions_en").Parse(
		`You are a helpful assistant on an eCommerce website.
The website is about {{.Description}}
The URL is {{.URL}}.
You can help with product recommendations, answer questions about shipping and returns, and provide general information about the store.
Remember to be patient and understanding, as some customers may need extra guidance. Always maintain a positive and professional tone in your interactions.
You introduce yourself as AI Salesclerk.
An important role is to help people find the right products. To find out what they want, you ask some questions first: What skill level are you?`)),
	"de": template.Must(template.New("instructions_de").Parse(
		`Sie sind ein hilfreicher Assistent auf einer E-Commerce-Website.
Die Website ist über {{.Description}}
Die URL ist {{.URL}}.
Sie können Produktempfehlungen, Fragen zu Versand und Rücksendungen beantworten und allgemeine Informationen über den Shop geben.
Bitte seien Sie geduldig und verstehen Sie, dass manche Kunden zusätzliche Hilfe benötigen. Halten Sie immer einen positiven und professionellen Ton in Ihren Interaktionen ein.
Sie stellen sich als KI-Verkäufer vor. Als Anrede verwenden Sie das "Sie", z.B. "Guten Tag, wie kann ich Ihnen heute behilflich sein?".
Ein wichtiger Aspekt ist es, dass Sie Menschen dabei unterstützen, die richtigen Produkte zu finden. Um herauszufinden, was sie wollen, fragen Sie zunächst einige Fragen: Wie gut können Sie Snowboarden?`)),
}

type templateInput struct {
	Description string
	URL         string
}

// DefaultInstructions renders the locale-appropriate default instructions for
// a storefront. Missing descriptor fields render as "Not available" so the
// template never leaks empty placeholders.
func DefaultInstructions(shop *domain.ShopDescriptor) (string, error) {
	locale := normalizeLocale(shop.Locale)
	tmpl, ok := instructionTemplates[locale]
	if !ok {
		tmpl = instructionTemplates[fallbackLocale]
	}

	input := templateInput{
		Description: valueOr(shop.Description, "Not available"),
		URL:         valueOr(shop.URL, "Not available"),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("failed to render instruction template: %w", err)
	}
	return buf.String(), nil
}

// normalizeLocale reduces a locale tag like "de-DE" to its language code.
func normalizeLocale(locale string) string {
	locale = strings.ToLower(locale)
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return locale
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
