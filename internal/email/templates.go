package email

import (
	"fmt"
	"html"
	"strings"
)

type Kind string

const (
	KindOfferSent    Kind = "OFFER_SENT"
	KindInfoRequest  Kind = "INFO_REQUEST"
	KindContractSent Kind = "CONTRACT_SENT"
	KindRejected     Kind = "REJECTED"
	KindMessage      Kind = "MESSAGE"
	KindGeneric      Kind = "GENERIC"
)

type template struct {
	subject string
	heading string
	body    string
	accent  string
	noLink  bool
}

const (
	accentGreen = "#059669"
	accentRed   = "#dc2626"
)

var templates = map[Kind]template{
	KindOfferSent: {
		subject: "Uusi tarjous saatavilla!",
		heading: "Uusi tarjous{{companyInfo}}",
		body: "<p>Olet saanut uuden rahoitustarjouksen Juuri Rahoituksen kautta.</p>" +
			"<p>Kirjaudu portaaliin nähdäksesi tarjouksen tiedot ja vastataksesi siihen.</p>",
	},
	KindInfoRequest: {
		subject: "Lisätietopyyntö hakemukseesi",
		heading: "Lisätietopyyntö{{companyInfo}}",
		body: "<p>Hakemukseesi liittyen on pyydetty lisätietoja tai dokumentteja.</p>" +
			"{{customBody}}" +
			"<p>Kirjaudu portaaliin nähdäksesi pyynnön ja vastataksesi siihen.</p>",
	},
	KindContractSent: {
		subject: "Sopimus allekirjoitettavana",
		heading: "Sopimus allekirjoitettavaksi{{companyInfo}}",
		body: "<p>Rahoitussopimus on valmis allekirjoitettavaksi.</p>" +
			"<p>Kirjaudu portaaliin allekirjoittaaksesi sopimuksen.</p>",
	},
	KindRejected: {
		subject: "Hakemuksen tila päivitetty",
		heading: "Rahoituspäätös{{companyInfo}}",
		body: "<p>Valitettavasti emme tällä kertaa voi tarjota rahoitusta hakemukseesi.</p>" +
			"<p>Rahoituspäätös perustuu kokonaisarvioon, joka huomioi useita tekijöitä. " +
			"Mikäli tilanteesi muuttuu, olet tervetullut hakemaan uudelleen.</p>" +
			"<p>Kiitos mielenkiinnostasi Juuri Rahoitusta kohtaan.</p>",
		accent: accentRed,
		noLink: true,
	},
	KindMessage: {
		subject: "Uusi viesti hakemukseesi liittyen",
		heading: "Uusi viesti{{companyInfo}}",
		body: "<p>Olet saanut uuden viestin hakemukseesi liittyen.</p>" +
			"{{customBody}}" +
			"<p>Kirjaudu portaaliin nähdäksesi viestin.</p>",
	},
	KindGeneric: {
		subject: "Ilmoitus Juuri Rahoitukselta",
		body:    "<p>Sinulle on uusi ilmoitus Juuri Rahoituksesta.</p>{{customBody}}",
	},
}

const layout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">` +
	`{{headingBlock}}<p>{{greeting}}</p>{{content}}` +
	`<p style="color: #64748b; font-size: 14px;">{{referenceLine}}</p>` +
	`{{button}}` +
	`<p style="margin-top: 24px; color: #666;">Ystävällisin terveisin,<br>Juuri Rahoitus</p></div>`

// Data is the substitution input for a template.
type Data struct {
	CustomerName    string
	CompanyName     string
	ReferenceNumber string
	Link            string
	// CustomBody is plain text shown by kinds that carry a free-text part.
	CustomBody string
	// Subject overrides the kind's default subject line.
	Subject string
}

// Render returns subject and HTML body for kind. Unknown kinds fall back to
// the generic template.
func Render(kind Kind, data Data) (string, string) {
	tpl, ok := templates[kind]
	if !ok {
		tpl = templates[KindGeneric]
	}
	accent := tpl.accent
	if accent == "" {
		accent = accentGreen
	}

	vars := map[string]interface{}{
		"greeting":      "Hei,",
		"companyInfo":   "",
		"customBody":    "",
		"referenceLine": "",
		"button":        "",
		"headingBlock":  "",
	}
	if data.CustomerName != "" {
		vars["greeting"] = fmt.Sprintf("Hei %s,", html.EscapeString(data.CustomerName))
	}
	if data.CompanyName != "" {
		vars["companyInfo"] = " yrityksellenne " + html.EscapeString(data.CompanyName)
	}
	if data.CustomBody != "" {
		vars["customBody"] = "<p>" + strings.ReplaceAll(html.EscapeString(data.CustomBody), "\n", "<br>") + "</p>"
	}
	if data.ReferenceNumber != "" {
		vars["referenceLine"] = "Hakemusnumero: <strong>" + html.EscapeString(data.ReferenceNumber) + "</strong>"
	}
	if !tpl.noLink && data.Link != "" {
		vars["button"] = fmt.Sprintf(`<a href="%s" style="display: inline-block; background: %s; color: white; `+
			`padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 16px;">Kirjaudu portaaliin</a>`,
			html.EscapeString(data.Link), accent)
	}
	if tpl.heading != "" {
		vars["headingBlock"] = fmt.Sprintf(`<h2 style="color: %s;">%s</h2>`, accent, renderTemplate(tpl.heading, vars))
	}
	vars["content"] = renderTemplate(tpl.body, vars)

	subject := tpl.subject
	if data.Subject != "" {
		subject = data.Subject
	}
	if data.ReferenceNumber != "" {
		subject = fmt.Sprintf("%s - %s", subject, data.ReferenceNumber)
	}

	return subject, renderTemplate(layout, vars)
}

// renderTemplate substitutes {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
