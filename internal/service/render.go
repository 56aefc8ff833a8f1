package service

import (
	"html/template"
	"strings"
	"time"

	"docshare/internal/model"
)

// signedAtLayout matches the fr-FR short date and time shown under each signature.
const signedAtLayout = "02/01/2006 15:04"

var signaturesTmpl = template.Must(template.New("signatures").Parse(
	`<div class="signatures-section">` +
		`<h3>Signatures</h3>` +
		`{{range .}}<div class="signature-block" data-role="{{.Role}}">` +
		`<p class="signature-label">{{.Label}}</p>` +
		`<img class="signature-image" src="{{.Src}}" alt="{{.Label}}">` +
		`<p class="signature-date">Signé le {{.SignedAt}}</p>` +
		`</div>{{end}}` +
		`</div>`,
))

type signatureView struct {
	Role     string
	Label    string
	Src      any
	SignedAt string
}

// renderSignaturesSection renders the appended signatures block in slot order.
func renderSignaturesSection(sigs []model.RenderedSignature, loc *time.Location) (string, error) {
	views := make([]signatureView, 0, len(sigs))
	for _, s := range sigs {
		v := signatureView{
			Role:     string(s.Role),
			Label:    s.Label,
			Src:      s.ImageData,
			SignedAt: s.SignedAt.In(loc).Format(signedAtLayout),
		}
		// html/template rewrites data: URLs to a placeholder unless marked safe.
		if strings.HasPrefix(s.ImageData, "data:image/") {
			v.Src = template.URL(s.ImageData)
		}
		views = append(views, v)
	}

	var b strings.Builder
	if err := signaturesTmpl.Execute(&b, views); err != nil {
		return "", err
	}
	return b.String(), nil
}
