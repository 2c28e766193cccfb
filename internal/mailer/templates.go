package mailer

import (
	"fmt"
	"strings"
	"text/template"
)

type tmplPair struct {
	subject string
	text    *template.Template
	html    *template.Template
}

// TemplateRenderer renders the built-in notification templates
type TemplateRenderer struct {
	templates map[string]tmplPair
}

const welcomeText = `Dear {{.name}},

Welcome to the platform! You can now access your account.

Before you get started, please verify your account:
https://{{.domain}}/verify/{{.verifyToken}}
`

const welcomeHTML = `<html><body>
<p>Dear {{.name}},</p>
<p>Welcome to the platform! You can now access your account.</p>
<p><a href="https://{{.domain}}/verify/{{.verifyToken}}">Verify your account</a></p>
</body></html>
`

const passwordResetText = `Hello {{.name}},

A password reset was requested for your account. Follow the link below to
choose a new password:
https://{{.domain}}/reset/{{.resetToken}}

If you did not request this, you can ignore this message.
`

const passwordResetHTML = `<html><body>
<p>Hello {{.name}},</p>
<p>A password reset was requested for your account.</p>
<p><a href="https://{{.domain}}/reset/{{.resetToken}}">Choose a new password</a></p>
<p>If you did not request this, you can ignore this message.</p>
</body></html>
`

// NewTemplateRenderer builds the renderer for the built-in templates
func NewTemplateRenderer() (*TemplateRenderer, error) {
	r := &TemplateRenderer{templates: make(map[string]tmplPair)}
	for _, def := range []struct {
		name    string
		subject string
		text    string
		html    string
	}{
		{TemplateWelcome, "Welcome!", welcomeText, welcomeHTML},
		{TemplatePasswordReset, "Your password reset link", passwordResetText, passwordResetHTML},
	} {
		text, err := template.New(def.name + ".text").Parse(def.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s text template: %w", def.name, err)
		}
		html, err := template.New(def.name + ".html").Parse(def.html)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s html template: %w", def.name, err)
		}
		r.templates[def.name] = tmplPair{subject: def.subject, text: text, html: html}
	}
	return r, nil
}

// Render fills a named template with its variables
func (r *TemplateRenderer) Render(name string, vars map[string]string) (*Payload, error) {
	pair, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", name)
	}

	var text, html strings.Builder
	if err := pair.text.Execute(&text, vars); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	if err := pair.html.Execute(&html, vars); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}

	return &Payload{
		Subject: pair.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
