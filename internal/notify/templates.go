package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/hundredminds/backend/pkg/mail"
)

type emailTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const layoutHTML = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<p>Hi {{.Name}},</p>
{{template "content" .}}
<p>The {{.App}} team</p>
</body></html>`

var templateSources = map[Kind]struct {
	subject string
	text    string
	html    string
}{
	KindOTP: {
		subject: "Your {{.App}} sign-in code",
		text: `Hi {{.Name}},

Your sign-in code is {{.Data.code}}. It expires in {{.Data.expires_in}}.

If you did not try to sign in, please change your password.`,
		html: `<p>Your sign-in code is <strong>{{.Data.code}}</strong>. It expires in {{.Data.expires_in}}.</p>
<p>If you did not try to sign in, please change your password.</p>`,
	},
	KindPasswordReset: {
		subject: "Reset your {{.App}} password",
		text: `Hi {{.Name}},

Forgot your password? Use the link below to choose a new one. It is valid for {{.Data.expires_in}}.

{{.Data.url}}

If you did not request a reset, ignore this email.`,
		html: `<p>Forgot your password? Use the link below to choose a new one. It is valid for {{.Data.expires_in}}.</p>
<p><a href="{{.Data.url}}">Reset password</a></p>
<p>If you did not request a reset, ignore this email.</p>`,
	},
	KindTeamInvite: {
		subject: "{{.Data.inviter}} invited you to join {{.Data.team}}",
		text: `Hi {{.Name}},

{{.Data.inviter}} invited you to join the team {{.Data.team}} on {{.App}}.
Accept the invitation within {{.Data.expires_in}}:

{{.Data.url}}`,
		html: `<p>{{.Data.inviter}} invited you to join the team <strong>{{.Data.team}}</strong> on {{.App}}.</p>
<p><a href="{{.Data.url}}">Join {{.Data.team}}</a> (valid for {{.Data.expires_in}})</p>`,
	},
	KindTeamInviteSuccess: {
		subject: "{{.Data.member}} joined {{.Data.team}}",
		text: `Hi {{.Name}},

{{.Data.member}} accepted your invitation and is now a member of {{.Data.team}}.`,
		html: `<p>{{.Data.member}} accepted your invitation and is now a member of <strong>{{.Data.team}}</strong>.</p>`,
	},
	KindMemberRemoved: {
		subject: "You were removed from {{.Data.team}}",
		text: `Hi {{.Name}},

You are no longer a member of the team {{.Data.team}} on {{.App}}.`,
		html: `<p>You are no longer a member of the team <strong>{{.Data.team}}</strong> on {{.App}}.</p>`,
	},
	KindWelcome: {
		subject: "Welcome to {{.App}}",
		text: `Hi {{.Name}},

Welcome to {{.App}}! Your account {{.Data.username}} is ready.`,
		html: `<p>Welcome to {{.App}}! Your account <strong>{{.Data.username}}</strong> is ready.</p>`,
	},
}

// Renderer turns notifications into email messages.
type Renderer struct {
	from      string
	app       string
	templates map[Kind]emailTemplate
}

type templateData struct {
	App  string
	Name string
	Data map[string]string
}

// NewRenderer parses the built-in templates.
func NewRenderer(from, appName string) (*Renderer, error) {
	if strings.TrimSpace(appName) == "" {
		appName = "HundredMinds"
	}

	templates := make(map[Kind]emailTemplate, len(templateSources))
	for kind, src := range templateSources {
		text, err := texttemplate.New(string(kind)).Option("missingkey=zero").Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("notify: parse %s text template: %w", kind, err)
		}
		html, err := htmltemplate.New(string(kind)).Option("missingkey=zero").Parse(layoutHTML)
		if err != nil {
			return nil, fmt.Errorf("notify: parse layout: %w", err)
		}
		if _, err := html.New("content").Parse(src.html); err != nil {
			return nil, fmt.Errorf("notify: parse %s html template: %w", kind, err)
		}
		templates[kind] = emailTemplate{subject: src.subject, text: text, html: html}
	}

	return &Renderer{from: from, app: appName, templates: templates}, nil
}

// Render builds the message for n.
func (r *Renderer) Render(n Notification) (mail.Message, error) {
	tpl, ok := r.templates[n.Kind]
	if !ok {
		return mail.Message{}, fmt.Errorf("notify: unknown notification kind %q", n.Kind)
	}

	data := templateData{App: r.app, Name: n.Name, Data: n.Data}
	if data.Name == "" {
		data.Name = "there"
	}

	subject, err := texttemplate.New("subject").Option("missingkey=zero").Parse(tpl.subject)
	if err != nil {
		return mail.Message{}, fmt.Errorf("notify: parse %s subject: %w", n.Kind, err)
	}

	var subjectBuf, textBuf, htmlBuf bytes.Buffer
	if err := subject.Execute(&subjectBuf, data); err != nil {
		return mail.Message{}, fmt.Errorf("notify: render %s subject: %w", n.Kind, err)
	}
	if err := tpl.text.Execute(&textBuf, data); err != nil {
		return mail.Message{}, fmt.Errorf("notify: render %s text: %w", n.Kind, err)
	}
	if err := tpl.html.Execute(&htmlBuf, data); err != nil {
		return mail.Message{}, fmt.Errorf("notify: render %s html: %w", n.Kind, err)
	}

	return mail.Message{
		From:     r.from,
		To:       []string{n.To},
		Subject:  strings.TrimSpace(subjectBuf.String()),
		Body:     textBuf.String(),
		HTMLBody: htmlBuf.String(),
	}, nil
}
