package notification

import (
	"bytes"
	"strings"
	"text/template"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

type templateData struct {
	Name string
	URL  string
}

var (
	resetTemplate = template.Must(template.New("reset").Parse(`Hello {{.Name}},

You are receiving this email because a password reset was requested for your account.

Open the link below to choose a new password. The link expires shortly and can be used once.

{{.URL}}

If you did not request this, you can ignore this email.
`))

	verificationTemplate = template.Must(template.New("verification").Parse(`Hello {{.Name}},

Please confirm your email address by opening the link below.

{{.URL}}
`))
)

// Links builds the user-facing URLs that carry single-use tokens.
type Links struct {
	BaseURL string
}

func (l Links) ResetPassword(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/reset-password/" + token
}

func (l Links) VerifyEmail(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/verify-email/" + token
}

func render(tmpl *template.Template, name, url string) (string, error) {
	if name == "" {
		name = "there"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Name: name, URL: url}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func resetMessage(links Links, to, name, token string) (Message, error) {
	body, err := render(resetTemplate, name, links.ResetPassword(token))
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Password reset", Body: body}, nil
}

func verificationMessage(links Links, to, name, token string) (Message, error) {
	body, err := render(verificationTemplate, name, links.VerifyEmail(token))
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Verify your email address", Body: body}, nil
}
