package notifications

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	activationTmpl = template.Must(template.New("activation").Parse(
		`<h1>Hello {{.Name}}</h1>` +
			`<p>Please activate your account by <a href="{{.Link}}">clicking the following link</a>.</p>` +
			`<p>The link expires in {{.ExpiresIn}}.</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`<h1>Hello {{.Name}}</h1>` +
			`<p>Click <a href="{{.Link}}">here to reset your password</a>.</p>` +
			`<p>The link expires in {{.ExpiresIn}}. If you did not ask for a reset you can ignore this e-mail.</p>`))

	namePolicy = bluemonday.StrictPolicy()
)

type templateData struct {
	Name      string
	Link      string
	ExpiresIn string
}

// Templates renders the transactional mails. BaseURL is the storefront
// client that owns the activation and reset pages.
type Templates struct {
	BaseURL string
}

func (t Templates) Activation(to, firstName, token, expiresIn string) (Message, error) {
	body, err := render(activationTmpl, templateData{
		Name:      cleanName(firstName),
		Link:      t.link("/users/activate/", token),
		ExpiresIn: expiresIn,
	})
	if err != nil {
		return Message{}, err
	}

	return Message{To: to, Subject: "Activate Your Account", HTML: body}, nil
}

func (t Templates) PasswordReset(to, firstName, token, expiresIn string) (Message, error) {
	body, err := render(resetTmpl, templateData{
		Name:      cleanName(firstName),
		Link:      t.link("/users/reset-password/", token),
		ExpiresIn: expiresIn,
	})
	if err != nil {
		return Message{}, err
	}

	return Message{To: to, Subject: "Reset Password Email", HTML: body}, nil
}

func (t Templates) link(path, token string) string {
	return strings.TrimRight(t.BaseURL, "/") + path + url.PathEscape(token)
}

// names are user supplied; strip markup before they reach html/template
func cleanName(name string) string {
	// bluemonday escapes entities; undo that so html/template escapes exactly once
	name = strings.TrimSpace(html.UnescapeString(namePolicy.Sanitize(name)))
	if name == "" {
		return "there"
	}
	return name
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
