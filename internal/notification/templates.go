package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl"))
)

var subjects = map[string]string{
	KindEmailVerification:  "Verify Your Email - %s",
	KindDeviceVerification: "New Device Login - %s",
}

type templateData struct {
	AppName string
	Code    string
	Minutes int
}

// Rendered is a message ready to hand to a transport.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Render builds the subject and both bodies for message.
func Render(appName string, message Message) (Rendered, error) {
	subject, ok := subjects[message.Kind]
	if !ok {
		return Rendered{}, fmt.Errorf("notification: unknown kind %q", message.Kind)
	}
	data := templateData{AppName: appName, Code: message.Code, Minutes: int(message.ExpiresIn.Minutes())}

	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, message.Kind+".html.tmpl", data); err != nil {
		return Rendered{}, fmt.Errorf("render html: %w", err)
	}
	if err := textTemplates.ExecuteTemplate(&text, message.Kind+".txt.tmpl", data); err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}
	return Rendered{Subject: fmt.Sprintf(subject, appName), HTML: html.String(), Text: text.String()}, nil
}
