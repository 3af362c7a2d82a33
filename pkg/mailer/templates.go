package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// PasswordResetData holds data for the password reset email.
type PasswordResetData struct {
	Name      string
	ResetLink string
	ExpiresIn string
}

// BuildPasswordResetEmail renders the password reset message.
func BuildPasswordResetEmail(to string, data PasswordResetData) Email {
	return Email{
		To:       to,
		Subject:  "Restablecer contraseña - Centro Lúdico",
		TextBody: buildResetText(data),
		HTMLBody: renderTemplate(resetHTMLTemplate, data),
	}
}

// ParentInviteData holds data for the parent invitation email.
type ParentInviteData struct {
	ParentName  string
	StudentName string
	InviteLink  string
	ExpiresIn   string
}

// BuildParentInviteEmail renders the parent invitation message.
func BuildParentInviteEmail(to string, data ParentInviteData) Email {
	return Email{
		To:       to,
		Subject:  "Invitación - Centro Lúdico",
		TextBody: buildInviteText(data),
		HTMLBody: renderTemplate(inviteHTMLTemplate, data),
	}
}

func buildResetText(data PasswordResetData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hola %s,\n\n", data.Name)
	buf.WriteString("Recibimos una solicitud para restablecer tu contraseña.\n")
	buf.WriteString("Abre este enlace para continuar:\n")
	buf.WriteString(data.ResetLink + "\n\n")
	fmt.Fprintf(&buf, "El enlace expira en %s.\n\n", data.ExpiresIn)
	buf.WriteString("Si no solicitaste el cambio puedes ignorar este mensaje.\n")
	return buf.String()
}

func buildInviteText(data ParentInviteData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hola %s,\n\n", data.ParentName)
	fmt.Fprintf(&buf, "Has sido invitado al Centro Lúdico como acudiente de %s.\n", data.StudentName)
	buf.WriteString("Completa tu registro aquí:\n")
	buf.WriteString(data.InviteLink + "\n\n")
	fmt.Fprintf(&buf, "La invitación expira en %s.\n", data.ExpiresIn)
	return buf.String()
}

func renderTemplate(tmpl string, data interface{}) string {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.String()
}

const resetHTMLTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Centro Lúdico</h2>
  <p>Hola {{.Name}},</p>
  <p>Recibimos una solicitud para restablecer tu contraseña.</p>
  <p><a href="{{.ResetLink}}" style="background: #4f46e5; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Restablecer contraseña</a></p>
  <p>El enlace expira en {{.ExpiresIn}}. Si no solicitaste el cambio puedes ignorar este mensaje.</p>
</body>
</html>`

const inviteHTMLTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Centro Lúdico</h2>
  <p>Hola {{.ParentName}},</p>
  <p>Has sido invitado como acudiente de <strong>{{.StudentName}}</strong>.</p>
  <p><a href="{{.InviteLink}}" style="background: #4f46e5; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Completar registro</a></p>
  <p>La invitación expira en {{.ExpiresIn}}.</p>
</body>
</html>`
