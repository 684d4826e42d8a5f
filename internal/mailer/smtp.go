// Package mailer はOTP確認メールのSMTP送信を提供する。
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/hitoshi/aula/internal/auth"
	"github.com/hitoshi/aula/internal/model"
)

// Config はSMTPメーラーの設定。
type Config struct {
	Host     string // SMTPサーバーアドレス (例: smtp.gmail.com)
	Port     int    // SMTPポート。通常は587 (STARTTLS)
	Username string
	Password string
	From     string // 差出人表示 (例: "Aula <noreply@aula.example.com>")
	UseTLS   bool
}

// SmtpMailer はnet/smtpによるOtpMailerの実装。
type SmtpMailer struct {
	config Config
}

// NewSmtpMailer はSmtpMailerを生成する。ポート未指定時は587を使う。
func NewSmtpMailer(config Config) *SmtpMailer {
	if config.Port == 0 {
		config.Port = 587
	}
	return &SmtpMailer{config: config}
}

// otpEmailTemplate はOTP確認メールの本文テンプレート。
// 表示文言は利用者向けにスペイン語で統一する。
const otpEmailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1 style="font-size: 20px;">{{.Title}}</h1>
    <p>{{.Message}}</p>
    <p style="margin: 24px 0;">
      <a href="{{.VerifyURL}}" style="display: inline-block; padding: 12px 24px; background-color: #2563eb; color: #ffffff; text-decoration: none; border-radius: 4px;">{{.ActionText}}</a>
    </p>
    <p style="color: #666; font-size: 14px;">Si el botón no funciona, copia y pega este enlace en tu navegador:</p>
    <p style="color: #666; font-size: 14px; word-break: break-all;">{{.VerifyURL}}</p>
    <p style="color: #888; font-size: 12px;">Si no solicitaste este correo, puedes ignorarlo.</p>
  </div>
</body>
</html>
`

// otpEmailData はotpEmailTemplateの描画データ。
type otpEmailData struct {
	Title      string
	Message    string
	ActionText string
	VerifyURL  string
}

// SendOtpEmail はOTP種別に応じた確認メールを送信する。
// net/smtpはcontextに未対応のため、送信前にキャンセル済みかのみ確認する。
func (m *SmtpMailer) SendOtpEmail(ctx context.Context, email string, otpType model.OtpType, verifyURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, data := buildOtpEmail(otpType, verifyURL)

	body, err := renderOtpEmail(data)
	if err != nil {
		return fmt.Errorf("failed to render otp email: %w", err)
	}

	return m.send(email, subject, body)
}

// buildOtpEmail はOTP種別ごとの件名とテンプレートデータを組み立てる。
func buildOtpEmail(otpType model.OtpType, verifyURL string) (string, otpEmailData) {
	switch otpType {
	case model.OtpTypeRecovery:
		return "Restablece tu contraseña", otpEmailData{
			Title:      "Restablecer contraseña",
			Message:    "Recibimos una solicitud para restablecer la contraseña de tu cuenta. Haz clic en el botón para continuar.",
			ActionText: "Restablecer contraseña",
			VerifyURL:  verifyURL,
		}
	default:
		return "Confirma tu correo electrónico", otpEmailData{
			Title:      "Confirma tu registro",
			Message:    "Gracias por registrarte. Haz clic en el botón para confirmar tu dirección de correo electrónico.",
			ActionText: "Confirmar correo",
			VerifyURL:  verifyURL,
		}
	}
}

// renderOtpEmail はOTPメール本文をHTMLとして描画する。
func renderOtpEmail(data otpEmailData) (string, error) {
	tmpl, err := template.New("otp_email").Parse(otpEmailTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse otp email template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute otp email template: %w", err)
	}
	return buf.String(), nil
}

// send はSMTP経由でHTMLメールを送信する。
func (m *SmtpMailer) send(to, subject, body string) error {
	if m.config.From == "" {
		return fmt.Errorf("mailer from address is not configured")
	}
	if to == "" {
		return fmt.Errorf("empty recipient address")
	}

	var sb strings.Builder
	sb.WriteString("From: " + m.config.From + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	smtpAuth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)

	if m.config.UseTLS || m.config.Port == 587 {
		return m.sendWithStartTLS(addr, smtpAuth, to, []byte(sb.String()))
	}
	return smtp.SendMail(addr, smtpAuth, m.config.From, []string{to}, []byte(sb.String()))
}

// sendWithStartTLS はSTARTTLSでアップグレードしてから送信する。
func (m *SmtpMailer) sendWithStartTLS(addr string, smtpAuth smtp.Auth, to string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
		return fmt.Errorf("failed to start tls: %w", err)
	}
	if err := client.Auth(smtpAuth); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}
	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// compile-time interface check
var _ auth.OtpMailer = (*SmtpMailer)(nil)
