package notification

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// sendEmail delivers a plain-text email over SMTP. Failures are logged and
// swallowed: email is best-effort and must never block a booking or payment
// flow.
func (h *Handler) sendEmail(to, subject, body string) {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")

	if smtpHost == "" {
		log.Printf("notification: SMTP not configured, skipping email to %s", to)
		return
	}

	port, err := strconv.Atoi(smtpPort)
	if err != nil {
		log.Printf("notification: invalid SMTP port %q: %v", smtpPort, err)
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)
	if err := d.DialAndSend(m); err != nil {
		log.Printf("notification: email to %s failed: %v", to, err)
	}
}
