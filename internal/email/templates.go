package email

import (
	"fmt"
	"strings"
)

// NotificationType identifies the lifecycle event an email is about.
type NotificationType string

const (
	NotificationItemExpired    NotificationType = "item_expired"
	NotificationReportAck      NotificationType = "report_ack"
	NotificationNewMessage     NotificationType = "new_message"
	NotificationRatingReceived NotificationType = "rating_received"
)

// BuildMessage assembles a full RFC-style raw message (headers + body) for a
// plain-text notification email.
func BuildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ItemExpiredEmail returns subject and body telling an owner their item's
// pickup deadline passed and the listing was marked expired.
func ItemExpiredEmail(appName, itemTitle string) (string, string) {
	subject := fmt.Sprintf("Your item %q has expired", itemTitle)
	body := fmt.Sprintf(
		"Hi,\n\nThe pickup deadline for your item %q has passed, so it is no longer shown as available on %s.\n\nYou can edit the item and set a new deadline to re-list it.\n\n%s",
		itemTitle, appName, appName)
	return subject, body
}

// ReportAckEmail returns subject and body acknowledging a filed abuse report.
func ReportAckEmail(appName, category string) (string, string) {
	subject := "We received your report"
	body := fmt.Sprintf(
		"Hi,\n\nThanks for your report (%s). The %s team will review it and take action where needed.\n\n%s",
		category, appName, appName)
	return subject, body
}

// NewMessageEmail returns subject and body notifying a user about an unread message.
func NewMessageEmail(appName, itemTitle string) (string, string) {
	subject := "You have a new message"
	body := fmt.Sprintf(
		"Hi,\n\nYou have a new message about %q. Log in to %s to read and reply.\n\n%s",
		itemTitle, appName, appName)
	return subject, body
}

// RatingReceivedEmail returns subject and body notifying a user about a new rating.
func RatingReceivedEmail(appName string, stars int) (string, string) {
	subject := "You received a new rating"
	body := fmt.Sprintf(
		"Hi,\n\nSomeone rated their pickup with you %d star(s) on %s.\n\n%s",
		stars, appName, appName)
	return subject, body
}
