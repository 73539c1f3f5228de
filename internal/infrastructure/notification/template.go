package notification

import (
	"fmt"
	"strings"

	"github.com/partnerbill/backend/internal/domain/billing"
)

// Render turns a billing email request into a subject and plain-text body.
// Templates are deliberately plain strings: partners read these in whatever
// mail client they have, so no HTML.
func Render(req billing.EmailRequest) (subject, body string, err error) {
	due := req.DueDate.Format("2006-01-02")
	amount := req.AmountDue.StringFixed(2)

	var b strings.Builder
	switch req.Kind {
	case billing.NotificationStatementIssued:
		subject = fmt.Sprintf("Statement %s for %s", req.StatementNumber, req.ChannelName)
		fmt.Fprintf(&b, "Hello %s,\n\n", req.ChannelName)
		fmt.Fprintf(&b, "A new statement %s has been issued.\n", req.StatementNumber)
		fmt.Fprintf(&b, "Amount due: %s\n", amount)
		fmt.Fprintf(&b, "Due date: %s\n", due)

	case billing.NotificationPaymentReminder:
		subject = fmt.Sprintf("Payment reminder: statement %s due %s", req.StatementNumber, due)
		fmt.Fprintf(&b, "Hello %s,\n\n", req.ChannelName)
		fmt.Fprintf(&b, "This is a reminder that statement %s is due on %s.\n", req.StatementNumber, due)
		fmt.Fprintf(&b, "Outstanding amount: %s\n", amount)

	case billing.NotificationOverdueNotice:
		subject = fmt.Sprintf("Overdue notice: statement %s", req.StatementNumber)
		fmt.Fprintf(&b, "Hello %s,\n\n", req.ChannelName)
		fmt.Fprintf(&b, "Statement %s is %d day(s) overdue.\n", req.StatementNumber, req.DaysOverdue)
		fmt.Fprintf(&b, "Outstanding amount: %s\n", amount)
		fmt.Fprintf(&b, "Please settle the balance as soon as possible.\n")

	case billing.NotificationPaymentEscalation:
		subject = fmt.Sprintf("Escalation: statement %s for %s unpaid %d day(s) past due",
			req.StatementNumber, req.ChannelName, req.DaysOverdue)
		fmt.Fprintf(&b, "Statement %s for channel %s remains unpaid.\n", req.StatementNumber, req.ChannelName)
		fmt.Fprintf(&b, "Outstanding amount: %s\n", amount)
		fmt.Fprintf(&b, "Due date: %s (%d day(s) overdue)\n", due, req.DaysOverdue)

	default:
		return "", "", fmt.Errorf("unknown notification kind %q", req.Kind)
	}

	if req.Instructions != "" {
		fmt.Fprintf(&b, "\nPayment instructions:\n%s\n", req.Instructions)
	}

	return subject, b.String(), nil
}
