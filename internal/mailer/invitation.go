package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// InvitationData feeds the invitation email template.
type InvitationData struct {
	TripTitle    string
	InviterEmail string
	Role         string
	AcceptURL    string
}

// InvitationSubject returns the subject line for an invitation email.
func InvitationSubject(tripTitle string) string {
	return fmt.Sprintf("You've been invited to collaborate on %q", tripTitle)
}

// RenderInvitation renders the invitation email body.
func RenderInvitation(data InvitationData) (string, error) {
	var buf bytes.Buffer
	if err := invitationTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render invitation email: %w", err)
	}
	return buf.String(), nil
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Trip invitation</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0f766e; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #0f766e; }
    </style>
</head>
<body>
    <h2>Join "{{.TripTitle}}" on TripMate</h2>

    <p>{{.InviterEmail}} invited you to collaborate on the trip <strong>{{.TripTitle}}</strong> as <strong>{{.Role}}</strong>.</p>

    <p>
        <a href="{{.AcceptURL}}" class="button">Accept invitation</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.AcceptURL}}</p>

    <div class="footer">
        <p>If you weren't expecting this invitation, you can safely ignore this email.</p>
    </div>
</body>
</html>`))
