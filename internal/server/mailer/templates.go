package mailer

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/avolkovs/authkeeper/internal/common"
)

type emailTemplate struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func mustTemplate(name, textBody, htmlBody string) emailTemplate {
	return emailTemplate{
		text: texttemplate.Must(texttemplate.New(name + "_text").Parse(textBody)),
		html: htmltemplate.Must(htmltemplate.New(name + "_html").Parse(htmlBody)),
	}
}

var (
	verificationTemplate = mustTemplate("verification",
		"Hello {{.Name}},\n\nPlease confirm your email address by opening the link below:\n\n{{.Link}}\n\nIf you did not create an account, ignore this message.\n",
		"<p>Hello {{.Name}},</p><p>Please confirm your email address:</p><p><a href=\"{{.Link}}\">Confirm email</a></p><p>If you did not create an account, ignore this message.</p>")

	passwordResetTemplate = mustTemplate("password_reset",
		"Hello {{.Name}},\n\nA password reset was requested for your account. Open the link below to choose a new password:\n\n{{.Link}}\n\nIf you did not request a reset, ignore this message; your password is unchanged.\n",
		"<p>Hello {{.Name}},</p><p>A password reset was requested for your account.</p><p><a href=\"{{.Link}}\">Choose a new password</a></p><p>If you did not request a reset, ignore this message; your password is unchanged.</p>")

	welcomeTemplate = mustTemplate("welcome",
		"Hello {{.Name}},\n\nYour email address is confirmed and your account is ready to use.\n",
		"<p>Hello {{.Name}},</p><p>Your email address is confirmed and your account is ready to use.</p>")

	accountLockedTemplate = mustTemplate("account_locked",
		"Hello {{.Name}},\n\nYour account was locked at {{.LockedAtFormatted}} after too many failed sign-in attempts. Contact an administrator to unlock it.\n",
		"<p>Hello {{.Name}},</p><p>Your account was locked at {{.LockedAtFormatted}} after too many failed sign-in attempts.</p><p>Contact an administrator to unlock it.</p>")

	invitationTemplate = mustTemplate("invitation",
		"Hello,\n\n{{.InvitedBy}} invited you to join. Open the link below to accept the invitation:\n\n{{.Link}}\n",
		"<p>Hello,</p><p>{{.InvitedBy}} invited you to join.</p><p><a href=\"{{.Link}}\">Accept invitation</a></p>")
)

func renderTemplate(tpl emailTemplate, subject string, data any) (*Message, error) {
	var text strings.Builder
	if err := tpl.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("%w: rendering text body: %v", common.ErrorValidation, err)
	}

	var html strings.Builder
	if err := tpl.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("%w: rendering html body: %v", common.ErrorValidation, err)
	}

	return &Message{Subject: subject, Text: text.String(), HTML: html.String()}, nil
}

// Render produces the subject and both bodies for a job of the given kind.
// The switch over Kind is exhaustive; an unrecognized kind yields
// *UnknownKindError, which the dispatcher treats as fatal.
func Render(kind Kind, raw json.RawMessage, baseURL string) (*Message, error) {
	base := strings.TrimRight(baseURL, "/")

	switch kind {
	case KindVerification:
		p, err := decodePayload[VerificationPayload](raw)
		if err != nil {
			return nil, err
		}
		if err := checkEmail(p.Email); err != nil {
			return nil, err
		}
		if p.Token == "" {
			return nil, fmt.Errorf("%w: empty verification token", common.ErrorValidation)
		}
		msg, err := renderTemplate(verificationTemplate, "Confirm your email address", struct {
			Name string
			Link string
		}{Name: displayName(p.Name, p.Email), Link: base + "/verify-email?token=" + p.Token})
		if err != nil {
			return nil, err
		}
		msg.To = p.Email
		return msg, nil

	case KindPasswordReset:
		p, err := decodePayload[PasswordResetPayload](raw)
		if err != nil {
			return nil, err
		}
		if err := checkEmail(p.Email); err != nil {
			return nil, err
		}
		if p.Token == "" {
			return nil, fmt.Errorf("%w: empty reset token", common.ErrorValidation)
		}
		msg, err := renderTemplate(passwordResetTemplate, "Reset your password", struct {
			Name string
			Link string
		}{Name: displayName(p.Name, p.Email), Link: base + "/reset-password?token=" + p.Token})
		if err != nil {
			return nil, err
		}
		msg.To = p.Email
		return msg, nil

	case KindWelcome:
		p, err := decodePayload[WelcomePayload](raw)
		if err != nil {
			return nil, err
		}
		if err := checkEmail(p.Email); err != nil {
			return nil, err
		}
		msg, err := renderTemplate(welcomeTemplate, "Welcome aboard", struct {
			Name string
		}{Name: displayName(p.Name, p.Email)})
		if err != nil {
			return nil, err
		}
		msg.To = p.Email
		return msg, nil

	case KindAccountLocked:
		p, err := decodePayload[AccountLockedPayload](raw)
		if err != nil {
			return nil, err
		}
		if err := checkEmail(p.Email); err != nil {
			return nil, err
		}
		msg, err := renderTemplate(accountLockedTemplate, "Your account has been locked", struct {
			Name              string
			LockedAtFormatted string
		}{
			Name:              displayName(p.Name, p.Email),
			LockedAtFormatted: p.LockedAt.UTC().Format("2006-01-02 15:04 UTC"),
		})
		if err != nil {
			return nil, err
		}
		msg.To = p.Email
		return msg, nil

	case KindInvitation:
		p, err := decodePayload[InvitationPayload](raw)
		if err != nil {
			return nil, err
		}
		if err := checkEmail(p.Email); err != nil {
			return nil, err
		}
		msg, err := renderTemplate(invitationTemplate, "You have been invited", struct {
			InvitedBy string
			Link      string
		}{InvitedBy: p.InvitedBy, Link: base + "/accept-invitation?token=" + p.Token})
		if err != nil {
			return nil, err
		}
		msg.To = p.Email
		return msg, nil
	}

	return nil, &UnknownKindError{Kind: string(kind)}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
