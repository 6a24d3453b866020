package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// VerificationEmail builds the message carrying an email verification link.
func VerificationEmail(baseURL, to, token string) Message {
	link := buildLink(baseURL, "/api/auth/verify-email", token)
	return Message{
		Kind:    KindVerifyEmail,
		To:      to,
		Subject: "Email Verification",
		Body: fmt.Sprintf("Dear user,\nTo verify your email, click on this link: %s\n"+
			"If you did not create an account, then ignore this email.", link),
	}
}

// ResetPasswordEmail builds the message carrying a password reset link.
func ResetPasswordEmail(baseURL, to, token string) Message {
	link := buildLink(baseURL, "/api/auth/reset-password", token)
	return Message{
		Kind:    KindResetPassword,
		To:      to,
		Subject: "Reset password",
		Body: fmt.Sprintf("Dear user,\nTo reset your password, click on this link: %s\n"+
			"If you did not request any password resets, then ignore this email.", link),
	}
}

func buildLink(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}
