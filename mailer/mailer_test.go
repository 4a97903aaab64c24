package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

var sample = ContactMessage{
	Name:    "Ada Lovelace",
	Email:   "ada@example.org",
	Subject: "Engine",
	Message: "Let us talk about the analytical engine.",
}

func TestBody(t *testing.T) {
	want := "Name: Ada Lovelace\nEmail: ada@example.org\nSubject: Engine\n\nMessage:\nLet us talk about the analytical engine.\n"
	assert.Equal(t, want, Body(sample))
}

func TestBuildMessageHeaders(t *testing.T) {
	msg, err := BuildMessage("owner@example.com", sample)
	require.NoError(t, err)

	assert.Equal(t, []string{"Portfolio Contact: Engine"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.NotEmpty(t, msg.GetMessageID())
}

func TestBuildMessageRejectsBadReplyTo(t *testing.T) {
	bad := sample
	bad.Email = "not an address"
	_, err := BuildMessage("owner@example.com", bad)
	require.Error(t, err)
}

func TestSendWithoutCredentials(t *testing.T) {
	s := NewSMTPSender(Config{Host: "smtp.example.com", Port: 465, From: "owner@example.com"})
	_, err := s.Send(context.Background(), sample)
	require.ErrorIs(t, err, ErrNotConfigured)
}
