package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"net/smtp"
	"strings"
	"testing"

	"github.com/inkpress/inkpress/config"
	"github.com/inkpress/inkpress/internal/article"
)

func newTestMailer(send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) *Mailer {
	m := New(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer",
		Password: "secret",
		From:     "essays@example.com",
		FromName: "Inkpress",
		To:       "reader@example.com, second@example.com",
	}, log.New(io.Discard, "", 0))
	m.sendMail = send
	return m
}

func TestSendEssayBuildsHTMLMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := newTestMailer(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	})

	doc := article.Document{
		Title:     "Feedback Loops",
		Category:  "systems-thinking",
		Summary:   "Small effects compound.",
		Tags:      []string{"systems"},
		WordCount: 4000,
	}
	err := m.SendEssay(context.Background(), doc, "https://notion.so/page-1", "https://cdn/audio.mp3")
	if err != nil {
		t.Fatalf("SendEssay: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr: %q", gotAddr)
	}
	if gotFrom != "essays@example.com" {
		t.Fatalf("unexpected envelope from: %q", gotFrom)
	}
	if len(gotTo) != 2 || gotTo[1] != "second@example.com" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{
		"From: Inkpress <essays@example.com>",
		"Content-Type: text/html",
		"https://notion.so/page-1",
		"https://cdn/audio.mp3",
		"Feedback Loops",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSendEssayPropagatesSMTPError(t *testing.T) {
	m := newTestMailer(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	})
	err := m.SendEssay(context.Background(), article.Document{Title: "X"}, "", "")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected smtp error, got %v", err)
	}
}

func TestSendEssayUnconfigured(t *testing.T) {
	m := New(config.SMTPConfig{}, log.New(io.Discard, "", 0))
	if m.Configured() {
		t.Fatal("expected unconfigured")
	}
	if err := m.SendEssay(context.Background(), article.Document{Title: "X"}, "", ""); err == nil {
		t.Fatal("expected error for unconfigured mailer")
	}
}
