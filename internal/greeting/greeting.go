package greeting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Generator produces a short birthday wish for a person.
type Generator interface {
	Wish(ctx context.Context, name string, age int) (string, error)
}

// Message is what gets sent to the user for one due birthday.
type Message struct {
	Title string
	Body  string
	Wish  string // optional suggested wish
}

// Text renders the message for chat channels.
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteString("\n\n")
	b.WriteString(m.Body)
	if m.Wish != "" {
		b.WriteString("\n\n💌 ")
		b.WriteString(m.Wish)
	}
	return b.String()
}

// Composer builds reminder messages, optionally asking a Generator for a wish.
type Composer struct {
	gen     Generator
	log     *zap.Logger
	timeout time.Duration
}

// NewComposer accepts a nil generator; messages then carry no wish.
func NewComposer(gen Generator, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{gen: gen, log: log, timeout: 10 * time.Second}
}

// Compose renders the reminder for a person turning age today.
func (c *Composer) Compose(ctx context.Context, name, phone string, age int) Message {
	msg := Message{
		Title: "🎂 Birthday reminder",
		Body:  fmt.Sprintf("Today is %s's birthday", name),
	}
	if age > 0 {
		msg.Body += fmt.Sprintf(" (turning %d)", age)
	}
	msg.Body += "!"
	if phone != "" {
		msg.Body += "\n📞 " + phone
	}

	if c.gen == nil {
		return msg
	}
	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	wish, err := c.gen.Wish(wctx, name, age)
	if err != nil {
		c.log.Warn("wish generation failed", zap.String("name", name), zap.Error(err))
		return msg
	}
	msg.Wish = strings.TrimSpace(wish)
	return msg
}

// Gemini generates wishes through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed generator.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Wish(ctx context.Context, name string, age int) (string, error) {
	prompt := fmt.Sprintf("Write a warm, short birthday wish for %s. Keep it under 40 words. Reply with the wish only.", name)
	if age > 0 {
		prompt = fmt.Sprintf("Write a warm, short birthday wish for %s who is turning %d. Keep it under 40 words. Reply with the wish only.", name, age)
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate birthday wish: %w", err)
	}
	text := result.Text()
	if text == "" {
		return fallbackWish(name, age), nil
	}
	return text, nil
}

func fallbackWish(name string, age int) string {
	if age > 0 {
		return fmt.Sprintf("Happy %d birthday, %s! Wishing you a year full of joy.", age, name)
	}
	return fmt.Sprintf("Happy birthday, %s! Wishing you a year full of joy.", name)
}
