package main

// Notifier blank imports: each import activates a self-registering adapter.
// Slack and e-mail register through their direct imports in app.go.

import (
	_ "github.com/Strob0t/answerdesk/internal/adapter/discord"
)
