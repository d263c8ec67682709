package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"workflow-agent-be/internal/bootstrap"
	"workflow-agent-be/internal/config"
	"workflow-agent-be/internal/pkg/logger"

	"github.com/fatih/color"
)

func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Load()
	container, err := bootstrap.NewContainerWithLogger(ctx, cfg, logger.NewIsolatedLogger(cfg.App.LogFilePath))
	if err != nil {
		color.Red("Failed to bootstrap: %v", err)
		os.Exit(1)
	}
	defer container.Close()

	color.Cyan("Workflow assistant. Type a request, /new for a new session, /quit to exit.")
	color.White("Logs go to %s", cfg.App.LogFilePath)
	if container.History.Degraded() {
		color.Yellow("History is process local (no database configured).")
	}

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.GreenString("\nyou> "))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "/quit", "/exit":
			return
		case "/new":
			sessionID = ""
			color.Cyan("Started a new session.")
			continue
		}

		res, err := container.Orchestrator.Handle(ctx, line, sessionID)
		if err != nil {
			color.Red("Error: %v", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		sessionID = res.SessionID

		color.Blue("assistant> %s", res.Conversation)
		if res.Workflow != nil {
			prettyPrint(res.Workflow)
		}
		if res.NextQuestion != "" {
			color.Magenta("%s", res.NextQuestion)
		}
		if res.Cached {
			color.Yellow("(cached)")
		}
	}
}
