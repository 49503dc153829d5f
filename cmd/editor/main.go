package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"videohub/internal/editor"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", getEnvOrDefault("VIDEOHUB_API_URL", "http://localhost:8080"), "videohub API base URL")
	videoID := flag.String("video", "", "id of the video to edit")
	flag.Parse()

	if *videoID == "" {
		fmt.Fprintln(os.Stderr, "usage: editor -video <id> [-api <url>]")
		os.Exit(2)
	}

	client := editor.NewClient(*apiURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	video, err := client.GetVideo(ctx, *videoID)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load video: %v\n", err)
		os.Exit(1)
	}

	form := editor.NewEditForm(video, client, client)
	if _, err := tea.NewProgram(form).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running editor: %v\n", err)
		os.Exit(1)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
