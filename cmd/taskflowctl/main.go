// Package main implements the taskflowctl CLI for manual operations
// against a running taskflowd server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the taskflowd HTTP server
	serverURL string
	// webhookSecret authenticates the ingest command; defaults to the
	// TASKFLOW_WEBHOOK_SECRET environment variable
	webhookSecret string
	// meetingTitle overrides the meeting title for raw transcript ingest
	meetingTitle string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskflowctl",
	Short: "CLI for taskflowd server operations",
	Long: `taskflowctl is a command-line interface for a running taskflowd server.
It can check server health and push meeting transcripts for processing.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "taskflowd server URL")
	ingestCmd.Flags().StringVar(&webhookSecret, "secret", os.Getenv("TASKFLOW_WEBHOOK_SECRET"), "webhook shared secret")
	ingestCmd.Flags().StringVar(&meetingTitle, "title", "", "meeting title for raw transcripts (defaults to the file name)")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints the CLI version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print taskflowctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskflowctl %s\n", version)
	},
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check taskflowd server health",
	Long: `Check the health status of the taskflowd HTTP server.

Examples:
  # Check health
  taskflowctl health

  # Check health on a different server
  taskflowctl health --server http://localhost:9000`,
	RunE: runHealth,
}

// ingestCmd pushes a transcript through the webhook endpoint
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Push a meeting transcript to the server",
	Long: `Push a meeting transcript file (or stdin) to the taskflowd webhook.

A .json file is sent as-is and must match the webhook payload shape.
Anything else is treated as a raw transcript and wrapped for delivery.

Examples:
  # Push a captured webhook payload
  taskflowctl ingest meeting.json

  # Push a raw transcript with a title
  taskflowctl ingest --title "Weekly sync" notes.txt

  # Push from stdin
  cat transcript.txt | taskflowctl ingest --title "Standup" -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

// HealthResponse matches internal/httpapi HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	if webhookSecret == "" {
		return fmt.Errorf("webhook secret required: pass --secret or set TASKFLOW_WEBHOOK_SECRET")
	}

	var content []byte
	var err error
	source := "-"
	if len(args) > 0 {
		source = args[0]
	}
	if source == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", source, err)
		}
	}
	if len(content) == 0 {
		return fmt.Errorf("no transcript content to send")
	}

	body := content
	if strings.ToLower(filepath.Ext(source)) != ".json" {
		body, err = wrapTranscript(source, content)
		if err != nil {
			return err
		}
	}

	url := fmt.Sprintf("%s/webhook/transcript", serverURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", webhookSecret)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	fmt.Fprintln(os.Stderr, "Transcript accepted; proposals will arrive in the review channel.")
	return nil
}

// wrapTranscript builds a webhook-shaped payload around a raw transcript.
func wrapTranscript(source string, content []byte) ([]byte, error) {
	title := meetingTitle
	if title == "" {
		if source == "-" {
			title = "Untitled meeting"
		} else {
			title = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		}
	}

	payload := map[string]any{
		"title": title,
		"transcript": map[string]any{
			"speaker_blocks": []map[string]any{
				{"speaker": map[string]string{"name": "Transcript"}, "words": string(content)},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return body, nil
}
