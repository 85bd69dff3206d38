package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fika-labs/agentrelay/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long:  `Probe the health endpoint of a running Agent Relay server.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func fetchHealth(client *http.Client, url string) (healthResponse, error) {
	var health healthResponse

	resp, err := client.Get(url)
	if err != nil {
		return health, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("unhealthy (HTTP %d)", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("invalid health response: %w", err)
	}
	return health, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/healthz", host, cfg.Server.Port)

	client := &http.Client{Timeout: 3 * time.Second}
	health, err := fetchHealth(client, url)
	if err != nil {
		fmt.Println("Status: stopped")
		return nil
	}

	fmt.Println("Status: running")
	fmt.Printf("Address: %s:%d\n", host, cfg.Server.Port)
	fmt.Printf("Health: %s\n", health.Status)
	return nil
}
