package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiURL         string
	systemSecret   string
	sourceFunction string
	analysisType   string
)

func main() {
	root := &cobra.Command{
		Use:           "orbitctl",
		Short:         "Operator CLI for the order processing API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&apiURL, "api", envOr("ORBIT_API_URL", "http://localhost:8000"), "API base URL")
	root.PersistentFlags().StringVar(&systemSecret, "secret", os.Getenv("SYSTEM_SECRET"), "system secret for authentication")
	root.PersistentFlags().StringVar(&sourceFunction, "source", "orbitctl", "x-source-function header value")

	processCmd := &cobra.Command{
		Use:   "process <orderId>",
		Short: "Run the processing workflow for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return triggerWorkflow(args[0], "process")
		},
	}
	processCmd.Flags().StringVar(&analysisType, "analysis-type", "", "force analysis type (product|lifestyle)")

	recoverCmd := &cobra.Command{
		Use:   "recover <orderId>",
		Short: "Sweep stuck orders and re-run failed work for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return triggerWorkflow(args[0], "recover")
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate <orderId>",
		Short: "Check an order's batch and storage consistency without mutating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return triggerWorkflow(args[0], "validate")
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <orderId>",
		Short: "Show the current order and image state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/internal/orders/" + args[0] + "/status")
		},
	}

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List orders awaiting processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/internal/orders/pending")
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Show component health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/health")
		},
	}

	root.AddCommand(processCmd, recoverCmd, validateCmd, statusCmd, pendingCmd, healthCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func triggerWorkflow(orderID, action string) error {
	payload := map[string]string{"orderId": orderID, "action": action}
	if analysisType != "" {
		payload["analysisType"] = analysisType
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, apiURL+"/internal/orders/process", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	authorize(req)

	return doAndPrint(req)
}

func getJSON(path string) error {
	req, err := http.NewRequest(http.MethodGet, apiURL+path, nil)
	if err != nil {
		return err
	}
	authorize(req)
	return doAndPrint(req)
}

func authorize(req *http.Request) {
	if systemSecret != "" {
		req.Header.Set("Authorization", "Bearer "+systemSecret)
	}
	req.Header.Set("x-source-function", sourceFunction)
}

func doAndPrint(req *http.Request) error {
	httpClient := &http.Client{Timeout: 10 * time.Minute}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
	} else {
		fmt.Println(pretty.String())
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
