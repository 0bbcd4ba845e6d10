package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const (
	correlationIDHeader  = "X-Correlation-ID"
	idempotencyKeyHeader = "Idempotency-Key"
)

type cliOptions struct {
	baseURL string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "loanledger-cli",
		Short:         "Loan ledger CLI tool",
		Long:          `A command line interface for inspecting loans and submitting payments to the loan ledger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the loan ledger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(loansCmd(opts), paymentsCmd(opts))

	return rootCmd
}

func loansCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Loan lookups",
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			return get(cmd, opts, "/api/v1/loans?"+q.Encode())
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of loans")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Number of loans to skip")

	getCmd := &cobra.Command{
		Use:   "get <customer-id>",
		Short: "Show a customer's loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get(cmd, opts, "/api/v1/loans/"+url.PathEscape(args[0]))
		},
	}

	activeCmd := &cobra.Command{
		Use:   "active <customer-id>",
		Short: "Check whether a customer has an unfinished loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get(cmd, opts, "/api/v1/loans/"+url.PathEscape(args[0])+"/active")
		},
	}

	cmd.AddCommand(listCmd, getCmd, activeCmd)
	return cmd
}

func paymentsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Payment operations",
	}

	var correlationID, idempotencyKey string
	sendCmd := &cobra.Command{
		Use:   "send <customer-id> <amount>",
		Short: "Apply a payment to a customer's active loan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			paymentID := uuid.NewString()
			if idempotencyKey == "" {
				idempotencyKey = paymentID
			}

			body := map[string]any{
				"payment_id":     paymentID,
				"customer_id":    args[0],
				"payment_amount": amount,
			}
			if correlationID != "" {
				body["correlation_id"] = correlationID
			}

			headers := map[string]string{idempotencyKeyHeader: idempotencyKey}
			status, respBody, respHeaders, err := do(cmd.Context(), opts, http.MethodPost, "/api/v1/payments", body, headers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if corr := respHeaders.Get(correlationIDHeader); corr != "" {
				fmt.Fprintf(out, "Correlation ID: %s\n", corr)
			}
			if err := printJSON(out, respBody); err != nil {
				return err
			}
			return statusError(status)
		},
	}
	sendCmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation ID propagated to the emitted event")
	sendCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key (defaults to the generated payment ID)")

	cmd.AddCommand(sendCmd)
	return cmd
}

func get(cmd *cobra.Command, opts *cliOptions, path string) error {
	status, body, _, err := do(cmd.Context(), opts, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), body); err != nil {
		return err
	}
	return statusError(status)
}

func do(ctx context.Context, opts *cliOptions, method, path string, body any, headers map[string]string) (int, []byte, http.Header, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, opts.baseURL+path, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, resp.Header, nil
}

func printJSON(w io.Writer, data []byte) error {
	data = bytes.TrimSpace(data)

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		// Not JSON; print as is.
		_, werr := fmt.Fprintln(w, string(data))
		return werr
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

func statusError(status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return fmt.Errorf("request failed with status %d %s", status, http.StatusText(status))
}
