package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oskarih/fmcloud-go/internal/batch"
	"github.com/oskarih/fmcloud-go/internal/odata"
)

// operationSpec is the JSON schema for one entry in a batch file.
type operationSpec struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// responseOutput is the JSON schema for `batch --json` results.
type responseOutput struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status,omitempty"`
	Body       string `json:"body,omitempty"`
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.json>",
		Short: "Execute a batch of operations in one round trip",
		Long: "Reads HTTP-style operation descriptors from a JSON file, sends them " +
			"as a single $batch exchange, and prints each result in order. " +
			"Consecutive mutating operations are grouped into atomic changesets.",
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	endpoint, err := serviceEndpoint()
	if err != nil {
		return err
	}

	ops, err := readOperations(args[0])
	if err != nil {
		return err
	}

	manager, err := buildTokenManager(logger)
	if err != nil {
		return err
	}

	client := odata.NewClient(endpoint, defaultHTTPClient(), manager, logger)

	responses, err := client.Batch(cmd.Context(), ops)
	if err != nil {
		return err
	}

	if flagJSON {
		return printResponsesJSON(responses)
	}

	printResponsesText(ops, responses)

	return nil
}

// readOperations parses a batch file into codec operations.
func readOperations(path string) ([]batch.Operation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var specs []operationSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parsing batch file %s: %w", path, err)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("batch file %s contains no operations", path)
	}

	ops := make([]batch.Operation, 0, len(specs))

	for i, spec := range specs {
		if spec.Method == "" || spec.URL == "" {
			return nil, fmt.Errorf("batch file %s: operation %d needs method and url", path, i)
		}

		header := http.Header{}
		for name, value := range spec.Headers {
			header.Set(name, value)
		}

		op := batch.Operation{
			Method: strings.ToUpper(spec.Method),
			URL:    spec.URL,
			Header: header,
		}

		if spec.Body != "" {
			op.Body = strings.NewReader(spec.Body)
		}

		ops = append(ops, op)
	}

	return ops, nil
}

func printResponsesJSON(responses []batch.Response) error {
	out := make([]responseOutput, 0, len(responses))

	for _, r := range responses {
		out = append(out, responseOutput{
			StatusCode: r.StatusCode,
			Status:     r.Status,
			Body:       string(r.Body),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func printResponsesText(ops []batch.Operation, responses []batch.Response) {
	for i, r := range responses {
		label := fmt.Sprintf("#%d", i+1)
		if i < len(ops) {
			label = fmt.Sprintf("%s %s", ops[i].Method, ops[i].URL)
		}

		statusf("%s -> %d %s\n", label, r.StatusCode, r.Status)

		if len(r.Body) > 0 {
			statusf("%s\n", r.Body)
		}
	}
}
