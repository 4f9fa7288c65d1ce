package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/muratoffalex/pablos/internal/ai"
	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/network"
)

const (
	probePrompt    = "ping"
	probeMaxTokens = 5
)

func newEndpointsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Inspect the configured model endpoints",
	}

	cmd.AddCommand(
		newEndpointsListCmd(opts),
		newEndpointsProbeCmd(opts),
	)

	return cmd
}

func newEndpointsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List endpoints in the order they are tried",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, _, err := loadRegistry(opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "#\tNAME\tMODEL\tPRIORITY")
			for i, status := range registry.Snapshot(time.Now()) {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, status.Name, status.Model, status.Priority)
			}
			return w.Flush()
		},
	}
}

func newEndpointsProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Send one short completion to every endpoint and report the outcome",
		Long: `Send one short completion to every endpoint and report the outcome.

The LISTED column tells whether the endpoint's GET /models lists the
configured model, which catches a mistyped model name.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, timeout, err := loadRegistry(opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tMODEL\tSTATUS\tLATENCY\tLISTED")
			failed := 0
			for i := range registry.Len() {
				endpoint := registry.Endpoint(i)
				started := time.Now()
				status := probe(cmd.Context(), endpoint, timeout)
				latency := time.Since(started).Round(time.Millisecond)
				if status != "ok" {
					failed++
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", endpoint.Name, endpoint.Model, status, latency,
					modelListed(cmd.Context(), endpoint, timeout))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed == registry.Len() && failed > 0 {
				return fmt.Errorf("all %d endpoints failed the probe", failed)
			}
			return nil
		},
	}
}

// probe talks to the provider directly so registry health is not touched.
func probe(ctx context.Context, endpoint ai.Endpoint, timeout time.Duration) string {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	maxTokens := probeMaxTokens
	resp, err := endpoint.Provider.Chat(ctx, ai.CompletionRequest{
		Model:     endpoint.Model,
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: probePrompt}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "error: " + err.Error()
	}
	if len(resp.Choices) == 0 {
		return "error: no choices"
	}
	choice := resp.Choices[0]
	if choice.Message.Content == nil || strings.TrimSpace(*choice.Message.Content) == "" {
		if choice.FinishReason != "" {
			return fmt.Sprintf("empty content (finish_reason=%s)", choice.FinishReason)
		}
		return "empty content"
	}
	return "ok"
}

// modelListed reports "yes" or "no" depending on whether the endpoint's
// model catalogue contains the configured model, or "unknown" when the
// catalogue cannot be fetched (many gateways do not serve /models).
func modelListed(ctx context.Context, endpoint ai.Endpoint, timeout time.Duration) string {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	models, err := endpoint.Provider.ListModels(ctx)
	if err != nil {
		return "unknown"
	}
	for _, model := range models {
		if model.ID == endpoint.Model {
			return "yes"
		}
	}
	return "no"
}

func loadRegistry(opts *rootOptions) (*ai.Registry, time.Duration, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, 0, err
	}
	aiCfg, err := cfg.AI()
	if err != nil {
		return nil, 0, err
	}

	l := logger.NewLogrusLogger(cfg.Log())
	httpClient, err := network.SetupHTTPClient(network.NewCompletionHTTPClientConfig(cfg.HTTP()), l)
	if err != nil {
		return nil, 0, err
	}
	return di.BuildRegistry(aiCfg, httpClient, l), aiCfg.AttemptTimeout, nil
}
