package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkingovr/captcha-guard/api"
	"github.com/tkingovr/captcha-guard/internal/filter"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

var (
	checkMethod     string
	checkPath       string
	checkHeaders    []string
	checkRemoteAddr string
	checkToken      string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run the filter decision without a running proxy",
	Long: `Check whether a request would be subject to reCAPTCHA validation.
With --token the response is also verified against the provider and the
resulting validation outcome is printed.`,
	Example: `  captchaguard check -c captchaguard.yaml --method POST --path /test
  captchaguard check -c captchaguard.yaml --path /test -H "X-ReCaptcha-ByPass-Key: key"
  captchaguard check -c captchaguard.yaml --path /test --token 03AGdBq24...`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkMethod, "method", "POST", "HTTP method")
	checkCmd.Flags().StringVar(&checkPath, "path", "", "request path (required)")
	checkCmd.Flags().StringArrayVarP(&checkHeaders, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	checkCmd.Flags().StringVar(&checkRemoteAddr, "remote-addr", "", "client address seen by the exemption policy")
	checkCmd.Flags().StringVar(&checkToken, "token", "", "challenge response to verify")
	_ = checkCmd.MarkFlagRequired("path")
	rootCmd.AddCommand(checkCmd)
}

type checkOutput struct {
	api.CheckResponse
	Validation *checkValidation `json:"validation,omitempty"`
}

type checkValidation struct {
	Outcome api.Outcome `json:"outcome"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Details []string    `json:"details,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}

	headers, err := parseHeaders(checkHeaders)
	if err != nil {
		return err
	}

	ctx := context.Background()
	r, err := filter.NewCheckRequest(ctx, api.CheckRequest{
		Method:     checkMethod,
		Path:       checkPath,
		Headers:    headers,
		RemoteAddr: checkRemoteAddr,
	})
	if err != nil {
		return err
	}

	out := checkOutput{CheckResponse: comps.scope.Check(ctx, r)}
	if cmd.Flags().Changed("token") {
		out.Validation = describeResult(comps.validator.Validate(ctx, checkToken))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func describeResult(res validation.Result) *checkValidation {
	switch res := res.(type) {
	case validation.Success:
		return &checkValidation{Outcome: api.OutcomePassed}
	case validation.Failure:
		return &checkValidation{
			Outcome: api.OutcomeFailed,
			Code:    res.Code,
			Message: res.Message,
			Details: res.Details,
		}
	default:
		return &checkValidation{Outcome: api.OutcomeFailed}
	}
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		// Only the separator space is dropped; the filter compares values exactly.
		headers[name] = strings.TrimPrefix(value, " ")
	}
	return headers, nil
}
