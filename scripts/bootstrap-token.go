package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/keyvend/keyvend/internal/auth"
	"github.com/keyvend/keyvend/internal/model"
)

type output struct {
	Name        string   `json:"name"`
	Token       string   `json:"token"`
	TokenPrefix string   `json:"token_prefix"`
	Scopes      []string `json:"scopes"`
	ConfigEntry string   `json:"config_entry"`
}

// Mints a service token and prints the SERVICE_TOKENS config entry for
// it. The plaintext token is shown once; only the hash goes into the
// config.
func main() {
	var (
		name        = flag.String("name", "bootstrap", "Token name")
		env         = flag.String("env", auth.EnvLive, "Environment: live or test")
		scopesInput = flag.String("scopes", "admin", "Comma-separated scopes (read,write,admin)")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	generated, err := auth.GenerateToken(*env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate token:", err)
		os.Exit(1)
	}

	out := output{
		Name:        *name,
		Token:       generated.Plaintext,
		TokenPrefix: generated.Prefix,
		Scopes:      scopes,
		ConfigEntry: fmt.Sprintf("%s:%s:%s", *name, strings.Join(scopes, "+"), generated.Hash),
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println("token:", out.Token)
		fmt.Println("config entry:", out.ConfigEntry)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func parseScopes(input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return []string{model.ScopeAdmin}, nil
	}
	parts := strings.Split(input, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !isValidScope(scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeAdmin}
	}
	return scopes, nil
}

func isValidScope(scope string) bool {
	for _, allowed := range model.ValidScopes {
		if scope == allowed {
			return true
		}
	}
	return false
}
