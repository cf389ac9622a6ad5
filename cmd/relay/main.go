// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command relay delegates tasks to a remote A2A agent.
//
// Usage:
//
//	relay run "summarize the quarterly report"
//	relay run --stream "summarize the quarterly report"
//	relay serve --listen :8080
//	relay card
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/relay/pkg/auth"
	"github.com/kadirpekel/relay/pkg/config"
	"github.com/kadirpekel/relay/pkg/delegation"
	"github.com/kadirpekel/relay/pkg/logger"
	"github.com/kadirpekel/relay/pkg/server"
	"github.com/kadirpekel/relay/pkg/tool/delegatetool"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Run     RunCmd     `cmd:"" help:"Delegate a task and print the response."`
	Serve   ServeCmd   `cmd:"" help:"Host the delegation tool over HTTP."`
	Card    CardCmd    `cmd:"" help:"Print the executor's capability card."`

	Executor  string        `help:"Executor base URL (overrides RELAY_EXECUTOR_URL)."`
	Token     string        `help:"Bearer token for outbound requests (overrides RELAY_BEARER_TOKEN)."`
	Timeout   time.Duration `help:"Overall timeout per delegation (overrides RELAY_TIMEOUT)."`
	LogLevel  string        `name:"log-level" help:"Log level (debug, info, warn, error)."`
	LogFormat string        `name:"log-format" help:"Log format (text, json)." default:"text"`
}

// loadConfig resolves environment configuration and applies CLI overrides.
func (cli *CLI) loadConfig() (*config.Config, error) {
	if cli.Executor != "" {
		os.Setenv("RELAY_EXECUTOR_URL", cli.Executor)
	}
	if cli.Token != "" {
		os.Setenv("RELAY_BEARER_TOKEN", cli.Token)
	}
	if cli.Timeout > 0 {
		os.Setenv("RELAY_TIMEOUT", cli.Timeout.String())
	}
	if cli.LogLevel != "" {
		os.Setenv("RELAY_LOG_LEVEL", cli.LogLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.LogLevel, cli.LogFormat)
	return cfg, nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("relay version %s\n", version)
	return nil
}

// RunCmd delegates one task from the command line.
type RunCmd struct {
	Task   []string `arg:"" help:"Task to delegate."`
	Stream bool     `help:"Use streaming dispatch and aggregate the fragments."`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := delegation.NewClient(cfg.Delegation())
	if err != nil {
		return err
	}

	task := strings.Join(c.Task, " ")

	var result string
	if c.Stream || cfg.Streaming {
		result, err = delegation.Aggregate(client.SendStreaming(ctx, task))
	} else {
		result, err = client.SendSync(ctx, task)
	}
	if err != nil {
		return err
	}

	fmt.Println(result)
	return nil
}

// ServeCmd hosts the delegation tool over HTTP.
type ServeCmd struct {
	Listen string `help:"Bind address (overrides RELAY_LISTEN)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.ListenAddr = c.Listen
	}

	ctx, cancel := signalContext()
	defer cancel()

	dt, err := delegatetool.New(delegatetool.Config{
		Delegation: cfg.Delegation(),
		Streaming:  cfg.Streaming,
	})
	if err != nil {
		return err
	}

	var validator *auth.JWTValidator
	if cfg.JWKSURL != "" {
		validator, err = auth.NewJWTValidator(ctx, cfg.JWKSURL, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			return fmt.Errorf("failed to configure auth: %w", err)
		}
	}

	srv, err := server.New(server.Config{
		ListenAddr: cfg.ListenAddr,
		Tool:       dt,
		Validator:  validator,
	})
	if err != nil {
		return err
	}

	return srv.Start(ctx)
}

// CardCmd resolves and prints the executor's capability card.
type CardCmd struct{}

func (c *CardCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := delegation.NewClient(cfg.Delegation())
	if err != nil {
		return err
	}

	card, err := client.ResolveCard(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("relay"),
		kong.Description("relay - delegate tasks to remote A2A agents"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
