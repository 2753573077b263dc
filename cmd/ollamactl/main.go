package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/modelpilot/ollamactl/internal/config"
	"github.com/modelpilot/ollamactl/internal/enginectl"
	"github.com/modelpilot/ollamactl/sdk/ollama"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := strings.ToLower(strings.TrimSpace(os.Args[1]))

	fs := flag.NewFlagSet("ollamactl "+cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	model := fs.String("model", "", "Model name")
	prompt := fs.String("prompt", "", "Prompt text (generate/chat)")
	jsonOut := fs.Bool("json", true, "Output JSON when applicable")
	debug := fs.Bool("debug", false, "Enable debug logging")
	_ = fs.Parse(os.Args[2:])

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	client := ollama.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "status":
		printStatus(client.Status(ctx), *jsonOut)
	case "start":
		if err := client.Controller().EnsureReady(ctx, false, cfg.ReadyTimeout(), cfg.ReadyPollInterval()); err != nil {
			fatal(err)
		}
		printStatus(client.Status(ctx), *jsonOut)
	case "stop":
		ctl := client.Controller()
		if ctl.Kill() {
			ctl.KillOrphans()
			fmt.Println("stopped")
		} else {
			fmt.Println("nothing to stop")
		}
	case "restart":
		if err := client.Controller().EnsureReady(ctx, true, cfg.ReadyTimeout(), cfg.ReadyPollInterval()); err != nil {
			fatal(err)
		}
		printStatus(client.Status(ctx), *jsonOut)
	case "version":
		v, err := client.Version(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Println(v)
	case "list":
		out, err := client.List(ctx)
		if err != nil {
			fatal(err)
		}
		for _, m := range out.Models {
			fmt.Printf("%s\t%s\t%.1f GB\n", m.Name, m.Details.QuantizationLevel, float64(m.Size)/1e9)
		}
	case "show":
		requireModel(*model)
		out, err := client.Show(ctx, &ollama.ShowRequest{Model: *model})
		if err != nil {
			fatal(err)
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	case "pull":
		requireModel(*model)
		err := client.Pull(ctx, &ollama.PullRequest{Model: *model}, func(p *ollama.PullProgress) error {
			if p.Total > 0 {
				fmt.Printf("\r%s %d/%d", p.Status, p.Completed, p.Total)
			} else {
				fmt.Printf("\n%s", p.Status)
			}
			return nil
		})
		fmt.Println()
		if err != nil {
			fatal(err)
		}
	case "generate":
		requireModel(*model)
		err := client.Generate(ctx, &ollama.GenerateRequest{Model: *model, Prompt: *prompt}, func(resp *ollama.GenerateResponse) error {
			fmt.Print(resp.Response)
			return nil
		})
		fmt.Println()
		if err != nil {
			fatal(err)
		}
	case "chat":
		requireModel(*model)
		err := client.Chat(ctx, &ollama.ChatRequest{
			Model:    *model,
			Messages: []ollama.Message{{Role: "user", Content: *prompt}},
		}, func(resp *ollama.ChatResponse) error {
			fmt.Print(resp.Message.Content)
			return nil
		})
		fmt.Println()
		if err != nil {
			fatal(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ollamactl <status|start|stop|restart|version|list|show|pull|generate|chat> [flags]")
	fmt.Fprintln(os.Stderr, "Flags: -config <path> -model <name> -prompt <text> -json -debug")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func requireModel(model string) {
	if model == "" {
		fmt.Fprintln(os.Stderr, "error: -model is required")
		os.Exit(2)
	}
}

func printStatus(st enginectl.Status, jsonOut bool) {
	if jsonOut {
		data, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(data))
		return
	}
	if st.Running {
		fmt.Printf("running pid=%d port=%d base=%s managed=%t\n", st.PID, st.Port, st.BaseURL, st.Managed)
	} else {
		fmt.Println("stopped")
	}
}
