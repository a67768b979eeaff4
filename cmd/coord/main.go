package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"agent-coord/internal/app"
	"agent-coord/internal/session"
	"agent-coord/internal/tracker"
	"agent-coord/pkg/config"
	pkgerrors "agent-coord/pkg/errors"
	"agent-coord/pkg/utils"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("coord " + version)
	case "config":
		runConfig()
	case "health":
		runHealth()
	case "sod":
		runSod(args)
	case "heartbeat":
		runHeartbeat()
	case "update":
		runUpdate(args)
	case "eod":
		runEod(args)
	case "sessions":
		runSessions()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: coord <command> [args]")
	fmt.Println("  sod [--track <name>] [--no-docs] [--peers] - 声明开工，取回交接与工作文档")
	fmt.Println("  heartbeat                  - 刷新会话存活时间")
	fmt.Println("  update [--branch <b>] [--commit <sha>] [--meta k=v] - 上报工作上下文")
	fmt.Println("  eod [--reason <r>]         - 采集活动、组装交接并收工")
	fmt.Println("  sessions                   - 列出本仓库下我的活跃会话")
	fmt.Println("  config                     - 显示配置概要")
	fmt.Println("  health                     - 探测跟踪服务")
	fmt.Println("  version                    - 显示版本")
}

// bootstrap 装配依赖；配置或凭证有问题时直接退出，不发任何网络请求
func bootstrap(ctx context.Context) *app.Bootstrap {
	cfg, err := config.LoadCLIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	return b
}

func runConfig() {
	cfg, err := config.LoadCLIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("tracker.base_url=%s\n", cfg.Tracker.BaseURL)
	fmt.Printf("tracker.timeout=%s\n", cfg.Tracker.Timeout)
	fmt.Printf("secrets.provider=%s\n", cfg.Secrets.Provider)
	fmt.Printf("secrets.key=%s\n", cfg.Secrets.Key)
	fmt.Printf("docs.type=%s\n", cfg.Docs.Type)
	fmt.Printf("tasks.manifest=%s\n", cfg.Tasks.Manifest)
}

func runHealth() {
	cfg, err := config.LoadCLIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	client := tracker.New(cfg.Tracker.BaseURL, "",
		utils.DurationOrDefault(cfg.Tracker.Timeout, 30*time.Second))
	if err := client.Health(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func parseSodArgs(args []string) (session.StartOptions, error) {
	opts := session.StartOptions{IncludeDocs: true}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--track":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--track 需要参数")
			}
			i++
			opts.Track = args[i]
		case "--no-docs":
			opts.IncludeDocs = false
		case "--peers":
			opts.IncludePeers = true
		default:
			return opts, fmt.Errorf("未知参数: %s", args[i])
		}
	}
	return opts, nil
}

func runSod(args []string) {
	opts, err := parseSodArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\nUsage: coord sod [--track <name>] [--no-docs] [--peers]\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	b := bootstrap(ctx)
	result, err := b.Manager.Start(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sod 失败: %v\n", err)
		os.Exit(1)
	}
	printStart(os.Stdout, os.Stderr, result)
	// 降级也以 0 退出：跟踪服务不可达不拦着干活
}

func printStart(stdout, stderr io.Writer, r *session.StartResult) {
	fmt.Fprintf(stdout, "agent:   %s\n", r.Identity.Agent)
	fmt.Fprintf(stdout, "venture: %s  repo: %s\n", r.Identity.Venture, r.Identity.Repo)
	if r.Degraded {
		fmt.Fprintln(stderr, "warning: 跟踪服务不可达，本次会话未登记，以降级模式继续")
	} else {
		verb := "created"
		if r.Resumed {
			verb = "resumed"
		}
		fmt.Fprintf(stdout, "session: %s (%s)\n", r.Session.ID, verb)
	}

	if r.LastHandoff != nil {
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "上一班交接 from %s (%s):\n", r.LastHandoff.FromAgent, r.LastHandoff.StatusLabel)
		fmt.Fprintln(stdout, r.LastHandoff.Summary)
	}
	if len(r.Docs) > 0 {
		source := "remote"
		if r.DocsCached {
			source = "cache"
		}
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "工作文档 %d 篇 (%s):\n", len(r.Docs), source)
		for _, d := range r.Docs {
			fmt.Fprintf(stdout, "  - %s (scope=%s version=%s)\n", d.DocName, d.Scope, d.Version)
		}
	}
	if len(r.Peers) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "同仓库其他活跃会话:")
		for _, p := range r.Peers {
			fmt.Fprintf(stdout, "  - %s (%s)\n", p.Agent, p.ID)
		}
	}
	printReport(stdout, r.Report)
}

// printReport 有失败时把成败分开讲清楚
func printReport(w io.Writer, rep *session.Report) {
	if rep == nil || !rep.Degraded() {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "子系统 ok: %s\n", strings.Join(rep.Succeeded, ", "))
	for _, f := range rep.Failed {
		fmt.Fprintf(w, "子系统 failed: %s (%s)\n", f.Subsystem, f.Reason)
	}
}

func runHeartbeat() {
	ctx := context.Background()
	b := bootstrap(ctx)
	result, err := b.Manager.Heartbeat(ctx)
	if err != nil {
		exitLifecycleError("heartbeat", err)
	}
	fmt.Printf("session: %s\n", result.SessionID)
	fmt.Printf("next heartbeat by %s (interval %ds)\n",
		result.NextHeartbeatAt.Local().Format(time.Kitchen), result.IntervalSeconds)
}

func parseUpdateArgs(args []string) (session.UpdateOptions, error) {
	opts := session.UpdateOptions{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--branch":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--branch 需要参数")
			}
			i++
			opts.Branch = args[i]
		case "--commit":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--commit 需要参数")
			}
			i++
			opts.CommitSHA = args[i]
		case "--meta":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--meta 需要参数")
			}
			i++
			k, v, ok := strings.Cut(args[i], "=")
			if !ok || k == "" {
				return opts, fmt.Errorf("--meta 需要 k=v 形式: %s", args[i])
			}
			if opts.Meta == nil {
				opts.Meta = make(map[string]string)
			}
			opts.Meta[k] = v
		default:
			return opts, fmt.Errorf("未知参数: %s", args[i])
		}
	}
	return opts, nil
}

func runUpdate(args []string) {
	opts, err := parseUpdateArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\nUsage: coord update [--branch <b>] [--commit <sha>] [--meta k=v]\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	b := bootstrap(ctx)
	result, err := b.Manager.Update(ctx, opts)
	if err != nil {
		exitLifecycleError("update", err)
	}
	fmt.Printf("session: %s\n", result.SessionID)
	if result.Branch != "" {
		fmt.Printf("branch:  %s\n", result.Branch)
	}
	if result.CommitSHA != "" {
		fmt.Printf("commit:  %s\n", utils.ShortID(result.CommitSHA, 12))
	}
	fmt.Printf("next heartbeat by %s\n", result.NextHeartbeatAt.Local().Format(time.Kitchen))
}

func runEod(args []string) {
	opts := session.EndOptions{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--reason":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--reason 需要参数\n")
				os.Exit(1)
			}
			i++
			opts.Reason = args[i]
		default:
			fmt.Fprintf(os.Stderr, "Usage: coord eod [--reason <r>]\n")
			os.Exit(1)
		}
	}

	ctx := context.Background()
	b := bootstrap(ctx)
	result, err := b.Manager.End(ctx, opts)
	if err != nil {
		exitLifecycleError("eod", err)
	}
	fmt.Printf("session: %s ended (%s)\n", result.SessionID, result.Handoff.StatusLabel)
	fmt.Printf("handoff: %s\n", result.HandoffID)
	for _, source := range result.Snapshot.Degraded() {
		fmt.Fprintf(os.Stderr, "warning: %s 活动采集失败: %s\n", source, result.Snapshot.SourceErrors[source])
	}
	fmt.Println()
	fmt.Println(result.Handoff.Summary())
}

func runSessions() {
	ctx := context.Background()
	b := bootstrap(ctx)
	id, sessions, err := b.Manager.Sessions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出会话失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("venture: %s  repo: %s\n", id.Venture, id.Repo)
	if len(sessions) == 0 {
		fmt.Println("没有活跃会话")
		return
	}
	for _, s := range sessions {
		marker := " "
		if s.Agent == id.Agent {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  last_heartbeat=%s\n",
			marker, s.ID, s.Agent, s.LastHeartbeatAt.Local().Format("15:04:05"))
	}
}

// exitLifecycleError heartbeat/update/eod 共用的错误出口。
// 会话缺失提示重新 sod，从不代跑；其余照实报错。
func exitLifecycleError(op string, err error) {
	switch {
	case pkgerrors.IsSessionNotFound(err):
		fmt.Fprintf(os.Stderr, "%s: 没有活跃会话（可能已超时被放弃），请先运行 coord sod\n", op)
	case pkgerrors.IsNetwork(err):
		fmt.Fprintf(os.Stderr, "%s: 跟踪服务不可达: %v\n", op, err)
	default:
		fmt.Fprintf(os.Stderr, "%s 失败: %v\n", op, err)
	}
	os.Exit(1)
}
