package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bloom/internal/config"
	"bloom/internal/docker"
	"bloom/internal/events"
	"bloom/internal/git"
	"bloom/internal/gitpipeline"
	"bloom/internal/mergelock"
	"bloom/internal/notify"
	"bloom/internal/queue"
	"bloom/internal/sandbox"
	"bloom/internal/scheduler"
	"bloom/internal/session"
	"bloom/internal/session/provider"
	"bloom/internal/task"
	"bloom/internal/telemetry"
)

var runAgents []string

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start one work loop per agent and drive the task graph to completion",
		RunE:  runRun,
	}
	runCmd.Flags().StringSliceVar(&runAgents, "agents", nil, "agent names to run (default: every distinct agent_name in tasks.yaml)")
	rootCmd.AddCommand(runCmd)
}

// freshPipeline adapts *gitpipeline.Pipeline to scheduler.GitPipelineRunner,
// loading a brand new *task.Store for every call instead of holding one
// across a run, matching §9's "no shared mutable task graph" note: the
// scheduler loop that hands off to it already re-opens task.Store per
// iteration, so the git pipeline does too rather than risking a stale
// in-memory copy once multiple agents are writing tasks.yaml concurrently.
type freshPipeline struct {
	tasksPath             string
	reposDir              string
	git                   *git.Client
	sessions              *session.Manager
	locks                 *mergelock.Manager
	bus                   *events.Bus
	maxAttempts           int
	mergeLockPollInterval time.Duration
	mergeLockMaxWait      time.Duration
}

func (f *freshPipeline) Run(ctx context.Context, p gitpipeline.Params) error {
	store, err := task.Load(f.tasksPath)
	if err != nil {
		return fmt.Errorf("gitpipeline: reload tasks: %w", err)
	}
	pipeline := &gitpipeline.Pipeline{
		Store:                 store,
		Git:                   f.git,
		Sessions:              f.sessions,
		Locks:                 f.locks,
		Bus:                   f.bus,
		ReposDir:              f.reposDir,
		MaxAttempts:           f.maxAttempts,
		MergeLockPollInterval: f.mergeLockPollInterval,
		MergeLockMaxWait:      f.mergeLockMaxWait,
	}
	return pipeline.Run(ctx, p)
}

func runRun(cmd *cobra.Command, args []string) error {
	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	tp, err := tasksPath()
	if err != nil {
		return err
	}

	wsCfg, err := config.LoadWorkspaceConfig(filepath.Join(ws, "bloom.config.yaml"))
	if err != nil {
		return err
	}
	globalCfg, err := config.LoadGlobalConfig(filepath.Join(config.Home(), "config.yaml"))
	if err != nil {
		return err
	}

	agents := runAgents
	if len(agents) == 0 {
		agents, err = discoverAgents(tp)
		if err != nil {
			return err
		}
	}
	if len(agents) == 0 {
		return fmt.Errorf("no agents to run: no agent_name routes any task and none given via --agents")
	}

	bus := events.New()
	telemetry.ObserveBus(bus)

	q, err := queue.New(ws)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}

	notifier := notify.NewManager(q, func(format string, args ...interface{}) {
		telemetry.LogInfof(format, args...)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier.Watch(ctx, bus)

	gitClient := git.NewClient()
	locks := mergelock.New(ws)
	sessions := session.New(bus, q)
	repos := reposDir(wsCfg, ws)

	pipeline := &freshPipeline{
		tasksPath:             tp,
		reposDir:              repos,
		git:                   gitClient,
		sessions:              sessions,
		locks:                 locks,
		bus:                   bus,
		maxAttempts:           viper.GetInt("max_step_attempts"),
		mergeLockPollInterval: time.Duration(viper.GetInt("merge_lock_poll_interval_seconds")) * time.Second,
		mergeLockMaxWait:      time.Duration(viper.GetInt("merge_lock_max_wait_minutes")) * time.Minute,
	}

	sandboxMgr := sandbox.NewManager(bus, containerRuntime(), sandbox.BwrapRuntime{}, sandbox.SeatbeltRuntime{})

	var wg sync.WaitGroup
	errCh := make(chan error, len(agents))

	for _, agentName := range agents {
		agentName := agentName
		providerName := wsCfg.ProviderFor(agentName)
		p, ok := provider.ByName[providerName]
		if !ok {
			return fmt.Errorf("agent %q: unknown provider %q (known: claude, copilot, goose, opencode, codex, cursor)", agentName, providerName)
		}

		instance, err := sandboxMgr.CreateInstance(ctx, agentName, ws)
		if err != nil {
			return fmt.Errorf("create sandbox for %s: %w", agentName, err)
		}

		loop := &scheduler.Loop{
			AgentName:    agentName,
			WorkspaceDir: ws,
			ReposDir:     repos,
			TasksPath:    tp,
			PollInterval: time.Duration(viper.GetInt("poll_interval_seconds")) * time.Second,
			OriginRemote: viper.GetString("origin_remote"),
			Provider:     p,
			Sandbox:      instance,
			Git:          gitClient,
			Sessions:     sessions,
			GitPipeline:  pipeline,
			Queue:        q,
			Bus:          bus,
			MaxAttempts:  viper.GetInt("max_step_attempts"),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loop.Run(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("agent %s: %w", agentName, err)
			}
		}()
	}

	_ = globalCfg // resolved for future per-agent default wiring (models, tools); the loop above only needs provider selection today

	wg.Wait()
	sandboxMgr.DestroyAll(context.Background())
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// containerRuntime builds a sandbox.ContainerRuntime backed by the local
// Docker daemon, or nil if one isn't reachable. The container sandbox
// runtime is one option among BwrapRuntime/SeatbeltRuntime (§4.4); a
// workspace without Docker falls back to the process-isolation runtimes
// instead of failing bloom run outright.
func containerRuntime() *sandbox.ContainerRuntime {
	client, err := docker.NewClient()
	if err != nil {
		return nil
	}
	if client.CheckDaemon(context.Background()) != nil {
		return nil
	}
	return sandbox.NewContainerRuntime(client, viper.GetString("sandbox_image"))
}

// discoverAgents collects every distinct, non-blank agent_name in
// tasks.yaml, in declaration order.
func discoverAgents(tasksPath string) ([]string, error) {
	store, err := task.Load(tasksPath)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	seen := map[string]bool{}
	var names []string
	for _, t := range store.All() {
		if t.AgentName == "" || seen[t.AgentName] {
			continue
		}
		seen[t.AgentName] = true
		names = append(names, t.AgentName)
	}
	return names, nil
}
