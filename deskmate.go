// Package deskmate provides a high-level façade over the Deskmate runtime:
// a single service-desk agent wired to a ServiceNow toolset, a session
// store, a model provider and the conversation layer. Most applications
// interact with this package by:
//  1. Loading a config.Config (config.Load)
//  2. Creating a Deskmate via New()
//  3. Creating sessions (NewSession) and handling turns (HandleTurn, or a
//     per-surface Handler)
//
// All defaults are safe for local development; production deployments
// typically supply a durable session store and a structured logger.
package deskmate

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/deskmate-ai/deskmate/agent"
	"github.com/deskmate-ai/deskmate/config"
	"github.com/deskmate-ai/deskmate/conversation"
	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/logging"
	"github.com/deskmate-ai/deskmate/model"
	"github.com/deskmate-ai/deskmate/model/anthropic"
	"github.com/deskmate-ai/deskmate/model/openai"
	"github.com/deskmate-ai/deskmate/runner"
	"github.com/deskmate-ai/deskmate/servicenow"
	"github.com/deskmate-ai/deskmate/session"
	"github.com/deskmate-ai/deskmate/tool"
)

// Version is the Deskmate release version.
const Version = "0.1.0"

// DefaultUserID attributes sessions and turns when a surface does not
// supply its own user.
const DefaultUserID = "user"

// Options configures the Deskmate instance beyond what config.Config covers.
type Options struct {
	// SessionStore persists sessions. Defaults to in-memory.
	SessionStore core.SessionStore

	// Logger receives structured diagnostics. Defaults to a slog logger
	// built from the config's log section.
	Logger logging.Logger

	// Model overrides provider selection from the config. Useful for tests.
	Model model.Model

	// Tools replaces the default toolset (ServiceNow tools plus session
	// memory). Useful for tests.
	Tools []tool.Tool

	// MaxModelCalls bounds model calls per turn. Zero keeps the runner
	// default.
	MaxModelCalls int
}

// Deskmate aggregates the wired runtime.
type Deskmate struct {
	cfg    *config.Config
	logger logging.Logger
	store  core.SessionStore
	agent  *agent.ModelAgent
	runner *runner.Runner
}

// New wires a Deskmate from the given configuration.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Deskmate, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)
	}

	store := opts.SessionStore
	if store == nil {
		store = session.NewInMemoryStore()
	}

	llm := opts.Model
	if llm == nil {
		m, err := newModel(cfg)
		if err != nil {
			return nil, err
		}

		llm = m
	}

	tools := opts.Tools
	if tools == nil {
		tools = append(newToolset(cfg, logger).Tools(), tool.NewSessionMemoryTool())
	}

	deskAgent := agent.NewModelAgent(cfg.Agent.Name, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Service-desk assistant backed by ServiceNow"
		o.Instruction = agent.NewInstructionFromText(cfg.Agent.Instruction)
	})
	deskAgent.RegisterTools(tools...)

	run := runner.New(deskAgent, func(o *runner.Options) {
		o.SessionStore = store
		o.Logger = logger

		if opts.MaxModelCalls > 0 {
			o.MaxModelCalls = opts.MaxModelCalls
		}
	})

	return &Deskmate{
		cfg:    cfg,
		logger: logger,
		store:  store,
		agent:  deskAgent,
		runner: run,
	}, nil
}

func newModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Model.Provider)
	}
}

func newToolset(cfg *config.Config, logger logging.Logger) *servicenow.Toolset {
	client := servicenow.NewClient(
		cfg.ServiceNow.InstanceURL,
		cfg.ServiceNow.Username,
		cfg.ServiceNow.Password,
		func(o *servicenow.ClientOptions) { o.Logger = logger },
	)

	return servicenow.NewToolset(client, func(o *servicenow.ToolsetOptions) {
		if cfg.ServiceNow.NamePrefix != "" {
			o.NamePrefix = cfg.ServiceNow.NamePrefix
		}

		if len(cfg.ServiceNow.Tables) > 0 {
			o.TableOperations = tableOperations(cfg.ServiceNow.Tables)
		}
	})
}

func tableOperations(tables map[string][]string) map[string][]servicenow.Operation {
	out := make(map[string][]servicenow.Operation, len(tables))

	for table, ops := range tables {
		converted := make([]servicenow.Operation, 0, len(ops))
		for _, op := range ops {
			converted = append(converted, servicenow.Operation(op))
		}

		out[table] = converted
	}

	return out
}

// NewSession creates a session for the given user. An empty userID falls
// back to DefaultUserID.
func (d *Deskmate) NewSession(userID string) (*core.Session, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	return d.store.Create(userID)
}

// Handler returns a conversation handler that attributes turns to userID.
func (d *Deskmate) Handler(userID string) *conversation.Handler {
	if userID == "" {
		userID = DefaultUserID
	}

	return conversation.NewHandler(d.runner, func(o *conversation.HandlerOptions) {
		o.UserID = userID
		o.Logger = d.logger
	})
}

// HandleTurn runs one conversational turn as DefaultUserID and renders it.
func (d *Deskmate) HandleTurn(ctx context.Context, sessionID, query string) (conversation.RenderedActivity, error) {
	return d.Handler(DefaultUserID).HandleTurn(ctx, sessionID, query)
}

// Agent exposes the wired service-desk agent.
func (d *Deskmate) Agent() *agent.ModelAgent { return d.agent }

// Runner exposes the underlying turn runner.
func (d *Deskmate) Runner() *runner.Runner { return d.runner }

// Sessions exposes the session store.
func (d *Deskmate) Sessions() core.SessionStore { return d.store }

// Logger exposes the configured logger.
func (d *Deskmate) Logger() logging.Logger { return d.logger }

// Close aborts in-flight turns. Safe to call more than once.
func (d *Deskmate) Close() error {
	d.runner.CancelAll()

	return nil
}
