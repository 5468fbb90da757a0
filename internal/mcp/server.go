// Package mcp exposes mailwarden over the Model Context Protocol:
// guarded send, trust-list management, and rule management tools.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/mailwarden/internal/audit"
	"github.com/ppiankov/mailwarden/internal/config"
	"github.com/ppiankov/mailwarden/internal/elicit"
	"github.com/ppiankov/mailwarden/internal/gmail"
	"github.com/ppiankov/mailwarden/internal/retro"
	"github.com/ppiankov/mailwarden/internal/rules"
	"github.com/ppiankov/mailwarden/internal/trust"
)

// Server wires the trust gate, confirmation controller, and rule
// manager behind MCP tools on a stdio transport.
type Server struct {
	mcpServer *mcpsdk.Server
	cfg       *config.Config
	store     elicit.Store
	trust     *trust.Manager
	rules     *rules.Manager
	auditLog  *audit.Log
}

// New assembles a server from loaded configuration and an
// authenticated client.
func New(cfg *config.Config, client *gmail.Client) (*Server, error) {
	trustMgr := &trust.Manager{
		Store: trust.NewFileStore(cfg.TrustListPath),
		Dir:   client,
	}

	ruleStore, err := rules.OpenStore(cfg.RulesDBPath)
	if err != nil {
		return nil, fmt.Errorf("open rules store: %w", err)
	}

	applier := retro.New(client, retro.Config{
		BatchSize:      cfg.Retro.BatchSize,
		MaxItems:       cfg.Retro.MaxItems,
		RateLimitDelay: cfg.Retro.RateLimitDelay,
	}, nil)

	ruleMgr := &rules.Manager{Filters: client, Records: ruleStore, Retro: applier}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	s := &Server{
		cfg:      cfg,
		store:    client,
		trust:    trustMgr,
		rules:    ruleMgr,
		auditLog: auditLog,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "mailwarden",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP on stdio. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the audit log and rule store.
func (s *Server) Close() error {
	var firstErr error
	if s.auditLog != nil {
		firstErr = s.auditLog.Close()
	}
	if s.rules != nil && s.rules.Records != nil {
		if err := s.rules.Records.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// controllerFor builds a per-request confirmation controller bound to
// the calling session. Sessions never outlive the request.
func (s *Server) controllerFor(session *mcpsdk.ServerSession) *elicit.Controller {
	var transport elicit.Transport
	if s.cfg.Interactive && session != nil {
		transport = &sessionTransport{session: session}
	}
	return &elicit.Controller{
		Transport: transport,
		Store:     s.store,
		Policy:    s.cfg.Fallback(),
		Timeout:   s.cfg.ElicitTimeout,
	}
}

func (s *Server) record(ev audit.Event) {
	if s.auditLog != nil {
		_ = s.auditLog.Append(ev)
	}
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mailwarden_send",
		Description: "Send an email. Recipients not on the trusted list trigger an interactive confirmation; without one, the configured fallback policy (block/allow/draft) decides.",
	}, s.handleSend)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mailwarden_trust",
		Description: "Manage the trusted-recipient list: add, remove, or view entries. Entries are addresses or group references (group:<name>, groupId:<id>).",
	}, s.handleTrust)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mailwarden_trust_label",
		Description: "Manage contact-group membership behind group trust entries: add or remove addresses in a named group.",
	}, s.handleTrustLabel)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mailwarden_filter",
		Description: "Manage labeling rules: create (optionally applying the rule to existing messages), get, delete, or list. Retroactive runs return a per-run report.",
	}, s.handleFilter)
}
