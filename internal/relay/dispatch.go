package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/scanner"
	"github.com/ajime-dev/ajime-agent/internal/terminal"
)

func invalidPayload(err error) error {
	return agenterr.New(agenterr.KindValidation, "invalid command payload", err)
}

func unsupportedCommand(commandType string) error {
	return agenterr.Newf(agenterr.KindValidation, "unsupported command type: %s", commandType)
}

func unknownSession(sessionID string) error {
	return agenterr.Newf(agenterr.KindNotFound, "unknown terminal session: %s", sessionID)
}

func decodeTerminalInput(dataB64 string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return nil, agenterr.New(agenterr.KindValidation, "invalid base64 terminal input", err)
	}
	return b, nil
}

// sessionSender adapts a sendQueue to terminal.Sender. terminal.Session
// already fills in type/session_id/data itself, so Send passes each message
// to the queue unchanged.
type sessionSender struct{ q *sendQueue }

func (s sessionSender) Send(v interface{}) { s.q.Send(v) }

// sessionTable tracks live terminal sessions keyed by session_id.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[string]*terminal.Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]*terminal.Session)}
}

func (t *sessionTable) put(id string, s *terminal.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[id] = s
}

func (t *sessionTable) get(id string) (*terminal.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

func (t *sessionTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

func (t *sessionTable) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.sessions {
		s.Close()
		delete(t.sessions, id)
	}
}

// handleMessage decodes a single inbound relay frame and dispatches it
// either as a command (expects a response keyed by msg_id) or a server push
// (fire-and-forget).
func (c *Client) handleMessage(ctx context.Context, data []byte, queue *sendQueue, sessions *sessionTable) {
	log := alog.WithComponent("relay")

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Msg("failed to decode relay message")
		return
	}

	switch env.Type {
	case "command":
		c.handleCommand(ctx, env, queue, sessions)
	case "new_deployment":
		log.Info().Str("deployment_id", env.DeploymentID).Msg("received new deployment notification")
		if c.runners.OnNewDeployment != nil {
			go c.runners.OnNewDeployment(env.DeploymentID)
		}
	case "pong":
		log.Debug().Msg("received pong")
	default:
		log.Warn().Str("type", env.Type).Msg("unknown relay message type")
	}
}

// fireAndForgetCommands are routed through runCommand like any other
// command, but never produce a response envelope: the relay protocol
// treats terminal I/O as a one-way stream, not a request/response pair.
var fireAndForgetCommands = map[string]bool{
	"terminal_input": true,
	"terminal_close": true,
}

func (c *Client) handleCommand(ctx context.Context, env envelope, queue *sendQueue, sessions *sessionTable) {
	log := alog.WithComponent("relay")
	result, err := c.runCommand(ctx, env, sessions, queue)

	if fireAndForgetCommands[env.CommandType] {
		if err != nil {
			log.Warn().Err(err).Str("command_type", env.CommandType).Msg("command failed")
		}
		return
	}

	resp := envelope{Type: "response", MsgID: env.MsgID}
	if err != nil {
		log.Warn().Err(err).Str("command_type", env.CommandType).Msg("command failed")
		msg := err.Error()
		resp.Error = &msg
	} else {
		resp.Result = result
	}
	queue.Send(resp)
}

func (c *Client) runCommand(ctx context.Context, env envelope, sessions *sessionTable, queue *sendQueue) (interface{}, error) {
	switch env.CommandType {
	case "terminal_create":
		return c.cmdTerminalCreate(env, sessions, queue)
	case "terminal_input":
		return c.cmdTerminalInput(env, sessions)
	case "terminal_close":
		return c.cmdTerminalClose(env, sessions)
	case "file_list":
		return c.cmdFileList(env)
	case "file_read":
		return c.cmdFileRead(env)
	case "file_write":
		return c.cmdFileWrite(env)
	case "file_delete":
		return c.cmdFileDelete(env)
	case "scan_network":
		return c.cmdScanNetwork(ctx, env)
	default:
		return nil, unsupportedCommand(env.CommandType)
	}
}

type terminalCreatePayload struct {
	SessionID string `json:"session_id"`
	Cols      uint16 `json:"cols"`
	Rows      uint16 `json:"rows"`
}

func (c *Client) cmdTerminalCreate(env envelope, sessions *sessionTable, queue *sendQueue) (interface{}, error) {
	var p terminalCreatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	if p.Cols == 0 {
		p.Cols = 80
	}
	if p.Rows == 0 {
		p.Rows = 24
	}

	sess, err := terminal.New(p.SessionID, p.Cols, p.Rows, sessionSender{q: queue})
	if err != nil {
		return nil, err
	}
	sessions.put(p.SessionID, sess)
	return map[string]string{"session_id": p.SessionID}, nil
}

type terminalInputPayload struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

func (c *Client) cmdTerminalInput(env envelope, sessions *sessionTable) (interface{}, error) {
	var p terminalInputPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	sess, ok := sessions.get(p.SessionID)
	if !ok {
		return nil, unknownSession(p.SessionID)
	}
	data, err := decodeTerminalInput(p.Data)
	if err != nil {
		return nil, err
	}
	if err := sess.WriteInput(data); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type terminalClosePayload struct {
	SessionID string `json:"session_id"`
}

func (c *Client) cmdTerminalClose(env envelope, sessions *sessionTable) (interface{}, error) {
	var p terminalClosePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	sess, ok := sessions.get(p.SessionID)
	if !ok {
		return nil, unknownSession(p.SessionID)
	}
	err := sess.Close()
	sessions.remove(p.SessionID)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type fileListPayload struct {
	Path string `json:"path"`
}

func (c *Client) cmdFileList(env envelope) (interface{}, error) {
	var p fileListPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	entries, err := listDirectory(p.Path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"entries": entries}, nil
}

type fileReadPayload struct {
	Path string `json:"path"`
}

func (c *Client) cmdFileRead(env envelope) (interface{}, error) {
	var p fileReadPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	content, err := readFileBase64(p.Path)
	if err != nil {
		return nil, err
	}
	return map[string]string{"content": content}, nil
}

type fileWritePayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (c *Client) cmdFileWrite(env envelope) (interface{}, error) {
	var p fileWritePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	if err := writeFileBase64(p.Path, p.Content); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type fileDeletePayload struct {
	Path string `json:"path"`
}

func (c *Client) cmdFileDelete(env envelope) (interface{}, error) {
	var p fileDeletePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	if err := deletePath(p.Path); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type scanNetworkPayload struct {
	CIDR string `json:"cidr"`
}

func (c *Client) cmdScanNetwork(ctx context.Context, env envelope) (interface{}, error) {
	var p scanNetworkPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, invalidPayload(err)
	}
	devices := scanner.ScanSubnet(ctx, p.CIDR)
	return map[string]interface{}{"devices": devices}, nil
}
